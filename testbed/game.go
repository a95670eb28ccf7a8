package testbed

import (
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-gl/engine"
	"github.com/spaghettifunk/anima-gl/engine/assets"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gl/engine/systems"
)

const (
	offscreenSize = 256
	brickTexture  = "assets/textures/bricks.png"
)

// Used when the shader dir is missing, so the demo still runs from anywhere.
const (
	fallbackVertexSource = `#version 330 core
in vec3 in_position;
in vec2 in_texcoord;
uniform mat4 u_mvp;
out vec2 v_texcoord;
void main() {
	v_texcoord = in_texcoord;
	gl_Position = u_mvp * vec4(in_position, 1.0);
}
`
	fallbackFragmentSource = `#version 330 core
in vec2 v_texcoord;
uniform sampler2D u_diffuse;
uniform vec4 u_tint;
out vec4 out_colour;
void main() {
	out_colour = texture(u_diffuse, v_texcoord) * u_tint;
}
`
)

var (
	programAttributes = []metadata.ShaderAttributeBinding{
		{Name: "in_position", Location: 0},
		{Name: "in_texcoord", Location: 1},
	}
	programUniforms = []metadata.ShaderUniformDecl{
		{Name: "u_mvp", Type: metadata.ShaderUniformTypeMat4},
		{Name: "u_tint", Type: metadata.ShaderUniformTypeVec4},
		{Name: "u_diffuse", Type: metadata.ShaderUniformTypeSampler, Unit: 0},
	}
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine

	width  uint32
	height uint32
	angle  float32

	quad      *metadata.CPUResource
	program   *metadata.CPUResource
	diffuse   *metadata.CPUResource
	offscreen *metadata.CPUResource
	// Replaces diffuse once it has been decoded by a job.
	bricks *metadata.CPUResource
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// A unit quad, interleaved position (xyz) and texture coordinates (uv).
func quadGeometry() *metadata.GeometryData {
	return &metadata.GeometryData{
		Layout: metadata.VertexLayout{
			Stride: 5 * 4,
			Attributes: []metadata.VertexAttribute{
				{Location: 0, Components: 3, Offset: 0},
				{Location: 1, Components: 2, Offset: 3 * 4},
			},
		},
		Vertices: []float32{
			-0.5, -0.5, 0, 0, 0,
			0.5, -0.5, 0, 1, 0,
			0.5, 0.5, 0, 1, 1,
			-0.5, 0.5, 0, 0, 1,
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	state := g.state()
	state.engine = e
	r := e.Renderer()

	quad, err := metadata.NewGeometry("quad", quadGeometry())
	if err != nil {
		return err
	}
	diffuse, err := metadata.NewTexture("checker", metadata.NewCheckerboardTextureData(64))
	if err != nil {
		return err
	}
	offscreen, err := metadata.NewRenderTarget("offscreen", &metadata.RenderTargetData{
		Width:  offscreenSize,
		Height: offscreenSize,
		Format: metadata.PixelFormatRGBA8,
		Depth:  true,
	})
	if err != nil {
		return err
	}
	program, err := g.loadProgram(e)
	if err != nil {
		return err
	}

	for _, res := range []*metadata.CPUResource{quad, diffuse, offscreen, program} {
		if err := r.Submit(res); err != nil {
			return err
		}
	}
	state.quad, state.diffuse, state.offscreen, state.program = quad, diffuse, offscreen, program

	g.loadBricks(e.Jobs())
	return nil
}

func (g *TestGame) loadProgram(e *engine.Engine) (*metadata.CPUResource, error) {
	if sw := e.Shaders(); sw != nil {
		program, err := sw.LoadProgram("textured", programAttributes, programUniforms)
		if err == nil {
			return program, nil
		}
		core.LogWarn("using the built-in program: %s", err)
	}
	return metadata.NewProgram("textured", &metadata.ProgramData{
		VertexSource:   fallbackVertexSource,
		FragmentSource: fallbackFragmentSource,
		Attributes:     programAttributes,
		Uniforms:       programUniforms,
	})
}

// loadBricks decodes the brick texture off the main thread. The texture is
// submitted from the job's completion callback, at the next sync point.
func (g *TestGame) loadBricks(jobs *systems.JobSystem) {
	if _, err := os.Stat(brickTexture); err != nil {
		return
	}
	state := g.state()
	jobs.AddWorkNonBlocking(systems.JobTask{
		Name: filepath.Base(brickTexture),
		OnStart: func() (interface{}, error) {
			return assets.LoadTexture(brickTexture, true)
		},
		OnComplete: func(result interface{}) {
			bricks := result.(*metadata.CPUResource)
			bricks.Texture.Mipmaps = true
			if err := state.engine.Renderer().Submit(bricks); err != nil {
				core.LogError(err.Error())
				return
			}
			state.bricks = bricks
		},
	})
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.angle += float32(deltaTime)
	return nil
}

func (g *TestGame) Render(packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.state()
	if state.width == 0 || state.height == 0 {
		return nil
	}
	diffuse := state.diffuse
	if state.bricks != nil {
		diffuse = state.bricks
	}

	spin := mgl32.HomogRotate3DZ(state.angle)
	aspect := float32(state.width) / float32(state.height)
	projection := mgl32.Ortho2D(-aspect, aspect, -1, 1)

	packet.Commands = append(packet.Commands,
		// Pass 1: the spinning quad into the off-screen target.
		metadata.CmdSetRenderTarget(state.offscreen),
		metadata.CmdSetViewport(metadata.Rect{Width: offscreenSize, Height: offscreenSize}),
		metadata.CmdClear(metadata.ClearValues{
			Flags:  metadata.ClearColour | metadata.ClearDepth,
			Colour: [4]float32{0.1, 0.1, 0.15, 1},
			Depth:  1,
		}),
		metadata.CmdSetDepthState(metadata.DepthState{Test: true, Write: true, Func: metadata.CompareLessEqual}),
		metadata.CmdBindGeometry(state.quad),
		metadata.CmdBindProgram(state.program),
		metadata.CmdSetUniform("u_mvp", spin.Mul4(mgl32.Scale3D(1.5, 1.5, 1))),
		metadata.CmdSetUniform("u_tint", mgl32.Vec4{1, 1, 1, 1}),
		metadata.CmdBindTexture(0, diffuse),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),

		// Pass 2: the off-screen result on the window, twice.
		metadata.CmdSetRenderTarget(nil),
		metadata.CmdSetViewport(metadata.Rect{Width: int32(state.width), Height: int32(state.height)}),
		metadata.CmdClear(metadata.ClearValues{
			Flags:  metadata.ClearColour | metadata.ClearDepth,
			Colour: [4]float32{0, 0, 0, 1},
			Depth:  1,
		}),
		metadata.CmdSetDepthState(metadata.DepthState{}),
		metadata.CmdSetBlendState(metadata.BlendStateAlpha),
		metadata.CmdBindTexture(0, state.offscreen),
		metadata.CmdSetUniform("u_mvp", projection.Mul4(mgl32.Translate3D(-0.5, 0, 0))),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
		metadata.CmdSetUniform("u_mvp", projection.Mul4(mgl32.Translate3D(0.5, 0, 0))),
		metadata.CmdSetUniform("u_tint", mgl32.Vec4{1, 0.8, 0.8, 0.9}),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
	)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown(e *engine.Engine) error {
	state := g.state()
	r := e.Renderer()
	for _, res := range []*metadata.CPUResource{state.quad, state.program, state.diffuse, state.offscreen, state.bricks} {
		if res == nil || !res.Registered() {
			continue
		}
		if sw := e.Shaders(); sw != nil && res.Kind == metadata.ResourceKindProgram {
			sw.Forget(res.Name)
		}
		if err := r.ReleaseResource(res); err != nil {
			core.LogError(err.Error())
		}
	}
	return nil
}
