package opengl

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

/**
 * @brief Capabilities queried from the context at initialization.
 */
type OpenGLContext struct {
	Vendor      string
	Renderer    string
	Version     string
	GLSLVersion string
	/** @brief GL_MAX_TEXTURE_SIZE. Larger RGBA8 textures are downscaled on upload. */
	MaxTextureSize int32
	/** @brief GL_MAX_COMBINED_TEXTURE_IMAGE_UNITS, capped to 255. */
	MaxTextureUnits int32
}

type Options struct {
	// IsCurrent reports whether the GL context is current on the calling
	// thread. Required; the platform layer knows which context it created.
	IsCurrent func() bool
	// Debug checks glGetError after every call and logs what it finds.
	Debug bool
}

// What is bound on the context right now. Resource creation binds objects of
// its own and puts these back afterwards.
type boundState struct {
	vao        uint32
	program    uint32
	fbo        uint32
	activeUnit uint32
	textures   []uint32
	// Write masks and scissor, which glClear obeys.
	depthWrite   bool
	stencilWrite uint32
	scissor      bool
}

type OpenGLRenderer struct {
	options     Options
	context     *OpenGLContext
	bound       boundState
	lost        atomic.Bool
	initialized bool
}

func New(options Options) *OpenGLRenderer {
	return &OpenGLRenderer{
		options: options,
		context: &OpenGLContext{},
	}
}

// Context returns the capabilities found at initialization.
func (r *OpenGLRenderer) Context() *OpenGLContext {
	return r.context
}

func (r *OpenGLRenderer) Initialize() error {
	if r.options.IsCurrent == nil {
		return errors.New("opengl: Options.IsCurrent is required")
	}
	if !r.options.IsCurrent() {
		return errors.New("opengl: context is not current on this thread")
	}
	if err := gl.Init(); err != nil {
		core.LogError("failed to initialize OpenGL: %s", err)
		return err
	}

	r.queryContext()
	r.lost.Store(false)
	r.resetBound()
	r.initialized = true

	core.LogInfo("OpenGL %s (GLSL %s) on %s, %s", r.context.Version, r.context.GLSLVersion, r.context.Renderer, r.context.Vendor)
	core.LogInfo("max texture size %d, texture units %d", r.context.MaxTextureSize, r.context.MaxTextureUnits)
	return checkError("initialize")
}

func (r *OpenGLRenderer) queryContext() {
	r.context.Vendor = gl.GoStr(gl.GetString(gl.VENDOR))
	r.context.Renderer = gl.GoStr(gl.GetString(gl.RENDERER))
	r.context.Version = gl.GoStr(gl.GetString(gl.VERSION))
	r.context.GLSLVersion = gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &r.context.MaxTextureSize)
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &r.context.MaxTextureUnits)
	if r.context.MaxTextureUnits > 255 {
		r.context.MaxTextureUnits = 255
	}
}

func (r *OpenGLRenderer) resetBound() {
	r.bound = boundState{
		textures:     make([]uint32, r.context.MaxTextureUnits),
		depthWrite:   true,
		stencilWrite: allStencilBits,
	}
}

// Handles belong to the context; the factory destroys them before this runs.
func (r *OpenGLRenderer) Shutdown() error {
	if !r.initialized {
		return nil
	}
	r.initialized = false
	if r.lost.Load() || !r.IsContextCurrent() {
		return nil
	}
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return checkError("shutdown")
}

// MarkContextLost is called by the host when it learns the context is gone,
// e.g. the window was recreated.
func (r *OpenGLRenderer) MarkContextLost() {
	if !r.lost.Swap(true) {
		core.LogWarn("OpenGL context marked as lost")
	}
}

// Restore is called once the host has a fresh context current again.
func (r *OpenGLRenderer) Restore() error {
	if !r.IsCurrentThread() {
		return errors.New("opengl: restore without a current context")
	}
	if err := gl.Init(); err != nil {
		return err
	}
	drainErrors()
	r.queryContext()
	r.resetBound()
	r.lost.Store(false)
	core.LogInfo("OpenGL context restored")
	return nil
}

func (r *OpenGLRenderer) BeginFrame() error {
	if r.lost.Load() {
		return fmt.Errorf("begin frame: %w", core.ErrContextLost)
	}
	if !r.options.IsCurrent() {
		return errors.New("begin frame: context is not current on this thread")
	}
	// Anything left over from outside the frame belongs to nobody.
	if err := r.check("begin frame"); err != nil && errors.Is(err, core.ErrContextLost) {
		return err
	}
	return nil
}

func (r *OpenGLRenderer) EndFrame() error {
	if err := r.check("end frame"); err != nil {
		if errors.Is(err, core.ErrContextLost) {
			return err
		}
		core.LogWarn("%s", err)
	}
	gl.Flush()
	return nil
}

// IsCurrentThread reports whether the context is current, ignoring loss.
func (r *OpenGLRenderer) IsCurrentThread() bool {
	return r.options.IsCurrent != nil && r.options.IsCurrent()
}

func (r *OpenGLRenderer) IsContextCurrent() bool {
	return !r.lost.Load() && r.IsCurrentThread()
}

func (r *OpenGLRenderer) ContextLost() bool {
	return r.lost.Load()
}

func (r *OpenGLRenderer) MaxTextureUnits() uint8 {
	return uint8(r.context.MaxTextureUnits)
}

// check drains glGetError, remembering a lost context.
func (r *OpenGLRenderer) check(op string) error {
	err := checkError(op)
	if err != nil && errors.Is(err, core.ErrContextLost) {
		r.MarkContextLost()
	}
	return err
}

// debugCheck is check for hot paths: it only runs with Options.Debug.
func (r *OpenGLRenderer) debugCheck(op string) {
	if !r.options.Debug {
		return
	}
	if err := r.check(op); err != nil {
		core.LogError("%s", err)
	}
}

// Create dispatches on the resource kind. Every handle made along the way is
// deleted again when any step fails.
func (r *OpenGLRenderer) Create(res *metadata.CPUResource) (metadata.GPUResource, error) {
	if r.lost.Load() {
		return nil, fmt.Errorf("create %s: %w", res, core.ErrContextLost)
	}
	// Stale errors must not be blamed on this resource.
	if err := r.check("before create"); err != nil {
		if errors.Is(err, core.ErrContextLost) {
			return nil, err
		}
		core.LogWarn("%s", err)
	}
	defer r.restoreBound()

	switch res.Kind {
	case metadata.ResourceKindGeometry:
		return r.createGeometry(res.Geometry)
	case metadata.ResourceKindTexture:
		return r.createTexture(res.Texture)
	case metadata.ResourceKindProgram:
		return r.createProgram(res.Program)
	case metadata.ResourceKindRenderTarget:
		return r.createFramebuffer(res.Target)
	default:
		return nil, fmt.Errorf("unsupported resource kind %s", res.Kind)
	}
}

func (r *OpenGLRenderer) restoreBound() {
	if r.lost.Load() {
		return
	}
	gl.BindVertexArray(r.bound.vao)
	gl.UseProgram(r.bound.program)
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.bound.fbo)
	gl.ActiveTexture(gl.TEXTURE0 + r.bound.activeUnit)
	var texture uint32
	if int(r.bound.activeUnit) < len(r.bound.textures) {
		texture = r.bound.textures[r.bound.activeUnit]
	}
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func (r *OpenGLRenderer) Destroy(gpu metadata.GPUResource) {
	if !gpu.Valid() {
		return
	}
	switch obj := gpu.(type) {
	case *OpenGLGeometry:
		if r.bound.vao == obj.VAO {
			r.bound.vao = 0
		}
		obj.release()
	case *OpenGLTexture:
		r.forgetTexture(obj.Handle)
		obj.release()
	case *OpenGLProgram:
		if r.bound.program == obj.Handle {
			// A bound program is only deleted once it is no longer in use.
			gl.UseProgram(0)
			r.bound.program = 0
		}
		obj.release()
	case *OpenGLFramebuffer:
		if r.bound.fbo == obj.FBO {
			r.bound.fbo = 0
		}
		r.forgetTexture(obj.Colour)
		obj.release()
	default:
		core.LogError("opengl: cannot destroy %T", gpu)
		return
	}
	r.debugCheck("destroy")
}

// Deleting a bound texture unbinds it from every unit.
func (r *OpenGLRenderer) forgetTexture(handle uint32) {
	for i, t := range r.bound.textures {
		if t == handle {
			r.bound.textures[i] = 0
		}
	}
}
