package renderer

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-gl/engine/config"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gl/engine/renderer/rendertest"
)

var _ RendererBackend = (*rendertest.Recorder)(nil)

func newTestRenderer(t *testing.T, mutate func(cfg *config.RendererConfig)) (*Renderer, *rendertest.Recorder) {
	t.Helper()
	cfg := config.DefaultRendererConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	rec := rendertest.NewRecorder()
	r, err := New(rec, &cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() {
		if err := r.Shutdown(); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return r, rec
}

func testGeometry(t *testing.T, name string) *metadata.CPUResource {
	t.Helper()
	geo, err := metadata.NewGeometry(name, &metadata.GeometryData{
		Layout: metadata.VertexLayout{
			Stride: 20,
			Attributes: []metadata.VertexAttribute{
				{Location: 0, Components: 3},
				{Location: 1, Components: 2, Offset: 12},
			},
		},
		Vertices: []float32{
			-0.5, -0.5, 0, 0, 0,
			0.5, -0.5, 0, 1, 0,
			0, 0.5, 0, 0.5, 1,
		},
	})
	if err != nil {
		t.Fatalf("NewGeometry() error = %v", err)
	}
	return geo
}

func testProgram(t *testing.T, name string, samplers ...uint8) *metadata.CPUResource {
	t.Helper()
	data := &metadata.ProgramData{
		VertexSource:   "#version 330 core\nvoid main() {}",
		FragmentSource: "#version 330 core\nvoid main() {}",
		Uniforms: []metadata.ShaderUniformDecl{
			{Name: "u_mvp", Type: metadata.ShaderUniformTypeMat4},
			{Name: "u_tint", Type: metadata.ShaderUniformTypeVec4},
		},
	}
	for i, unit := range samplers {
		data.Uniforms = append(data.Uniforms, metadata.ShaderUniformDecl{
			Name: "u_sampler" + string(rune('0'+i)),
			Type: metadata.ShaderUniformTypeSampler,
			Unit: unit,
		})
	}
	prog, err := metadata.NewProgram(name, data)
	if err != nil {
		t.Fatalf("NewProgram() error = %v", err)
	}
	return prog
}

func testTexture(t *testing.T, name string) *metadata.CPUResource {
	t.Helper()
	tex, err := metadata.NewTexture(name, &metadata.TextureData{
		Width:  2,
		Height: 2,
		Format: metadata.PixelFormatRGBA8,
		Pixels: []uint8{
			255, 0, 0, 255, 0, 255, 0, 255,
			0, 0, 255, 255, 255, 255, 255, 255,
		},
	})
	if err != nil {
		t.Fatalf("NewTexture() error = %v", err)
	}
	return tex
}

func submit(t *testing.T, r *Renderer, resources ...*metadata.CPUResource) {
	t.Helper()
	for _, res := range resources {
		if err := r.Submit(res); err != nil {
			t.Fatalf("Submit(%s) error = %v", res, err)
		}
	}
}

func drawFrame(t *testing.T, r *Renderer, cmds ...metadata.Command) *FrameReport {
	t.Helper()
	report, err := r.DrawFrame(&metadata.RenderPacket{Commands: cmds})
	if err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	return report
}

func usageErrors(report *FrameReport) []*UsageError {
	var out []*UsageError
	for _, err := range report.Diagnostics {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			out = append(out, uerr)
		}
	}
	return out
}

func TestTexturedTriangle(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "triangle")
	prog := testProgram(t, "textured", 0)
	tex := testTexture(t, "checker")
	submit(t, r, geo, prog, tex)

	report := drawFrame(t, r,
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdBindTexture(0, tex),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	)

	if got := rec.CountName(rendertest.OpCreate, "checker"); got != 1 {
		t.Errorf("texture creations = %d, want 1", got)
	}
	if got := rec.Count(rendertest.OpBindTexture); got != 1 {
		t.Errorf("texture binds = %d, want 1", got)
	}
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws = %d, want 1", got)
	}
	if len(report.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", report.Diagnostics)
	}
	if report.Stats.DrawCalls != 1 || report.Stats.Creations != 3 {
		t.Errorf("Stats = %+v, want 1 draw and 3 creations", report.Stats)
	}
	calls := rec.Calls()
	last := calls[len(calls)-1]
	if last.Op != rendertest.OpDraw || last.First != 0 || last.Count != 3 {
		t.Errorf("last call = %+v, want Draw [0, 3)", last)
	}
}

func TestEnsureResourceIdempotent(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	for _, res := range []*metadata.CPUResource{
		testGeometry(t, "geo"),
		testProgram(t, "prog"),
		testTexture(t, "tex"),
	} {
		submit(t, r, res)
		first, err := r.EnsureResource(res)
		if err != nil {
			t.Fatalf("EnsureResource(%s) error = %v", res, err)
		}
		second, err := r.EnsureResource(res)
		if err != nil {
			t.Fatalf("EnsureResource(%s) second error = %v", res, err)
		}
		if first != second {
			t.Errorf("EnsureResource(%s) returned a different resource on the second call", res)
		}
		if got := rec.CountName(rendertest.OpCreate, res.Name); got != 1 {
			t.Errorf("%s creations = %d, want 1", res, got)
		}
		if !r.Factory().IsCurrent(res) {
			t.Errorf("IsCurrent(%s) = false after EnsureResource", res)
		}
	}
}

func TestInvalidateAllRecreatesOnce(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	tex := testTexture(t, "tex")
	submit(t, r, geo, tex)

	oldGeo, _ := r.EnsureResource(geo)
	oldTex, _ := r.EnsureResource(tex)
	r.InvalidateContext()

	if oldGeo.Valid() || oldTex.Valid() {
		t.Fatal("resources still valid after InvalidateContext")
	}
	if r.Factory().IsCurrent(geo) {
		t.Error("IsCurrent() = true after InvalidateContext")
	}
	for i := 0; i < 3; i++ {
		if _, err := r.EnsureResource(geo); err != nil {
			t.Fatalf("EnsureResource() error = %v", err)
		}
		if _, err := r.EnsureResource(tex); err != nil {
			t.Fatalf("EnsureResource() error = %v", err)
		}
	}
	if got := rec.CountName(rendertest.OpCreate, "geo"); got != 2 {
		t.Errorf("geometry creations = %d, want 2", got)
	}
	if got := rec.CountName(rendertest.OpCreate, "tex"); got != 2 {
		t.Errorf("texture creations = %d, want 2", got)
	}
	if got := rec.Count(rendertest.OpDestroy); got != 0 {
		t.Errorf("destroys = %d, want 0 for handles lost with the context", got)
	}
}

func TestDirtyRecreatesOnce(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	tex := testTexture(t, "tex")
	submit(t, r, tex)
	old, _ := r.EnsureResource(tex)

	if err := tex.UpdateTexturePixels(1, 1, []uint8{1, 2, 3, 4}); err != nil {
		t.Fatalf("UpdateTexturePixels() error = %v", err)
	}
	var fresh metadata.GPUResource
	for i := 0; i < 4; i++ {
		gpu, err := r.EnsureResource(tex)
		if err != nil {
			t.Fatalf("EnsureResource() error = %v", err)
		}
		if fresh != nil && gpu != fresh {
			t.Fatal("repeated EnsureResource returned a different resource")
		}
		fresh = gpu
	}
	if fresh == old {
		t.Error("dirty resource was not rebuilt")
	}
	if old.Valid() {
		t.Error("replaced resource is still valid")
	}
	if got := rec.CountName(rendertest.OpCreate, "tex"); got != 2 {
		t.Errorf("creations = %d, want 2", got)
	}
	if got := rec.CountName(rendertest.OpDestroy, "tex"); got != 1 {
		t.Errorf("destroys = %d, want 1", got)
	}
	if tex.IsDirty() {
		t.Error("dirty flag still set after rebuild")
	}

	// Submit on a registered resource marks it dirty as well.
	submit(t, r, tex)
	if _, err := r.EnsureResource(tex); err != nil {
		t.Fatalf("EnsureResource() error = %v", err)
	}
	if got := rec.CountName(rendertest.OpCreate, "tex"); got != 3 {
		t.Errorf("creations after resubmit = %d, want 3", got)
	}
}

func TestDrawWithoutBindings(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog")
	submit(t, r, geo, prog)

	tests := []struct {
		name string
		cmds []metadata.Command
	}{
		{"nothing bound", []metadata.Command{
			metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		}},
		{"no program", []metadata.Command{
			metadata.CmdBindGeometry(geo),
			metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		}},
		{"no geometry", []metadata.Command{
			metadata.CmdBindProgram(prog),
			metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Reset()
			report := drawFrame(t, r, tt.cmds...)
			if got := rec.Count(rendertest.OpDraw); got != 0 {
				t.Errorf("draws forwarded = %d, want 0", got)
			}
			uerrs := usageErrors(report)
			if len(uerrs) != 1 {
				t.Fatalf("usage errors = %v, want 1", report.Diagnostics)
			}
			if uerrs[0].Command != metadata.CommandDraw || uerrs[0].Index != len(tt.cmds)-1 {
				t.Errorf("usage error = %+v, want the draw command", uerrs[0])
			}
			if !errors.Is(uerrs[0], core.ErrInvalidUsage) {
				t.Error("usage error does not unwrap to core.ErrInvalidUsage")
			}
			if report.Stats.SkippedDraws != 1 {
				t.Errorf("SkippedDraws = %d, want 1", report.Stats.SkippedDraws)
			}
		})
	}
}

func TestBindingsDoNotCarryAcrossFrames(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog")
	submit(t, r, geo, prog)

	drawFrame(t, r,
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
	)
	report := drawFrame(t, r, metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0))
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws = %d, want 1", got)
	}
	if len(usageErrors(report)) != 1 {
		t.Errorf("second frame diagnostics = %v, want one usage error", report.Diagnostics)
	}
}

func TestBindProgramElision(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	a := testProgram(t, "a")
	b := testProgram(t, "b")
	submit(t, r, a, b)

	report := drawFrame(t, r,
		metadata.CmdBindProgram(a),
		metadata.CmdBindProgram(a),
	)
	if got := rec.Count(rendertest.OpBindProgram); got != 1 {
		t.Errorf("binds for same program = %d, want 1", got)
	}
	if report.Stats.ElidedBinds != 1 {
		t.Errorf("ElidedBinds = %d, want 1", report.Stats.ElidedBinds)
	}

	rec.Reset()
	drawFrame(t, r,
		metadata.CmdBindProgram(a),
		metadata.CmdBindProgram(b),
	)
	if got := rec.CountName(rendertest.OpBindProgram, "b"); got != 1 {
		t.Errorf("binds for a different program = %d, want 1", got)
	}
	// The cache is reset per frame, so the first bind of a frame always goes out.
	if got := rec.CountName(rendertest.OpBindProgram, "a"); got != 1 {
		t.Errorf("first bind of the frame = %d, want 1", got)
	}
}

func TestStateElision(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	viewport := metadata.Rect{Width: 640, Height: 480}
	report := drawFrame(t, r,
		metadata.CmdSetBlendState(metadata.BlendStateAlpha),
		metadata.CmdSetBlendState(metadata.BlendStateAlpha),
		metadata.CmdSetBlendState(metadata.BlendStatePremultiplied),
		metadata.CmdSetDepthState(metadata.DepthState{Test: true, Write: true}),
		metadata.CmdSetDepthState(metadata.DepthState{Test: true, Write: true}),
		metadata.CmdSetViewport(viewport),
		metadata.CmdSetViewport(viewport),
		metadata.CmdSetScissor(false, metadata.Rect{Width: 10, Height: 10}),
		metadata.CmdSetScissor(false, metadata.Rect{Width: 20, Height: 20}),
		metadata.CmdSetStencilState(metadata.StencilState{}),
	)
	tests := []struct {
		op   rendertest.Op
		want int
	}{
		{rendertest.OpSetBlendState, 2},
		{rendertest.OpSetDepthState, 1},
		{rendertest.OpSetViewport, 1},
		{rendertest.OpSetScissor, 1},
		{rendertest.OpSetStencilState, 1},
	}
	for _, tt := range tests {
		if got := rec.Count(tt.op); got != tt.want {
			t.Errorf("%s calls = %d, want %d", tt.op, got, tt.want)
		}
	}
	if report.Stats.StateCalls != 6 || report.Stats.ElidedStateCalls != 4 {
		t.Errorf("Stats = %+v, want 6 state calls and 4 elided", report.Stats)
	}
}

func TestUniforms(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	prog := testProgram(t, "prog", 0)
	submit(t, r, prog)

	tint := mgl32.Vec4{1, 0, 0, 1}
	report := drawFrame(t, r,
		metadata.CmdSetUniform("u_tint", tint),
		metadata.CmdBindProgram(prog),
		metadata.CmdSetUniform("u_tint", tint),
		metadata.CmdSetUniform("u_tint", tint),
		metadata.CmdSetUniform("u_mvp", mgl32.Ident4()),
		metadata.CmdSetUniform("u_missing", float32(1)),
		metadata.CmdSetUniform("u_tint", mgl32.Vec3{1, 0, 0}),
		metadata.CmdSetUniform("u_sampler0", int32(1)),
	)
	if got := rec.Count(rendertest.OpSetUniform); got != 2 {
		t.Errorf("uniform calls = %d, want 2", got)
	}
	uerrs := usageErrors(report)
	wantIdx := []int{0, 5, 6, 7}
	if len(uerrs) != len(wantIdx) {
		t.Fatalf("usage errors = %v, want %d", report.Diagnostics, len(wantIdx))
	}
	for i, idx := range wantIdx {
		if uerrs[i].Index != idx {
			t.Errorf("usage error %d index = %d, want %d", i, uerrs[i].Index, idx)
		}
	}
}

func TestProgramCreationFailure(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	rec.FailCreate("broken", errors.New("0:1(1): error: syntax error"))
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "broken")
	submit(t, r, geo, prog)

	var fired []*ResourceError
	core.EventSystemInitialize()
	defer core.EventSystemShutdown()
	core.EventRegister(core.EVENT_CODE_RESOURCE_CREATION_FAILED, t, func(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
		if rerr, ok := ctx.Payload.(*ResourceError); ok {
			fired = append(fired, rerr)
		}
		return true
	})

	report := drawFrame(t, r,
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		metadata.CmdBindProgram(prog),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	)

	var rerr *ResourceError
	var found bool
	for _, err := range report.Diagnostics {
		if errors.As(err, &rerr) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("Diagnostics = %v, want a ResourceError", report.Diagnostics)
	}
	if rerr.Kind != metadata.ResourceKindProgram || rerr.Name != "broken" || rerr.ID != prog.ID {
		t.Errorf("ResourceError = %+v, want kind Program for %q", rerr, "broken")
	}
	if !errors.Is(rerr, core.ErrResourceCreation) {
		t.Error("ResourceError does not unwrap to core.ErrResourceCreation")
	}
	if _, ok := r.Factory().Lookup(prog); ok {
		t.Error("failed program has a GPU resource")
	}
	if got := rec.Count(rendertest.OpDraw); got != 0 {
		t.Errorf("draws forwarded = %d, want 0", got)
	}
	if got := len(usageErrors(report)); got != 2 {
		t.Errorf("usage errors = %d, want 2 (one per skipped draw)", got)
	}
	// One attempt per frame.
	if got := rec.CountName(rendertest.OpCreate, "broken"); got != 1 {
		t.Errorf("creation attempts = %d, want 1", got)
	}
	if report.Stats.CreationFailures != 1 {
		t.Errorf("CreationFailures = %d, want 1", report.Stats.CreationFailures)
	}
	if len(fired) != 1 {
		t.Errorf("creation failure events = %d, want 1", len(fired))
	}

	// Next frame retries and, once the source is fixed, succeeds.
	rec.ClearFailures()
	report = drawFrame(t, r,
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	)
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws after recovery = %d, want 1", got)
	}
	if len(report.Diagnostics) != 0 {
		t.Errorf("Diagnostics after recovery = %v", report.Diagnostics)
	}
}

func TestCreationFailureListenerUsesRenderer(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	rec.FailCreate("broken", errors.New("link error"))
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "broken")
	submit(t, r, geo, prog)

	core.EventSystemInitialize()
	defer core.EventSystemShutdown()
	var calls int
	core.EventRegister(core.EVENT_CODE_RESOURCE_CREATION_FAILED, t, func(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
		calls++
		if got := r.Factory().Len(); got != 3 {
			t.Errorf("Len() inside the listener = %d, want 3", got)
		}
		if err := r.Submit(geo); err != nil {
			t.Errorf("Submit() inside the listener error = %v", err)
		}
		return true
	})

	done := make(chan error, 1)
	go func() {
		_, err := r.DrawFrame(&metadata.RenderPacket{Commands: []metadata.Command{
			metadata.CmdBindGeometry(geo),
			metadata.CmdBindProgram(prog),
			metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		}})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("DrawFrame() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DrawFrame() did not return while a failure listener used the renderer")
	}
	if calls != 1 {
		t.Errorf("creation failure events = %d, want 1", calls)
	}
}

func TestTextureFailurePolicy(t *testing.T) {
	tests := []struct {
		policy    config.FailurePolicy
		wantDraws int
		wantBinds int
	}{
		{config.FailurePolicyPlaceholder, 1, 1},
		{config.FailurePolicySkip, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			r, rec := newTestRenderer(t, func(cfg *config.RendererConfig) {
				cfg.FailurePolicy = tt.policy
			})
			rec.FailCreate("tex", errors.New("out of memory"))
			geo := testGeometry(t, "geo")
			prog := testProgram(t, "prog", 0)
			tex := testTexture(t, "tex")
			submit(t, r, geo, prog, tex)

			report := drawFrame(t, r,
				metadata.CmdBindGeometry(geo),
				metadata.CmdBindProgram(prog),
				metadata.CmdBindTexture(0, tex),
				metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
			)
			if got := rec.Count(rendertest.OpDraw); got != tt.wantDraws {
				t.Errorf("draws = %d, want %d", got, tt.wantDraws)
			}
			if got := rec.CountName(rendertest.OpBindTexture, metadata.PLACEHOLDER_TEXTURE_NAME); got != tt.wantBinds {
				t.Errorf("placeholder binds = %d, want %d", got, tt.wantBinds)
			}
			if len(usageErrors(report)) != 0 {
				t.Errorf("usage errors = %v, want none for a creation failure", report.Diagnostics)
			}
			if report.Stats.CreationFailures != 1 {
				t.Errorf("CreationFailures = %d, want 1", report.Stats.CreationFailures)
			}
		})
	}
}

func TestDrawRequiresDeclaredTextures(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog", 0, 1)
	tex := testTexture(t, "tex")
	submit(t, r, geo, prog, tex)

	report := drawFrame(t, r,
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdBindTexture(0, tex),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
		metadata.CmdBindTexture(1, tex),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	)
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws = %d, want 1", got)
	}
	uerrs := usageErrors(report)
	if len(uerrs) != 1 || uerrs[0].Index != 3 {
		t.Errorf("usage errors = %v, want one at command 3", report.Diagnostics)
	}
	// The same texture on two units is two bind calls.
	if got := rec.Count(rendertest.OpBindTexture); got != 2 {
		t.Errorf("texture binds = %d, want 2", got)
	}
}

func TestDrawRange(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog")
	submit(t, r, geo, prog)

	tests := []struct {
		name      string
		first     uint32
		count     uint32
		wantCount uint32
		wantDraw  bool
	}{
		{"everything", 0, 0, 3, true},
		{"tail", 1, 0, 2, true},
		{"exact", 0, 3, 3, true},
		{"overrun", 1, 3, 0, false},
		{"first past end", 3, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Reset()
			report := drawFrame(t, r,
				metadata.CmdBindGeometry(geo),
				metadata.CmdBindProgram(prog),
				metadata.CmdDraw(metadata.PrimitiveTriangles, tt.first, tt.count),
			)
			draws := 0
			for _, c := range rec.Calls() {
				if c.Op != rendertest.OpDraw {
					continue
				}
				draws++
				if c.Count != tt.wantCount {
					t.Errorf("draw count = %d, want %d", c.Count, tt.wantCount)
				}
			}
			if (draws == 1) != tt.wantDraw {
				t.Errorf("draws = %d, want draw=%v", draws, tt.wantDraw)
			}
			if !tt.wantDraw && len(usageErrors(report)) != 1 {
				t.Errorf("Diagnostics = %v, want one usage error", report.Diagnostics)
			}
		})
	}
}

func TestUnregisteredResource(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "never-submitted")
	report := drawFrame(t, r, metadata.CmdBindGeometry(geo))
	if got := rec.Count(rendertest.OpCreate); got != 0 {
		t.Errorf("creations = %d, want 0", got)
	}
	uerrs := usageErrors(report)
	if len(uerrs) != 1 || uerrs[0].Command != metadata.CommandBindGeometry {
		t.Errorf("Diagnostics = %v, want one BindGeometry usage error", report.Diagnostics)
	}
}

func TestWrongKind(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	tex := testTexture(t, "tex")
	submit(t, r, tex)
	report := drawFrame(t, r,
		metadata.CmdBindProgram(tex),
		metadata.CmdBindTexture(200, tex),
		metadata.CmdSetRenderTarget(tex),
		metadata.CmdClear(metadata.ClearValues{Flags: metadata.ClearColour}),
	)
	if got := len(usageErrors(report)); got != 4 {
		t.Errorf("usage errors = %d, want 4: %v", got, report.Diagnostics)
	}
	if got := rec.Count(rendertest.OpClear); got != 0 {
		t.Errorf("clears = %d, want 0 with an unusable target", got)
	}
}

func TestDebugReturnsUsageErrors(t *testing.T) {
	r, _ := newTestRenderer(t, func(cfg *config.RendererConfig) { cfg.Debug = true })
	report, err := r.DrawFrame(&metadata.RenderPacket{Commands: []metadata.Command{
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	}})
	if !errors.Is(err, core.ErrInvalidUsage) {
		t.Fatalf("DrawFrame() error = %v, want ErrInvalidUsage", err)
	}
	if report == nil || report.Stats.UsageErrors != 1 {
		t.Errorf("report = %+v, want one usage error", report)
	}
}

func TestRenderTarget(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog", 0)
	rt, err := metadata.NewRenderTarget("offscreen", &metadata.RenderTargetData{Width: 64, Height: 64, Depth: true})
	if err != nil {
		t.Fatalf("NewRenderTarget() error = %v", err)
	}
	tex := testTexture(t, "tex")
	submit(t, r, geo, prog, rt, tex)

	report := drawFrame(t, r,
		metadata.CmdSetRenderTarget(rt),
		metadata.CmdClear(metadata.ClearValues{Flags: metadata.ClearColour | metadata.ClearDepth, Depth: 1}),
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdBindTexture(0, tex),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
		// Sampling the target while drawing into it is rejected.
		metadata.CmdBindTexture(0, rt),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
		metadata.CmdSetRenderTarget(nil),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 0),
	)
	if got := rec.Count(rendertest.OpDraw); got != 2 {
		t.Errorf("draws = %d, want 2", got)
	}
	uerrs := usageErrors(report)
	if len(uerrs) != 1 || uerrs[0].Index != 7 {
		t.Errorf("usage errors = %v, want one at command 7", report.Diagnostics)
	}
	if got := rec.CountName(rendertest.OpBindRenderTarget, "offscreen"); got != 1 {
		t.Errorf("offscreen binds = %d, want 1", got)
	}
}

func TestDefaultFramebufferBoundImplicitly(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	drawFrame(t, r,
		metadata.CmdClear(metadata.ClearValues{Flags: metadata.ClearColour}),
		metadata.CmdClear(metadata.ClearValues{Flags: metadata.ClearColour}),
	)
	if got := rec.Count(rendertest.OpBindRenderTarget); got != 1 {
		t.Errorf("render target binds = %d, want 1", got)
	}
	if got := rec.Count(rendertest.OpClear); got != 2 {
		t.Errorf("clears = %d, want 2", got)
	}
}

func TestContextLostMidFrame(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	prog := testProgram(t, "prog")
	submit(t, r, geo, prog)

	var lostEvents int
	core.EventSystemInitialize()
	defer core.EventSystemShutdown()
	core.EventRegister(core.EVENT_CODE_CONTEXT_LOST, t, func(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
		lostEvents++
		return true
	})

	frame := []metadata.Command{
		metadata.CmdBindGeometry(geo),
		metadata.CmdBindProgram(prog),
		metadata.CmdDraw(metadata.PrimitiveTriangles, 0, 3),
	}
	drawFrame(t, r, frame...)
	oldGeo, _ := r.Factory().Lookup(geo)

	rec.LoseContextOn(rendertest.OpBindProgram)
	report, err := r.DrawFrame(&metadata.RenderPacket{Commands: frame})
	if !errors.Is(err, core.ErrContextLost) {
		t.Fatalf("DrawFrame() error = %v, want ErrContextLost", err)
	}
	if report == nil || report.Stats.Commands != 2 {
		t.Errorf("report = %+v, want the frame aborted after 2 commands", report)
	}
	if oldGeo.Valid() {
		t.Error("geometry still valid after context loss")
	}
	if lostEvents != 1 {
		t.Errorf("context lost events = %d, want 1", lostEvents)
	}
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws = %d, want only the first frame's", got)
	}

	// Until the host restores the context every frame fails fast.
	if _, err := r.DrawFrame(&metadata.RenderPacket{Commands: frame}); !errors.Is(err, core.ErrContextLost) {
		t.Errorf("DrawFrame() on a lost context error = %v", err)
	}

	rec.Restore()
	rec.Reset()
	report = drawFrame(t, r, frame...)
	if report.Stats.Creations != 2 {
		t.Errorf("Creations after restore = %d, want 2", report.Stats.Creations)
	}
	if got := rec.Count(rendertest.OpDraw); got != 1 {
		t.Errorf("draws after restore = %d, want 1", got)
	}
}

func TestContextLostOnBeginFrame(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	tex := testTexture(t, "tex")
	submit(t, r, tex)
	gpu, _ := r.EnsureResource(tex)

	rec.LoseContext()
	if _, err := r.DrawFrame(&metadata.RenderPacket{}); !errors.Is(err, core.ErrContextLost) {
		t.Fatalf("DrawFrame() error = %v, want ErrContextLost", err)
	}
	if gpu.Valid() {
		t.Error("texture still valid after context loss")
	}
	if r.Factory().Len() != 2 {
		t.Errorf("registered resources = %d, want the texture and the placeholder", r.Factory().Len())
	}
}

func TestEnsureResourceContextLost(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	warm := testTexture(t, "warm")
	cold := testTexture(t, "cold")
	submit(t, r, warm, cold)
	gpu, err := r.EnsureResource(warm)
	if err != nil {
		t.Fatalf("EnsureResource() error = %v", err)
	}

	core.EventSystemInitialize()
	defer core.EventSystemShutdown()
	var lostEvents int
	core.EventRegister(core.EVENT_CODE_CONTEXT_LOST, t, func(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
		lostEvents++
		return true
	})

	rec.LoseContext()
	if _, err := r.EnsureResource(cold); !errors.Is(err, core.ErrContextLost) {
		t.Fatalf("EnsureResource() error = %v, want ErrContextLost", err)
	}
	if gpu.Valid() {
		t.Error("warm texture still valid after context loss")
	}
	if lostEvents != 1 {
		t.Errorf("context lost events = %d, want 1", lostEvents)
	}

	rec.Restore()
	rebuilt, err := r.EnsureResource(warm)
	if err != nil {
		t.Fatalf("EnsureResource() after restore error = %v", err)
	}
	if rebuilt == gpu {
		t.Error("EnsureResource() after restore returned the dead resource")
	}
}

func TestDeferredRelease(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	tex := testTexture(t, "tex")
	submit(t, r, tex)
	if _, err := r.EnsureResource(tex); err != nil {
		t.Fatalf("EnsureResource() error = %v", err)
	}

	// Released from a thread without the context.
	rec.SetCurrent(false)
	if err := r.ReleaseResource(tex); err != nil {
		t.Fatalf("ReleaseResource() error = %v", err)
	}
	if tex.Registered() {
		t.Error("released resource is still registered")
	}
	if got := rec.Count(rendertest.OpDestroy); got != 0 {
		t.Errorf("destroys without a current context = %d, want 0", got)
	}
	if r.Factory().PendingReleases() != 1 {
		t.Errorf("PendingReleases() = %d, want 1", r.Factory().PendingReleases())
	}
	report := drawFrame(t, r, metadata.CmdBindTexture(0, tex))
	if len(usageErrors(report)) != 1 {
		t.Errorf("binding a released texture: Diagnostics = %v, want one usage error", report.Diagnostics)
	}

	rec.SetCurrent(true)
	report = drawFrame(t, r)
	if got := rec.CountName(rendertest.OpDestroy, "tex"); got != 1 {
		t.Errorf("destroys after flush = %d, want 1", got)
	}
	if report.Stats.Releases != 1 {
		t.Errorf("Releases = %d, want 1", report.Stats.Releases)
	}
	if r.Factory().PendingReleases() != 0 {
		t.Errorf("PendingReleases() = %d after flush", r.Factory().PendingReleases())
	}
}

func TestImmediateRelease(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	geo := testGeometry(t, "geo")
	submit(t, r, geo)
	gpu, _ := r.EnsureResource(geo)
	if err := r.ReleaseResource(geo); err != nil {
		t.Fatalf("ReleaseResource() error = %v", err)
	}
	if gpu.Valid() {
		t.Error("released resource still valid")
	}
	if got := rec.CountName(rendertest.OpDestroy, "geo"); got != 1 {
		t.Errorf("destroys = %d, want 1", got)
	}
	if err := r.ReleaseResource(geo); !errors.Is(err, core.ErrInvalidUsage) {
		t.Errorf("second ReleaseResource() error = %v, want ErrInvalidUsage", err)
	}
}

func TestShutdownDestroysEverything(t *testing.T) {
	rec := rendertest.NewRecorder()
	r, err := New(rec, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	geo := testGeometry(t, "geo")
	tex := testTexture(t, "tex")
	submit(t, r, geo, tex)
	r.EnsureResource(geo)
	r.EnsureResource(tex)

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if rec.Live() != 0 {
		t.Errorf("live resources after shutdown = %d, want 0", rec.Live())
	}
	if geo.Registered() || tex.Registered() {
		t.Error("resources still registered after shutdown")
	}
	if _, err := r.DrawFrame(&metadata.RenderPacket{}); err == nil {
		t.Error("DrawFrame() after Shutdown succeeded")
	}
}

func TestTextureUnitsClampedToBackend(t *testing.T) {
	rec := rendertest.NewRecorder()
	rec.SetMaxTextureUnits(2)
	r, err := New(rec, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer r.Shutdown()

	tex := testTexture(t, "tex")
	submit(t, r, tex)
	report := drawFrame(t, r, metadata.CmdBindTexture(2, tex))
	if len(usageErrors(report)) != 1 {
		t.Errorf("binding unit 2 of 2: Diagnostics = %v, want one usage error", report.Diagnostics)
	}
}
