package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-gl/engine/config"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/math"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

// FrameStats counts what one DrawFrame did.
type FrameStats struct {
	Commands         uint32
	DrawCalls        uint32
	SkippedDraws     uint32
	BindCalls        uint32
	ElidedBinds      uint32
	StateCalls       uint32
	ElidedStateCalls uint32
	UniformCalls     uint32
	Creations        uint32
	CreationFailures uint32
	Releases         uint32
	UsageErrors      uint32
}

// FrameReport is handed back for every frame, also when the frame fails.
// Diagnostics holds the creation failures and usage errors seen this frame.
type FrameReport struct {
	Frame       uint64
	Stats       FrameStats
	Diagnostics []error
}

type textureBinding struct {
	cpu *metadata.CPUResource
	gpu metadata.GPUResource
	// Creation failed and the failure policy left the unit empty.
	failed bool
}

// What the current frame's commands have bound, as opposed to what the
// backend has bound (stateCache).
type frameBindings struct {
	geometryCPU *metadata.CPUResource
	geometry    metadata.GPUResource
	programCPU  *metadata.CPUResource
	program     metadata.GPUResource
	textures    []textureBinding
	targetCPU   *metadata.CPUResource
	target      metadata.GPUResource
	// A render target was requested but could not be materialized.
	targetFailed bool
}

func (b *frameBindings) reset() {
	textures := b.textures
	for i := range textures {
		textures[i] = textureBinding{}
	}
	*b = frameBindings{textures: textures}
}

// Renderer executes command streams against a backend. It resolves CPU
// resources through its ResourceFactory right before use and skips backend
// calls the state cache proves redundant.
//
// All methods except Submit and ReleaseResource must be called on the thread
// that owns the graphics context.
type Renderer struct {
	backend     RendererBackend
	config      config.RendererConfig
	factory     *ResourceFactory
	cache       *stateCache
	placeholder *metadata.CPUResource
	units       uint8
	frame       uint64
	initialized bool

	bound    frameBindings
	report   *FrameReport
	usage    []error
	reported map[error]bool
}

func New(backend RendererBackend, cfg *config.RendererConfig) (*Renderer, error) {
	if backend == nil {
		return nil, errors.New("renderer requires a backend")
	}
	rc := config.DefaultRendererConfig()
	if cfg != nil {
		rc = *cfg
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		backend:  backend,
		config:   rc,
		factory:  NewResourceFactory(backend, rc.MaxResources),
		reported: make(map[error]bool),
	}, nil
}

func (r *Renderer) Initialize() error {
	if r.initialized {
		return nil
	}
	if err := r.backend.Initialize(); err != nil {
		return fmt.Errorf("renderer backend failed to initialize: %w", err)
	}

	r.units = r.config.TextureUnits
	if limit := r.backend.MaxTextureUnits(); limit > 0 && r.units > limit {
		core.LogWarn("renderer.texture_units=%d exceeds the backend limit, using %d", r.units, limit)
		r.units = math.Clamp(r.units, 1, limit)
	}
	r.cache = newStateCache(r.units)
	r.bound.textures = make([]textureBinding, r.units)

	placeholder, err := metadata.NewTexture(metadata.PLACEHOLDER_TEXTURE_NAME, metadata.NewPlaceholderTextureData())
	if err != nil {
		return err
	}
	if err := r.factory.Register(placeholder); err != nil {
		return err
	}
	r.placeholder = placeholder
	r.initialized = true
	core.LogInfo("renderer initialized (texture units=%d, failure policy=%s)", r.units, r.config.FailurePolicy)
	return nil
}

func (r *Renderer) Shutdown() error {
	if !r.initialized {
		return nil
	}
	r.factory.Shutdown()
	r.placeholder = nil
	r.initialized = false
	if err := r.backend.Shutdown(); err != nil {
		return fmt.Errorf("renderer backend failed to shut down: %w", err)
	}
	core.LogInfo("renderer shut down")
	return nil
}

// Submit registers cpu, or marks it for rebuild when it is already known.
// Safe to call from the content thread.
func (r *Renderer) Submit(cpu *metadata.CPUResource) error {
	return r.factory.Submit(cpu)
}

// ReleaseResource unregisters cpu and frees its GPU side, deferring the
// deletion when called off the context thread.
func (r *Renderer) ReleaseResource(cpu *metadata.CPUResource) error {
	return r.factory.ReleaseResource(cpu)
}

// EnsureResource materializes cpu outside of a command stream, e.g. to warm up
// resources after loading. A lost context is handled as in DrawFrame.
func (r *Renderer) EnsureResource(cpu *metadata.CPUResource) (metadata.GPUResource, error) {
	gpu, err := r.factory.EnsureResource(cpu)
	if err != nil && errors.Is(err, core.ErrContextLost) {
		return nil, r.contextLost(err)
	}
	return gpu, err
}

// InvalidateContext is called when the graphics context was lost. Every GPU
// resource is marked dead and rebuilt on its next use.
func (r *Renderer) InvalidateContext() {
	r.factory.InvalidateAll()
	if r.cache != nil {
		r.cache.reset()
	}
	r.bound.reset()
}

func (r *Renderer) Factory() *ResourceFactory {
	return r.factory
}

// Frame is the number of the last frame started.
func (r *Renderer) Frame() uint64 {
	return r.frame
}

// DrawFrame runs packet's commands in order. Creation failures and usage
// errors do not stop the frame; they are logged and collected in the report.
// With renderer.debug set the usage errors are also returned. A lost context
// aborts the frame and returns an error wrapping core.ErrContextLost.
func (r *Renderer) DrawFrame(packet *metadata.RenderPacket) (*FrameReport, error) {
	if !r.initialized {
		return nil, errors.New("renderer is not initialized")
	}
	if packet == nil {
		return nil, &UsageError{Index: -1, Reason: "nil render packet"}
	}

	r.frame++
	report := &FrameReport{Frame: r.frame}
	r.report = report
	r.usage = r.usage[:0]
	clear(r.reported)
	defer func() { r.report = nil }()

	if err := r.backend.BeginFrame(); err != nil {
		if errors.Is(err, core.ErrContextLost) {
			return report, r.contextLost(err)
		}
		core.LogError("backend BeginFrame failed: %s", err)
		return report, err
	}
	r.factory.BeginFrame(r.frame)
	r.cache.reset()
	r.bound.reset()

	for i := range packet.Commands {
		report.Stats.Commands++
		err := r.execute(i, &packet.Commands[i])
		if err == nil && r.backend.ContextLost() {
			err = fmt.Errorf("context lost during command %d (%s): %w", i, packet.Commands[i].Type, core.ErrContextLost)
		}
		if err != nil {
			r.collectCounters()
			return report, r.contextLost(err)
		}
	}

	if err := r.backend.EndFrame(); err != nil {
		r.collectCounters()
		if errors.Is(err, core.ErrContextLost) {
			return report, r.contextLost(err)
		}
		core.LogError("backend EndFrame failed: %s", err)
		return report, err
	}
	r.collectCounters()

	if r.config.Debug && len(r.usage) > 0 {
		return report, errors.Join(r.usage...)
	}
	return report, nil
}

func (r *Renderer) collectCounters() {
	c := r.factory.takeCounters()
	r.report.Stats.Creations += c.creations
	r.report.Stats.CreationFailures += c.creationFailures
	r.report.Stats.Releases += c.releases
}

func (r *Renderer) contextLost(cause error) error {
	core.LogError("frame %d aborted: %s", r.frame, cause)
	r.InvalidateContext()
	ctx := core.EventContext{Payload: cause}
	ctx.Data.U32[0] = uint32(r.frame)
	core.EventFire(core.EVENT_CODE_CONTEXT_LOST, r, ctx)
	if errors.Is(cause, core.ErrContextLost) {
		return cause
	}
	return fmt.Errorf("%w: %w", core.ErrContextLost, cause)
}

func (r *Renderer) reportUsage(err *UsageError) {
	core.LogError(err.Error())
	r.usage = append(r.usage, err)
	if r.report != nil {
		r.report.Stats.UsageErrors++
		r.report.Diagnostics = append(r.report.Diagnostics, err)
	}
	ctx := core.EventContext{Payload: err}
	ctx.Data.U32[0] = uint32(err.Index)
	core.EventFire(core.EVENT_CODE_INVALID_USAGE, r, ctx)
}

func (r *Renderer) reportFailure(err error) {
	if r.reported[err] {
		return
	}
	r.reported[err] = true
	if r.report != nil {
		r.report.Diagnostics = append(r.report.Diagnostics, err)
	}
}

// resolve materializes cpu for command i. A nil resource with a nil error
// means the command cannot proceed and the problem has been reported.
func (r *Renderer) resolve(i int, cmd *metadata.Command, cpu *metadata.CPUResource) (metadata.GPUResource, error) {
	gpu, err := r.factory.EnsureResource(cpu)
	if err == nil {
		return gpu, nil
	}
	var uerr *UsageError
	switch {
	case errors.Is(err, core.ErrContextLost):
		return nil, err
	case errors.As(err, &uerr):
		r.reportUsage(usageErrorf(i, cmd.Type, "%s", uerr.Reason))
	default:
		r.reportFailure(err)
	}
	return nil, nil
}

func (r *Renderer) checkKind(i int, cmd *metadata.Command, kinds ...metadata.ResourceKind) bool {
	if cmd.Resource == nil {
		r.reportUsage(usageErrorf(i, cmd.Type, "no resource given"))
		return false
	}
	for _, k := range kinds {
		if cmd.Resource.Kind == k {
			return true
		}
	}
	r.reportUsage(usageErrorf(i, cmd.Type, "%s cannot be used here", cmd.Resource))
	return false
}

func (r *Renderer) bindCall(needed bool, call func()) {
	if !needed {
		r.report.Stats.ElidedBinds++
		return
	}
	call()
	r.report.Stats.BindCalls++
}

func (r *Renderer) stateCall(needed bool, call func()) {
	if !needed {
		r.report.Stats.ElidedStateCalls++
		return
	}
	call()
	r.report.Stats.StateCalls++
}

// execute applies one command. Only a lost context is returned as an error.
func (r *Renderer) execute(i int, cmd *metadata.Command) error {
	switch cmd.Type {
	case metadata.CommandBindGeometry:
		r.bound.geometryCPU, r.bound.geometry = nil, nil
		if !r.checkKind(i, cmd, metadata.ResourceKindGeometry) {
			return nil
		}
		gpu, err := r.resolve(i, cmd, cmd.Resource)
		if gpu == nil {
			return err
		}
		r.bound.geometryCPU, r.bound.geometry = cmd.Resource, gpu
		r.bindCall(r.cache.bindGeometry(gpu), func() { r.backend.BindGeometry(gpu) })

	case metadata.CommandBindProgram:
		r.bound.programCPU, r.bound.program = nil, nil
		if !r.checkKind(i, cmd, metadata.ResourceKindProgram) {
			return nil
		}
		gpu, err := r.resolve(i, cmd, cmd.Resource)
		if gpu == nil {
			return err
		}
		r.bound.programCPU, r.bound.program = cmd.Resource, gpu
		r.bindCall(r.cache.bindProgram(gpu), func() { r.backend.BindProgram(gpu) })

	case metadata.CommandBindTexture:
		return r.bindTexture(i, cmd)

	case metadata.CommandSetRenderTarget:
		return r.setRenderTarget(i, cmd)

	case metadata.CommandSetUniform:
		r.setUniform(i, cmd)

	case metadata.CommandDraw:
		r.draw(i, cmd)

	case metadata.CommandClear:
		if !r.targetUsable(i, cmd) {
			return nil
		}
		r.ensureTarget()
		r.backend.Clear(cmd.Clear)
		r.report.Stats.StateCalls++

	case metadata.CommandSetBlendState:
		r.stateCall(r.cache.setBlend(cmd.Blend), func() { r.backend.SetBlendState(cmd.Blend) })

	case metadata.CommandSetDepthState:
		r.stateCall(r.cache.setDepth(cmd.Depth), func() { r.backend.SetDepthState(cmd.Depth) })

	case metadata.CommandSetStencilState:
		r.stateCall(r.cache.setStencil(cmd.Stencil), func() { r.backend.SetStencilState(cmd.Stencil) })

	case metadata.CommandSetViewport:
		if cmd.Rect.Width <= 0 || cmd.Rect.Height <= 0 {
			r.reportUsage(usageErrorf(i, cmd.Type, "viewport %dx%d is empty", cmd.Rect.Width, cmd.Rect.Height))
			return nil
		}
		r.stateCall(r.cache.setViewport(cmd.Rect), func() { r.backend.SetViewport(cmd.Rect) })

	case metadata.CommandSetScissor:
		if cmd.Enabled && (cmd.Rect.Width < 0 || cmd.Rect.Height < 0) {
			r.reportUsage(usageErrorf(i, cmd.Type, "scissor %dx%d is negative", cmd.Rect.Width, cmd.Rect.Height))
			return nil
		}
		r.stateCall(r.cache.setScissor(cmd.Enabled, cmd.Rect), func() { r.backend.SetScissor(cmd.Enabled, cmd.Rect) })

	default:
		r.reportUsage(usageErrorf(i, cmd.Type, "unknown command"))
	}
	return nil
}

func (r *Renderer) bindTexture(i int, cmd *metadata.Command) error {
	if cmd.Unit >= r.units {
		r.reportUsage(usageErrorf(i, cmd.Type, "texture unit %d out of range (units=%d)", cmd.Unit, r.units))
		return nil
	}
	unit := &r.bound.textures[cmd.Unit]
	*unit = textureBinding{}
	if !r.checkKind(i, cmd, metadata.ResourceKindTexture, metadata.ResourceKindRenderTarget) {
		return nil
	}

	gpu, err := r.factory.EnsureResource(cmd.Resource)
	if err != nil {
		var uerr *UsageError
		switch {
		case errors.Is(err, core.ErrContextLost):
			return err
		case errors.As(err, &uerr):
			r.reportUsage(usageErrorf(i, cmd.Type, "%s", uerr.Reason))
			return nil
		}
		r.reportFailure(err)
		unit.cpu = cmd.Resource
		if cmd.Resource.Kind != metadata.ResourceKindTexture || r.config.FailurePolicy != config.FailurePolicyPlaceholder {
			unit.failed = true
			return nil
		}
		gpu, err = r.factory.EnsureResource(r.placeholder)
		if err != nil {
			if errors.Is(err, core.ErrContextLost) {
				return err
			}
			r.reportFailure(err)
			unit.failed = true
			return nil
		}
		core.LogDebug("unit %d: substituting placeholder for %s", cmd.Unit, cmd.Resource)
	}

	unit.cpu, unit.gpu = cmd.Resource, gpu
	r.bindCall(r.cache.bindTexture(cmd.Unit, gpu), func() { r.backend.BindTexture(cmd.Unit, gpu) })
	return nil
}

func (r *Renderer) setRenderTarget(i int, cmd *metadata.Command) error {
	r.bound.targetCPU, r.bound.target, r.bound.targetFailed = nil, nil, false
	if cmd.Resource == nil {
		r.bindCall(r.cache.bindTarget(nil), func() { r.backend.BindRenderTarget(nil) })
		return nil
	}
	if !r.checkKind(i, cmd, metadata.ResourceKindRenderTarget) {
		r.bound.targetCPU, r.bound.targetFailed = cmd.Resource, true
		return nil
	}
	gpu, err := r.resolve(i, cmd, cmd.Resource)
	if gpu == nil {
		r.bound.targetCPU, r.bound.targetFailed = cmd.Resource, true
		return err
	}
	r.bound.targetCPU, r.bound.target = cmd.Resource, gpu
	r.bindCall(r.cache.bindTarget(gpu), func() { r.backend.BindRenderTarget(gpu) })
	return nil
}

func (r *Renderer) setUniform(i int, cmd *metadata.Command) {
	if r.bound.program == nil {
		r.reportUsage(usageErrorf(i, cmd.Type, "uniform %q set with no program bound", cmd.Uniform))
		return
	}
	decl, ok := r.bound.programCPU.Program.Uniform(cmd.Uniform)
	if !ok {
		r.reportUsage(usageErrorf(i, cmd.Type, "%s declares no uniform %q", r.bound.programCPU, cmd.Uniform))
		return
	}
	if decl.Type == metadata.ShaderUniformTypeSampler {
		r.reportUsage(usageErrorf(i, cmd.Type, "sampler %q reads unit %d; bind a texture instead", decl.Name, decl.Unit))
		return
	}
	if !decl.Type.Accepts(cmd.Value) {
		r.reportUsage(usageErrorf(i, cmd.Type, "uniform %q is %s, got %T", decl.Name, decl.Type, cmd.Value))
		return
	}
	program := r.bound.program
	if !r.cache.setUniform(program, decl.Name, cmd.Value) {
		r.report.Stats.ElidedStateCalls++
		return
	}
	r.backend.SetUniform(program, decl.Name, decl.Type, cmd.Value)
	r.report.Stats.UniformCalls++
}

// targetUsable reports a render target that was requested but is unavailable.
func (r *Renderer) targetUsable(i int, cmd *metadata.Command) bool {
	if r.bound.targetFailed {
		r.reportUsage(usageErrorf(i, cmd.Type, "render target %s is not available", r.bound.targetCPU))
		return false
	}
	if r.bound.target != nil && !r.bound.target.Valid() {
		r.reportUsage(usageErrorf(i, cmd.Type, "render target %s was released", r.bound.targetCPU))
		return false
	}
	return true
}

// ensureTarget binds the default framebuffer if nothing was bound this frame.
func (r *Renderer) ensureTarget() {
	if r.cache.targetKnown() {
		return
	}
	r.cache.bindTarget(nil)
	r.backend.BindRenderTarget(nil)
	r.report.Stats.BindCalls++
}

func (r *Renderer) draw(i int, cmd *metadata.Command) {
	skip := func(format string, args ...interface{}) {
		r.report.Stats.SkippedDraws++
		r.reportUsage(usageErrorf(i, cmd.Type, format, args...))
	}

	b := &r.bound
	if b.geometry == nil {
		skip("draw with no geometry bound")
		return
	}
	if b.program == nil {
		skip("draw with no program bound")
		return
	}
	if !b.geometry.Valid() || !b.program.Valid() {
		skip("draw with a released geometry or program")
		return
	}
	if !r.targetUsable(i, cmd) {
		r.report.Stats.SkippedDraws++
		return
	}

	program := b.programCPU.Program
	for _, decl := range program.Uniforms {
		if decl.Type != metadata.ShaderUniformTypeSampler {
			continue
		}
		if decl.Unit >= r.units {
			skip("sampler %q reads unit %d beyond the %d available units", decl.Name, decl.Unit, r.units)
			return
		}
		tex := b.textures[decl.Unit]
		if tex.failed {
			// Creation failure already reported; the policy is to skip.
			r.report.Stats.SkippedDraws++
			core.LogDebug("draw %d skipped: %s on unit %d is unavailable", i, tex.cpu, decl.Unit)
			return
		}
		if tex.gpu == nil || !tex.gpu.Valid() {
			skip("sampler %q reads unit %d with no texture bound", decl.Name, decl.Unit)
			return
		}
		if b.target != nil && tex.gpu == b.target {
			skip("sampler %q reads from %s while rendering into it", decl.Name, b.targetCPU)
			return
		}
	}

	geometry := b.geometryCPU.Geometry
	total := geometry.ElementCount()
	count := cmd.Count
	if cmd.First >= total {
		skip("first element %d out of range (elements=%d)", cmd.First, total)
		return
	}
	if count == 0 {
		count = total - cmd.First
	}
	if uint64(cmd.First)+uint64(count) > uint64(total) {
		skip("elements [%d, %d) out of range (elements=%d)", cmd.First, uint64(cmd.First)+uint64(count), total)
		return
	}

	r.ensureTarget()
	r.backend.Draw(b.geometry, cmd.Primitive, cmd.First, count)
	r.report.Stats.DrawCalls++
}
