package renderer

import "github.com/spaghettifunk/anima-gl/engine/renderer/metadata"

// RendererBackend is the capability surface a graphics API has to provide.
// Create is the one creation hook: it dispatches on the CPU resource kind and
// returns a GPU resource of the matching kind. Everything else the renderer
// does is backend independent.
//
// All methods are called on the thread that owns the graphics context.
type RendererBackend interface {
	Initialize() error
	Shutdown() error
	// BeginFrame and EndFrame bracket one frame. Either may return an error
	// wrapping core.ErrContextLost.
	BeginFrame() error
	EndFrame() error

	// IsContextCurrent reports whether handles can be deleted right now.
	IsContextCurrent() bool
	// ContextLost reports whether the backend observed a context loss.
	ContextLost() bool
	// MaxTextureUnits is the number of sampler units available.
	MaxTextureUnits() uint8

	// Create materializes res. On failure every handle allocated along the
	// way has already been released. Create never mutates res.
	Create(res *metadata.CPUResource) (metadata.GPUResource, error)
	Destroy(gpu metadata.GPUResource)

	BindGeometry(geometry metadata.GPUResource)
	BindProgram(program metadata.GPUResource)
	// BindTexture accepts texture and render target resources.
	BindTexture(unit uint8, texture metadata.GPUResource)
	// BindRenderTarget selects the default framebuffer when target is nil.
	BindRenderTarget(target metadata.GPUResource)
	SetUniform(program metadata.GPUResource, name string, uniformType metadata.ShaderUniformType, value interface{})
	Draw(geometry metadata.GPUResource, primitive metadata.Primitive, first, count uint32)
	Clear(values metadata.ClearValues)
	SetBlendState(state metadata.BlendState)
	SetDepthState(state metadata.DepthState)
	SetStencilState(state metadata.StencilState)
	SetViewport(rect metadata.Rect)
	SetScissor(enabled bool, rect metadata.Rect)
}
