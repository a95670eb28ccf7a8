package metadata

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

/** @brief Marks an identifier that does not point at a live slot. */
const InvalidID uint32 = 4294967295

type ResourceKind int

/** @brief The kinds of drawable resources the renderer can materialize. */
const (
	/** @brief Vertex/index data. Materializes as buffer objects plus a vertex array. */
	ResourceKindGeometry ResourceKind = iota
	/** @brief Pixel data. Materializes as a texture object. */
	ResourceKindTexture
	/** @brief Shader sources and uniform table. Materializes as a program object. */
	ResourceKindProgram
	/** @brief Off-screen render target. Materializes as a framebuffer object. */
	ResourceKindRenderTarget
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindGeometry:
		return "Geometry"
	case ResourceKindTexture:
		return "Texture"
	case ResourceKindProgram:
		return "Program"
	case ResourceKindRenderTarget:
		return "RenderTarget"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

/**
 * @brief The engine-side, backend independent description of a drawable asset.
 *
 * Exactly one payload pointer is set and it always matches Kind. The payload
 * is owned by the content layer and is never touched by backend failures;
 * only the link to the GPU side (ID) can go stale.
 */
type CPUResource struct {
	/** @brief Slot in the renderer's resource table. InvalidID until registered. */
	ID uint32
	/** @brief Human readable name, used in diagnostics. */
	Name string
	/** @brief The resource kind. */
	Kind ResourceKind

	Geometry *GeometryData
	Texture  *TextureData
	Program  *ProgramData
	Target   *RenderTargetData

	dirty atomic.Bool
}

func newCPUResource(name string, kind ResourceKind) *CPUResource {
	if name == "" {
		name = uuid.NewString()
	}
	return &CPUResource{
		ID:   InvalidID,
		Name: name,
		Kind: kind,
	}
}

// NewGeometry validates data and wraps it in a Geometry CPU resource.
func NewGeometry(name string, data *GeometryData) (*CPUResource, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("geometry %q: %w", name, err)
	}
	r := newCPUResource(name, ResourceKindGeometry)
	r.Geometry = data
	return r, nil
}

// NewTexture validates data and wraps it in a Texture CPU resource.
func NewTexture(name string, data *TextureData) (*CPUResource, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	r := newCPUResource(name, ResourceKindTexture)
	r.Texture = data
	return r, nil
}

// NewProgram validates data and wraps it in a Program CPU resource.
func NewProgram(name string, data *ProgramData) (*CPUResource, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("program %q: %w", name, err)
	}
	r := newCPUResource(name, ResourceKindProgram)
	r.Program = data
	return r, nil
}

// NewRenderTarget validates data and wraps it in a RenderTarget CPU resource.
func NewRenderTarget(name string, data *RenderTargetData) (*CPUResource, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("render target %q: %w", name, err)
	}
	r := newCPUResource(name, ResourceKindRenderTarget)
	r.Target = data
	return r, nil
}

// Registered reports whether the resource currently owns a renderer slot.
func (r *CPUResource) Registered() bool {
	return r.ID != InvalidID
}

// MarkDirty flags the payload as changed. Safe to call from any goroutine.
func (r *CPUResource) MarkDirty() {
	r.dirty.Store(true)
}

func (r *CPUResource) IsDirty() bool {
	return r.dirty.Load()
}

// TakeDirty clears the dirty flag and reports whether it was set. Only the
// resource factory calls this, right before it rebuilds the GPU side.
func (r *CPUResource) TakeDirty() bool {
	return r.dirty.Swap(false)
}

// UpdateGeometry replaces the vertex/index payload.
func (r *CPUResource) UpdateGeometry(data *GeometryData) error {
	if r.Kind != ResourceKindGeometry {
		return fmt.Errorf("UpdateGeometry on %s resource %q", r.Kind, r.Name)
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("geometry %q: %w", r.Name, err)
	}
	r.Geometry = data
	r.MarkDirty()
	return nil
}

// UpdateTexturePixels swaps in new pixels, optionally with new dimensions.
func (r *CPUResource) UpdateTexturePixels(width, height uint32, pixels []uint8) error {
	if r.Kind != ResourceKindTexture {
		return fmt.Errorf("UpdateTexturePixels on %s resource %q", r.Kind, r.Name)
	}
	next := *r.Texture
	next.Width = width
	next.Height = height
	next.Pixels = pixels
	if err := next.Validate(); err != nil {
		return fmt.Errorf("texture %q: %w", r.Name, err)
	}
	r.Texture = &next
	r.MarkDirty()
	return nil
}

// UpdateProgramSource replaces the shader sources. The uniform table is kept.
func (r *CPUResource) UpdateProgramSource(vertexSource, fragmentSource string) error {
	if r.Kind != ResourceKindProgram {
		return fmt.Errorf("UpdateProgramSource on %s resource %q", r.Kind, r.Name)
	}
	next := *r.Program
	next.VertexSource = vertexSource
	next.FragmentSource = fragmentSource
	if err := next.Validate(); err != nil {
		return fmt.Errorf("program %q: %w", r.Name, err)
	}
	r.Program = &next
	r.MarkDirty()
	return nil
}

// ResizeRenderTarget changes the target dimensions.
func (r *CPUResource) ResizeRenderTarget(width, height uint32) error {
	if r.Kind != ResourceKindRenderTarget {
		return fmt.Errorf("ResizeRenderTarget on %s resource %q", r.Kind, r.Name)
	}
	next := *r.Target
	next.Width = width
	next.Height = height
	if err := next.Validate(); err != nil {
		return fmt.Errorf("render target %q: %w", r.Name, err)
	}
	r.Target = &next
	r.MarkDirty()
	return nil
}

func (r *CPUResource) String() string {
	return fmt.Sprintf("%s %q", r.Kind, r.Name)
}

/**
 * @brief A backend-specific materialization of a CPUResource.
 *
 * Either every handle is live on the current context (Valid) or the resource
 * has been invalidated as a whole. Owned exclusively by the renderer.
 */
type GPUResource interface {
	/** @brief Mirrors the kind of the CPU resource it was built from. */
	Kind() ResourceKind
	/** @brief Reports whether all handles are live on the current context. */
	Valid() bool
	/** @brief Marks the resource dead without touching the backend (context loss). */
	Invalidate()
}
