package opengl

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

/**
 * @brief Vertex array plus the buffers it sources from.
 */
type OpenGLGeometry struct {
	VAO uint32
	VBO uint32
	/** @brief Zero for non-indexed geometry. */
	EBO         uint32
	VertexCount uint32
	IndexCount  uint32
	valid       bool
}

func (g *OpenGLGeometry) Kind() metadata.ResourceKind { return metadata.ResourceKindGeometry }
func (g *OpenGLGeometry) Valid() bool                 { return g.valid }
func (g *OpenGLGeometry) Invalidate()                 { g.valid = false }

func (g *OpenGLGeometry) release() {
	if g.EBO != 0 {
		gl.DeleteBuffers(1, &g.EBO)
	}
	if g.VBO != 0 {
		gl.DeleteBuffers(1, &g.VBO)
	}
	if g.VAO != 0 {
		gl.DeleteVertexArrays(1, &g.VAO)
	}
	*g = OpenGLGeometry{}
}

/**
 * @brief A 2D texture object.
 */
type OpenGLTexture struct {
	Handle uint32
	/** @brief Uploaded size. Smaller than the payload when it had to be downscaled. */
	Width  uint32
	Height uint32
	valid  bool
}

func (t *OpenGLTexture) Kind() metadata.ResourceKind { return metadata.ResourceKindTexture }
func (t *OpenGLTexture) Valid() bool                 { return t.valid }
func (t *OpenGLTexture) Invalidate()                 { t.valid = false }

func (t *OpenGLTexture) release() {
	if t.Handle != 0 {
		gl.DeleteTextures(1, &t.Handle)
	}
	*t = OpenGLTexture{}
}

/**
 * @brief A linked program and the shader objects attached to it.
 */
type OpenGLProgram struct {
	Handle         uint32
	VertexShader   uint32
	FragmentShader uint32
	/** @brief Uniform locations by name. -1 when the linker dropped the uniform. */
	Locations map[string]int32
	valid     bool
}

func (p *OpenGLProgram) Kind() metadata.ResourceKind { return metadata.ResourceKindProgram }
func (p *OpenGLProgram) Valid() bool                 { return p.valid }
func (p *OpenGLProgram) Invalidate()                 { p.valid = false }

func (p *OpenGLProgram) release() {
	if p.Handle != 0 {
		gl.DeleteProgram(p.Handle)
	}
	if p.VertexShader != 0 {
		gl.DeleteShader(p.VertexShader)
	}
	if p.FragmentShader != 0 {
		gl.DeleteShader(p.FragmentShader)
	}
	*p = OpenGLProgram{}
}

/**
 * @brief A framebuffer object with a colour texture and an optional
 * depth/stencil renderbuffer.
 */
type OpenGLFramebuffer struct {
	FBO    uint32
	Colour uint32
	/** @brief Zero when neither depth nor stencil was requested. */
	DepthStencil uint32
	Width        uint32
	Height       uint32
	valid        bool
}

func (f *OpenGLFramebuffer) Kind() metadata.ResourceKind { return metadata.ResourceKindRenderTarget }
func (f *OpenGLFramebuffer) Valid() bool                 { return f.valid }
func (f *OpenGLFramebuffer) Invalidate()                 { f.valid = false }

func (f *OpenGLFramebuffer) release() {
	if f.FBO != 0 {
		gl.DeleteFramebuffers(1, &f.FBO)
	}
	if f.DepthStencil != 0 {
		gl.DeleteRenderbuffers(1, &f.DepthStencil)
	}
	if f.Colour != 0 {
		gl.DeleteTextures(1, &f.Colour)
	}
	*f = OpenGLFramebuffer{}
}
