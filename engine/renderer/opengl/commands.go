package opengl

import (
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

func (r *OpenGLRenderer) BindGeometry(geometry metadata.GPUResource) {
	g := geometry.(*OpenGLGeometry)
	gl.BindVertexArray(g.VAO)
	r.bound.vao = g.VAO
	r.debugCheck("bind geometry")
}

func (r *OpenGLRenderer) BindProgram(program metadata.GPUResource) {
	p := program.(*OpenGLProgram)
	gl.UseProgram(p.Handle)
	r.bound.program = p.Handle
	r.debugCheck("bind program")
}

// BindTexture binds a texture, or the colour attachment of a render target.
func (r *OpenGLRenderer) BindTexture(unit uint8, texture metadata.GPUResource) {
	var handle uint32
	switch t := texture.(type) {
	case *OpenGLTexture:
		handle = t.Handle
	case *OpenGLFramebuffer:
		handle = t.Colour
	default:
		core.LogError("opengl: cannot bind %T as a texture", texture)
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, handle)
	r.bound.activeUnit = uint32(unit)
	if int(unit) < len(r.bound.textures) {
		r.bound.textures[unit] = handle
	}
	r.debugCheck("bind texture")
}

func (r *OpenGLRenderer) BindRenderTarget(target metadata.GPUResource) {
	var fbo uint32
	if target != nil {
		fbo = target.(*OpenGLFramebuffer).FBO
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	r.bound.fbo = fbo
	r.debugCheck("bind render target")
}

// SetUniform writes to the currently bound program, which is always program.
func (r *OpenGLRenderer) SetUniform(program metadata.GPUResource, name string, uniformType metadata.ShaderUniformType, value interface{}) {
	p := program.(*OpenGLProgram)
	loc, ok := p.Locations[name]
	if !ok || loc < 0 {
		return
	}
	switch v := value.(type) {
	case float32:
		gl.Uniform1f(loc, v)
	case int32:
		gl.Uniform1i(loc, v)
	case mgl32.Vec2:
		gl.Uniform2fv(loc, 1, &v[0])
	case mgl32.Vec3:
		gl.Uniform3fv(loc, 1, &v[0])
	case mgl32.Vec4:
		gl.Uniform4fv(loc, 1, &v[0])
	case mgl32.Mat3:
		gl.UniformMatrix3fv(loc, 1, false, &v[0])
	case mgl32.Mat4:
		gl.UniformMatrix4fv(loc, 1, false, &v[0])
	default:
		core.LogError("opengl: uniform %q (%s) got unsupported %T", name, uniformType, value)
		return
	}
	r.debugCheck("set uniform")
}

func (r *OpenGLRenderer) Draw(geometry metadata.GPUResource, prim metadata.Primitive, first, count uint32) {
	g := geometry.(*OpenGLGeometry)
	mode := primitive(prim)
	if g.EBO != 0 {
		gl.DrawElements(mode, int32(count), gl.UNSIGNED_INT, gl.PtrOffset(int(first)*4))
	} else {
		gl.DrawArrays(mode, int32(first), int32(count))
	}
	r.debugCheck("draw")
}

const allStencilBits = ^uint32(0)

// GL state that would keep glClear from reaching every pixel it was asked to clear.
type clearOverride struct {
	depthWrite   bool
	stencilWrite bool
	scissor      bool
}

func (b *boundState) clearOverrides(flags metadata.ClearFlags) clearOverride {
	return clearOverride{
		depthWrite:   flags&metadata.ClearDepth != 0 && !b.depthWrite,
		stencilWrite: flags&metadata.ClearStencil != 0 && b.stencilWrite != allStencilBits,
		scissor:      flags != 0 && b.scissor,
	}
}

// Clear always clears the whole target. Write masks and the scissor test are
// lifted for the call and put back afterwards.
func (r *OpenGLRenderer) Clear(values metadata.ClearValues) {
	override := r.bound.clearOverrides(values.Flags)
	if override.depthWrite {
		gl.DepthMask(true)
	}
	if override.stencilWrite {
		gl.StencilMask(allStencilBits)
	}
	if override.scissor {
		gl.Disable(gl.SCISSOR_TEST)
	}

	if values.Flags&metadata.ClearColour != 0 {
		c := values.Colour
		gl.ClearColor(c[0], c[1], c[2], c[3])
	}
	if values.Flags&metadata.ClearDepth != 0 {
		gl.ClearDepth(float64(values.Depth))
	}
	if values.Flags&metadata.ClearStencil != 0 {
		gl.ClearStencil(values.Stencil)
	}
	gl.Clear(clearMask(values.Flags))

	if override.depthWrite {
		gl.DepthMask(false)
	}
	if override.stencilWrite {
		gl.StencilMask(r.bound.stencilWrite)
	}
	if override.scissor {
		gl.Enable(gl.SCISSOR_TEST)
	}
	r.debugCheck("clear")
}

func (r *OpenGLRenderer) SetBlendState(state metadata.BlendState) {
	if !state.Enabled {
		gl.Disable(gl.BLEND)
	} else {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(blendFactor(state.Src), blendFactor(state.Dst))
		gl.BlendEquation(blendEquation(state.Equation))
	}
	r.debugCheck("set blend state")
}

func (r *OpenGLRenderer) SetDepthState(state metadata.DepthState) {
	if state.Test {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(compareFunc(state.Func))
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(state.Write)
	r.bound.depthWrite = state.Write
	r.debugCheck("set depth state")
}

func (r *OpenGLRenderer) SetStencilState(state metadata.StencilState) {
	if !state.Test {
		gl.Disable(gl.STENCIL_TEST)
	} else {
		gl.Enable(gl.STENCIL_TEST)
		gl.StencilFunc(compareFunc(state.Func), state.Ref, state.ReadMask)
		gl.StencilOp(stencilOp(state.Fail), stencilOp(state.DepthFail), stencilOp(state.Pass))
	}
	gl.StencilMask(state.WriteMask)
	r.bound.stencilWrite = state.WriteMask
	r.debugCheck("set stencil state")
}

func (r *OpenGLRenderer) SetViewport(rect metadata.Rect) {
	gl.Viewport(rect.X, rect.Y, rect.Width, rect.Height)
	r.debugCheck("set viewport")
}

func (r *OpenGLRenderer) SetScissor(enabled bool, rect metadata.Rect) {
	if !enabled {
		gl.Disable(gl.SCISSOR_TEST)
	} else {
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(rect.X, rect.Y, rect.Width, rect.Height)
	}
	r.bound.scissor = enabled
	r.debugCheck("set scissor")
}
