package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

func (r *OpenGLRenderer) createGeometry(data *metadata.GeometryData) (metadata.GPUResource, error) {
	g := &OpenGLGeometry{
		VertexCount: data.VertexCount(),
		IndexCount:  uint32(len(data.Indices)),
	}
	usage := bufferUsage(data.Usage)

	gl.GenVertexArrays(1, &g.VAO)
	gl.BindVertexArray(g.VAO)

	gl.GenBuffers(1, &g.VBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(data.Vertices)*4, gl.Ptr(data.Vertices), usage)

	stride := int32(data.Layout.Stride)
	for _, attr := range data.Layout.Attributes {
		gl.EnableVertexAttribArray(attr.Location)
		gl.VertexAttribPointer(attr.Location, attr.Components, gl.FLOAT, attr.Normalized, stride, gl.PtrOffset(int(attr.Offset)))
	}

	if data.Indexed() {
		gl.GenBuffers(1, &g.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(data.Indices)*4, gl.Ptr(data.Indices), usage)
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := r.check("create geometry"); err != nil {
		g.release()
		return nil, err
	}
	g.valid = true
	return g, nil
}

func (r *OpenGLRenderer) createTexture(data *metadata.TextureData) (metadata.GPUResource, error) {
	fitted, err := data.FitWithin(uint32(r.context.MaxTextureSize))
	if err != nil {
		return nil, err
	}
	if fitted != data {
		core.LogWarn("texture %dx%d exceeds GL_MAX_TEXTURE_SIZE, uploading %dx%d", data.Width, data.Height, fitted.Width, fitted.Height)
	}

	t := &OpenGLTexture{Width: fitted.Width, Height: fitted.Height}
	internal, format, alignment := textureFormat(fitted.Format)

	gl.GenTextures(1, &t.Handle)
	gl.BindTexture(gl.TEXTURE_2D, t.Handle)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, alignment)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(fitted.Width), int32(fitted.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(fitted.Pixels))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, textureFilter(fitted.MinFilter, fitted.Mipmaps))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, textureFilter(fitted.MagFilter, false))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, textureRepeat(fitted.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, textureRepeat(fitted.WrapT))
	if fitted.Format == metadata.PixelFormatR8 {
		// Sample single channel textures as grey, not red.
		swizzle := []int32{gl.RED, gl.RED, gl.RED, gl.ONE}
		gl.TexParameteriv(gl.TEXTURE_2D, gl.TEXTURE_SWIZZLE_RGBA, &swizzle[0])
	}
	if fitted.Mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}

	if err := r.check("create texture"); err != nil {
		t.release()
		return nil, err
	}
	t.valid = true
	return t, nil
}

func compileShader(shaderType uint32, source string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	if shader == 0 {
		return 0, fmt.Errorf("glCreateShader failed")
	}
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile error: %s", strings.TrimRight(log, "\x00\n"))
	}
	return shader, nil
}

func (r *OpenGLRenderer) createProgram(data *metadata.ProgramData) (metadata.GPUResource, error) {
	p := &OpenGLProgram{Locations: make(map[string]int32, len(data.Uniforms))}

	var err error
	if p.VertexShader, err = compileShader(gl.VERTEX_SHADER, data.VertexSource); err != nil {
		return nil, fmt.Errorf("vertex shader %w", err)
	}
	if p.FragmentShader, err = compileShader(gl.FRAGMENT_SHADER, data.FragmentSource); err != nil {
		p.release()
		return nil, fmt.Errorf("fragment shader %w", err)
	}

	p.Handle = gl.CreateProgram()
	gl.AttachShader(p.Handle, p.VertexShader)
	gl.AttachShader(p.Handle, p.FragmentShader)
	for _, attr := range data.Attributes {
		gl.BindAttribLocation(p.Handle, attr.Location, gl.Str(attr.Name+"\x00"))
	}
	gl.LinkProgram(p.Handle)

	var status int32
	gl.GetProgramiv(p.Handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(p.Handle, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(p.Handle, logLength, nil, gl.Str(log))
		p.release()
		return nil, fmt.Errorf("link error: %s", strings.TrimRight(log, "\x00\n"))
	}

	gl.UseProgram(p.Handle)
	for _, u := range data.Uniforms {
		loc := gl.GetUniformLocation(p.Handle, gl.Str(u.Name+"\x00"))
		if loc < 0 {
			core.LogDebug("uniform %q is not active in the linked program", u.Name)
		}
		p.Locations[u.Name] = loc
		if u.Type == metadata.ShaderUniformTypeSampler && loc >= 0 {
			gl.Uniform1i(loc, int32(u.Unit))
		}
	}

	if err := r.check("create program"); err != nil {
		p.release()
		return nil, err
	}
	p.valid = true
	return p, nil
}

func (r *OpenGLRenderer) createFramebuffer(data *metadata.RenderTargetData) (metadata.GPUResource, error) {
	limit := uint32(r.context.MaxTextureSize)
	if limit > 0 && (data.Width > limit || data.Height > limit) {
		return nil, fmt.Errorf("render target %dx%d exceeds the maximum size %d", data.Width, data.Height, limit)
	}
	f := &OpenGLFramebuffer{Width: data.Width, Height: data.Height}
	internal, format, _ := textureFormat(data.Format)

	gl.GenFramebuffers(1, &f.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.FBO)

	gl.GenTextures(1, &f.Colour)
	gl.BindTexture(gl.TEXTURE_2D, f.Colour)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(data.Width), int32(data.Height), 0, format, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, f.Colour, 0)

	if data.Depth || data.Stencil {
		storage, attachment := uint32(gl.DEPTH24_STENCIL8), uint32(gl.DEPTH_STENCIL_ATTACHMENT)
		switch {
		case data.Depth && !data.Stencil:
			storage, attachment = gl.DEPTH_COMPONENT24, gl.DEPTH_ATTACHMENT
		case data.Stencil && !data.Depth:
			storage, attachment = gl.STENCIL_INDEX8, gl.STENCIL_ATTACHMENT
		}
		gl.GenRenderbuffers(1, &f.DepthStencil)
		gl.BindRenderbuffer(gl.RENDERBUFFER, f.DepthStencil)
		gl.RenderbufferStorage(gl.RENDERBUFFER, storage, int32(data.Width), int32(data.Height))
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, attachment, gl.RENDERBUFFER, f.DepthStencil)
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	}

	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		f.release()
		return nil, fmt.Errorf("framebuffer incomplete: status 0x%04X", status)
	}
	if err := r.check("create framebuffer"); err != nil {
		f.release()
		return nil, err
	}
	f.valid = true
	return f, nil
}
