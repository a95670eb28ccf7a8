package opengl

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

func bufferUsage(u metadata.BufferUsage) uint32 {
	switch u {
	case metadata.BufferUsageDynamic:
		return gl.DYNAMIC_DRAW
	case metadata.BufferUsageStream:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

func primitive(p metadata.Primitive) uint32 {
	switch p {
	case metadata.PrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP
	case metadata.PrimitiveTriangleFan:
		return gl.TRIANGLE_FAN
	case metadata.PrimitiveLines:
		return gl.LINES
	case metadata.PrimitiveLineStrip:
		return gl.LINE_STRIP
	case metadata.PrimitivePoints:
		return gl.POINTS
	default:
		return gl.TRIANGLES
	}
}

// textureFormat returns the internal format, the pixel format and the
// unpack alignment for a pixel layout.
func textureFormat(f metadata.PixelFormat) (internal int32, format uint32, alignment int32) {
	switch f {
	case metadata.PixelFormatRGB8:
		return gl.RGB8, gl.RGB, 1
	case metadata.PixelFormatR8:
		return gl.R8, gl.RED, 1
	default:
		return gl.RGBA8, gl.RGBA, 4
	}
}

func textureFilter(f metadata.TextureFilter, mipmaps bool) int32 {
	switch {
	case f == metadata.TextureFilterModeNearest && mipmaps:
		return gl.NEAREST_MIPMAP_NEAREST
	case f == metadata.TextureFilterModeNearest:
		return gl.NEAREST
	case mipmaps:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}

func textureRepeat(r metadata.TextureRepeat) int32 {
	switch r {
	case metadata.TextureRepeatRepeat:
		return gl.REPEAT
	case metadata.TextureRepeatMirroredRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.CLAMP_TO_EDGE
	}
}

func blendFactor(f metadata.BlendFactor) uint32 {
	switch f {
	case metadata.BlendFactorZero:
		return gl.ZERO
	case metadata.BlendFactorSrcAlpha:
		return gl.SRC_ALPHA
	case metadata.BlendFactorOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case metadata.BlendFactorDstAlpha:
		return gl.DST_ALPHA
	case metadata.BlendFactorOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case metadata.BlendFactorSrcColour:
		return gl.SRC_COLOR
	case metadata.BlendFactorOneMinusSrcColour:
		return gl.ONE_MINUS_SRC_COLOR
	case metadata.BlendFactorDstColour:
		return gl.DST_COLOR
	case metadata.BlendFactorOneMinusDstColour:
		return gl.ONE_MINUS_DST_COLOR
	default:
		return gl.ONE
	}
}

func blendEquation(e metadata.BlendEquation) uint32 {
	switch e {
	case metadata.BlendEquationSubtract:
		return gl.FUNC_SUBTRACT
	case metadata.BlendEquationReverseSubtract:
		return gl.FUNC_REVERSE_SUBTRACT
	default:
		return gl.FUNC_ADD
	}
}

func compareFunc(f metadata.CompareFunc) uint32 {
	switch f {
	case metadata.CompareLessEqual:
		return gl.LEQUAL
	case metadata.CompareEqual:
		return gl.EQUAL
	case metadata.CompareGreater:
		return gl.GREATER
	case metadata.CompareGreaterEqual:
		return gl.GEQUAL
	case metadata.CompareNotEqual:
		return gl.NOTEQUAL
	case metadata.CompareAlways:
		return gl.ALWAYS
	case metadata.CompareNever:
		return gl.NEVER
	default:
		return gl.LESS
	}
}

func stencilOp(op metadata.StencilOp) uint32 {
	switch op {
	case metadata.StencilOpZero:
		return gl.ZERO
	case metadata.StencilOpReplace:
		return gl.REPLACE
	case metadata.StencilOpIncrement:
		return gl.INCR
	case metadata.StencilOpDecrement:
		return gl.DECR
	case metadata.StencilOpInvert:
		return gl.INVERT
	default:
		return gl.KEEP
	}
}

func clearMask(flags metadata.ClearFlags) uint32 {
	var mask uint32
	if flags&metadata.ClearColour != 0 {
		mask |= gl.COLOR_BUFFER_BIT
	}
	if flags&metadata.ClearDepth != 0 {
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if flags&metadata.ClearStencil != 0 {
		mask |= gl.STENCIL_BUFFER_BIT
	}
	return mask
}
