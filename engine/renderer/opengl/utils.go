package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/spaghettifunk/anima-gl/engine/core"
)

// GL_CONTEXT_LOST (KHR_robustness / GL 4.5). Not part of the 3.3 core enums.
const GL_CONTEXT_LOST uint32 = 0x0507

func ConditionalOperator(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func OpenGLErrorString(code uint32, getExtended bool) string {
	switch code {
	case gl.NO_ERROR:
		return ConditionalOperator(!getExtended, "GL_NO_ERROR", "GL_NO_ERROR No error has been recorded.")
	case gl.INVALID_ENUM:
		return ConditionalOperator(!getExtended, "GL_INVALID_ENUM", "GL_INVALID_ENUM An unacceptable value is specified for an enumerated argument.")
	case gl.INVALID_VALUE:
		return ConditionalOperator(!getExtended, "GL_INVALID_VALUE", "GL_INVALID_VALUE A numeric argument is out of range.")
	case gl.INVALID_OPERATION:
		return ConditionalOperator(!getExtended, "GL_INVALID_OPERATION", "GL_INVALID_OPERATION The specified operation is not allowed in the current state.")
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return ConditionalOperator(!getExtended, "GL_INVALID_FRAMEBUFFER_OPERATION", "GL_INVALID_FRAMEBUFFER_OPERATION The framebuffer object is not complete.")
	case gl.OUT_OF_MEMORY:
		return ConditionalOperator(!getExtended, "GL_OUT_OF_MEMORY", "GL_OUT_OF_MEMORY There is not enough memory left to execute the command.")
	case GL_CONTEXT_LOST:
		return ConditionalOperator(!getExtended, "GL_CONTEXT_LOST", "GL_CONTEXT_LOST The context has been lost due to a graphics card reset.")
	default:
		return fmt.Sprintf("GL error 0x%04X", code)
	}
}

// drainErrors pops every pending GL error. GL keeps one flag per error kind,
// so the loop is bounded.
func drainErrors() []uint32 {
	var codes []uint32
	for i := 0; i < 16; i++ {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			break
		}
		codes = append(codes, code)
	}
	return codes
}

// checkError turns pending GL errors into an error. A lost context wins over
// everything else and wraps core.ErrContextLost.
func checkError(op string) error {
	codes := drainErrors()
	if len(codes) == 0 {
		return nil
	}
	for _, code := range codes {
		if code == GL_CONTEXT_LOST {
			return fmt.Errorf("%s: %s: %w", op, OpenGLErrorString(code, false), core.ErrContextLost)
		}
	}
	return fmt.Errorf("%s: %s", op, OpenGLErrorString(codes[0], true))
}
