package metadata

import "fmt"

type CommandType int

const (
	CommandBindGeometry CommandType = iota
	CommandBindProgram
	CommandSetUniform
	CommandBindTexture
	CommandSetRenderTarget
	CommandDraw
	CommandClear
	CommandSetBlendState
	CommandSetDepthState
	CommandSetStencilState
	CommandSetViewport
	CommandSetScissor
)

func (c CommandType) String() string {
	switch c {
	case CommandBindGeometry:
		return "BindGeometry"
	case CommandBindProgram:
		return "BindProgram"
	case CommandSetUniform:
		return "SetUniform"
	case CommandBindTexture:
		return "BindTexture"
	case CommandSetRenderTarget:
		return "SetRenderTarget"
	case CommandDraw:
		return "Draw"
	case CommandClear:
		return "Clear"
	case CommandSetBlendState:
		return "SetBlendState"
	case CommandSetDepthState:
		return "SetDepthState"
	case CommandSetStencilState:
		return "SetStencilState"
	case CommandSetViewport:
		return "SetViewport"
	case CommandSetScissor:
		return "SetScissor"
	default:
		return fmt.Sprintf("CommandType(%d)", int(c))
	}
}

/** @brief Values written by a Clear command. */
type ClearValues struct {
	Flags   ClearFlags
	Colour  [4]float32
	Depth   float32
	Stencil int32
}

/**
 * @brief One entry of the per-frame command stream.
 *
 * Commands reference CPU resources only; the renderer resolves the GPU side.
 * Only the fields relevant to Type are read.
 */
type Command struct {
	Type CommandType
	/** @brief Geometry, program, texture or render target. A nil target selects the default framebuffer. */
	Resource *CPUResource
	/** @brief Texture unit for BindTexture. */
	Unit uint8
	/** @brief Uniform name and value for SetUniform. */
	Uniform string
	Value   interface{}
	/** @brief Draw parameters. Count 0 draws every element from First on. */
	Primitive Primitive
	First     uint32
	Count     uint32

	Clear   ClearValues
	Blend   BlendState
	Depth   DepthState
	Stencil StencilState
	/** @brief Viewport or scissor rectangle. */
	Rect Rect
	/** @brief Scissor test toggle for SetScissor. */
	Enabled bool
}

func CmdBindGeometry(geometry *CPUResource) Command {
	return Command{Type: CommandBindGeometry, Resource: geometry}
}

func CmdBindProgram(program *CPUResource) Command {
	return Command{Type: CommandBindProgram, Resource: program}
}

func CmdSetUniform(name string, value interface{}) Command {
	return Command{Type: CommandSetUniform, Uniform: name, Value: value}
}

func CmdBindTexture(unit uint8, texture *CPUResource) Command {
	return Command{Type: CommandBindTexture, Unit: unit, Resource: texture}
}

// CmdSetRenderTarget selects an off-screen target, or the default framebuffer when target is nil.
func CmdSetRenderTarget(target *CPUResource) Command {
	return Command{Type: CommandSetRenderTarget, Resource: target}
}

func CmdDraw(primitive Primitive, first, count uint32) Command {
	return Command{Type: CommandDraw, Primitive: primitive, First: first, Count: count}
}

func CmdClear(values ClearValues) Command {
	return Command{Type: CommandClear, Clear: values}
}

func CmdSetBlendState(state BlendState) Command {
	return Command{Type: CommandSetBlendState, Blend: state}
}

func CmdSetDepthState(state DepthState) Command {
	return Command{Type: CommandSetDepthState, Depth: state}
}

func CmdSetStencilState(state StencilState) Command {
	return Command{Type: CommandSetStencilState, Stencil: state}
}

func CmdSetViewport(rect Rect) Command {
	return Command{Type: CommandSetViewport, Rect: rect}
}

func CmdSetScissor(enabled bool, rect Rect) Command {
	return Command{Type: CommandSetScissor, Enabled: enabled, Rect: rect}
}

/**
 * @brief Everything the renderer needs to draw one frame.
 */
type RenderPacket struct {
	DeltaTime float64
	Commands  []Command
}
