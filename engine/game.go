package engine

import (
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

// Game is what an application plugs into the engine. Every hook runs on the
// main thread, which owns the graphics context.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize creates the game's CPU resources and submits them.
type Initialize func(e *Engine) error

// Update runs game logic once per frame, before rendering.
type Update func(deltaTime float64) error

// Render appends the frame's commands to the packet.
type Render func(packet *metadata.RenderPacket, deltaTime float64) error

type OnResize func(width uint32, height uint32) error

// Shutdown releases the game's resources while the renderer is still alive.
type Shutdown func(e *Engine) error
