package core

import (
	"errors"
)

var (
	// A backend rejected the creation of a buffer, texture, program or framebuffer.
	ErrResourceCreation = errors.New("resource creation failure")
	// A command referenced an unregistered resource or violated a draw precondition.
	ErrInvalidUsage = errors.New("invalid usage")
	// The graphics context was lost. Every backend handle is gone.
	ErrContextLost = errors.New("graphics context lost")
	ErrUnknown     = errors.New("unknown")
)
