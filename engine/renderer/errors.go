package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

// ResourceError reports a GPU resource that could not be materialized.
// It unwraps to core.ErrResourceCreation.
type ResourceError struct {
	Kind metadata.ResourceKind
	ID   uint32
	Name string
	// Diagnostic is the backend's reason, e.g. a shader info log.
	Diagnostic string
	Err        error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %s %q (id=%d): %s", core.ErrResourceCreation, e.Kind, e.Name, e.ID, e.Diagnostic)
}

func (e *ResourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{core.ErrResourceCreation}
	}
	return []error{core.ErrResourceCreation, e.Err}
}

// UsageError reports a command that broke the renderer's usage rules.
// It unwraps to core.ErrInvalidUsage.
type UsageError struct {
	// Index of the offending command in the frame's packet. -1 outside a frame.
	Index   int
	Command metadata.CommandType
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", core.ErrInvalidUsage, e.Reason)
	}
	return fmt.Sprintf("%s: command %d (%s): %s", core.ErrInvalidUsage, e.Index, e.Command, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return core.ErrInvalidUsage
}

func usageErrorf(index int, cmd metadata.CommandType, format string, args ...interface{}) *UsageError {
	return &UsageError{Index: index, Command: cmd, Reason: fmt.Sprintf(format, args...)}
}
