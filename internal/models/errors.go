package models

import (
	"errors"
	"fmt"
)

// ErrNotPermitted is returned when the actor lacks the capability for an
// action, such as deleting someone else's post.
var ErrNotPermitted = errors.New("not permitted")

// ValidationError rejects input before any I/O happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// SelfActionError rejects actions a user may not direct at themselves.
type SelfActionError struct {
	Action string
}

func (e *SelfActionError) Error() string {
	return fmt.Sprintf("cannot %s yourself", e.Action)
}
