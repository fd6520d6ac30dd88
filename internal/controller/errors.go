package controller

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or malformed spec. It is fatal to
// the controller and never retried.
type ConfigurationError struct {
	Tab    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration of %q: %s: %v", e.Tab, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration of %q: %s", e.Tab, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Mutation command errors of editable child sets.
var (
	ErrAddDisabled    = errors.New("controller: adding children is disabled")
	ErrDeleteDisabled = errors.New("controller: deleting children is disabled")
	ErrUnknownChild   = errors.New("controller: unknown child")
	ErrUnknownField   = errors.New("controller: unknown field")
	ErrReadOnlyField  = errors.New("controller: field is read-only")
	ErrNotEditing     = errors.New("controller: not in an edit mode")
)

// errStaleCallback marks a completion that belongs to a superseded bind.
// It is dropped where it is detected and never surfaced.
var errStaleCallback = errors.New("controller: stale callback")
