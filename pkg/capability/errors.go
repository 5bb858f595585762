package capability

import "errors"

// ErrUnknownProvider is returned for a provider id the registry does not hold.
var ErrUnknownProvider = errors.New("unknown capability provider")

// ToolError is a failed tool invocation. It is not fatal to a request:
// the engine folds its message into the invocation record. Error returns
// the underlying message unchanged.
type ToolError struct {
	Provider string
	Tool     string
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }
