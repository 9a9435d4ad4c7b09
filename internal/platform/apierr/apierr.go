// Package apierr carries an HTTP status and a machine-readable code
// alongside an error, so handlers can map the service failure taxonomy
// (race exhaustion, unmet preconditions, timed-out generation) onto the
// response envelope without re-deriving the status at each call site.
package apierr

import "fmt"

// Error is unwrappable: errors.Is still sees the underlying sentinel.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
