package runtime

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every backend operation.
var (
	ErrConnectionFailed = errors.New("connection to runtime failed")
	ErrNoRuntimeFound   = errors.New("no container runtime found")
	ErrPermissionDenied = errors.New("permission denied by runtime")
	ErrCancelled        = errors.New("operation cancelled")
)

// NotSupportedError reports a capability gap in a backend. It is returned
// eagerly so callers can distinguish "unsupported" from "empty".
type NotSupportedError struct {
	Backend BackendKind
	Kind    Kind
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s backend does not support %s", e.Backend, e.Kind)
}

// NotFoundError reports that a resource id no longer exists.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such %s: %s", trimPlural(e.Kind), e.ID)
}

// BackendError wraps a runtime-specific failure that has no more precise
// classification.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsNotSupported reports whether err is a capability-gap error.
func IsNotSupported(err error) bool {
	var nse *NotSupportedError
	return errors.As(err, &nse)
}

// IsNotFound reports whether err means the resource id is gone.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func trimPlural(k Kind) string {
	s := k.String()
	if len(s) > 1 && s[len(s)-1] == 's' {
		return s[:len(s)-1]
	}
	return s
}
