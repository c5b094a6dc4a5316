package inference

import (
	"errors"
	"fmt"
)

// ErrNoCredentials indicates an empty credential pool. This is a fatal
// configuration error: the workflow must refuse to start rather than
// attempt provider calls that can never be authorized.
var ErrNoCredentials = errors.New("inference: no credentials configured")

// UnavailableError indicates that every retry attempt for an operation
// failed. It is recoverable: the caller may retry the same transition.
type UnavailableError struct {
	Operation Operation
	Attempts  int
	Last      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inference unavailable: %s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *UnavailableError) Unwrap() error {
	return e.Last
}

// SchemaError indicates a provider payload whose required fields are absent
// or of the wrong shape. The client retries on it; it is never surfaced
// past the client except wrapped in an UnavailableError.
type SchemaError struct {
	Operation Operation
	Field     string
	Reason    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation in %s response: field %q: %s", e.Operation, e.Field, e.Reason)
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
