package fit

import (
	"errors"
	"fmt"
)

// ErrNoStartingPoints is returned by Driver.Fit when the start collection is empty
var ErrNoStartingPoints = errors.New("no starting points")

// ErrUnknownMethod is returned by ParseMethod for an unrecognized strategy name
var ErrUnknownMethod = errors.New("unknown optimization method")

// ValidationError reports input that violates a precondition of the model.
// Use errors.As to inspect it or errors.Is(err, &ValidationError{}) to test for it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}
