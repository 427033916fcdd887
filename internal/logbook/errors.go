package logbook

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a delete or lookup references an unknown id.
var ErrNotFound = errors.New("logbook: not found")

// ValidationError blocks a local write. It is non-fatal and recoverable by
// changing the input; it never applies to imported remote data.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsValidation reports whether err is a validation error, unwrapping as needed.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validateEntry(e Entry) error {
	if !e.Identity.Valid() {
		return &ValidationError{Field: "identity", Message: fmt.Sprintf("unknown state %d", int(e.Identity))}
	}
	if e.Energy < 1 || e.Energy > 5 {
		return &ValidationError{Field: "energy", Message: "must be between 1 and 5"}
	}
	if e.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp", Message: "must be a positive epoch instant"}
	}
	return nil
}

func validatePlan(p Plan) error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	return nil
}
