package speech

import "fmt"

// ValidationError marks a client-correctable request problem. It is returned
// before any collaborator is invoked, so a validation failure has no side
// effects.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}
