package fixtures

import "fmt"

// ValidationError indicates a malformed or incomplete proposal.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a lookup for a fixture that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fixture %q not found", e.ID)
}

// TransitionError indicates a status transition attempted from an invalid
// source state: reject applies only to draft fixtures, revoke only to
// approved ones.
type TransitionError struct {
	ID       string
	Status   FixtureStatus
	Required FixtureStatus
	Action   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("fixture %q is in status %q, only %s fixtures can be %s",
		e.ID, e.Status, e.Required, e.Action)
}
