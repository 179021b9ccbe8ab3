package verification

import "fmt"

// InvalidIdentifierError indicates a task id that is not a syntactically
// valid UUID.
type InvalidIdentifierError struct {
	ID string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("task id %q is not a valid UUID", e.ID)
}

// NotFoundError indicates an absent task or an unregistered service
// referenced by a submission.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}
