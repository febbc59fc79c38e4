package experiment

import (
	"fmt"
	"strings"
)

// ValidationError reports every violated constraint of an experiment
// config at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid experiment config: " + strings.Join(e.Violations, "; ")
}

// NotFoundError reports an operation referencing an unknown experiment.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("experiment %q not found", e.ID)
}

// InvalidStateError reports an illegal lifecycle transition.
type InvalidStateError struct {
	ID   string
	From Status
	Op   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s experiment %q in state %q", e.Op, e.ID, e.From)
}
