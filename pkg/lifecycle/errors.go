package lifecycle

import (
	"errors"
	"fmt"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// ErrInvalidTransition matches every *InvalidTransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid transition")

// InvalidTransitionError is returned when a move is not in the transition table.
type InvalidTransitionError struct {
	From model.State
	To   model.State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
