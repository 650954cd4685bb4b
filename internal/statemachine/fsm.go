package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state
var ErrInvalidTransition = errors.New("invalid state transition")

// fire runs event on m. A transition onto the state the machine is already in
// is not an error.
func fire(ctx context.Context, m *fsm.FSM, entity, event string) error {
	if !m.Can(event) {
		return fmt.Errorf("%w: %s cannot %s from %s", ErrInvalidTransition, entity, event, m.Current())
	}

	if err := m.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return fmt.Errorf("failed to %s %s: %w", event, entity, err)
	}
	return nil
}
