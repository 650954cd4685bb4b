package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

// CycleFSM wraps a cycle with its state machine
type CycleFSM struct {
	cycle *models.Cycle
	fsm   *fsm.FSM
}

// NewCycleFSM creates a new cycle state machine
func NewCycleFSM(cycle *models.Cycle) *CycleFSM {
	open := []string{string(models.CycleStatusOpen), string(models.CycleStatusUnderNegotiation)}

	cfsm := &CycleFSM{cycle: cycle}
	cfsm.fsm = fsm.NewFSM(
		string(cycle.Status),
		fsm.Events{
			// open → under_negotiation on first offer; later offers keep it there
			{Name: "negotiate", Src: open, Dst: string(models.CycleStatusUnderNegotiation)},

			// open/under_negotiation → closed_won
			{Name: "win", Src: open, Dst: string(models.CycleStatusClosedWon)},

			// open/under_negotiation → closed_lost
			{Name: "lose", Src: open, Dst: string(models.CycleStatusClosedLost)},
		},
		fsm.Callbacks{},
	)

	return cfsm
}

// Negotiate marks the cycle as having received offers
func (c *CycleFSM) Negotiate(ctx context.Context) error {
	return c.event(ctx, "negotiate")
}

// Close transitions the cycle to closed_won or closed_lost
func (c *CycleFSM) Close(ctx context.Context, outcome models.CycleOutcome) error {
	switch outcome {
	case models.CycleOutcomeWon:
		return c.event(ctx, "win")
	case models.CycleOutcomeLost:
		return c.event(ctx, "lose")
	default:
		return fmt.Errorf("%w: unknown cycle outcome %q", ErrInvalidTransition, outcome)
	}
}

func (c *CycleFSM) event(ctx context.Context, name string) error {
	if err := fire(ctx, c.fsm, "cycle", name); err != nil {
		return err
	}
	c.cycle.Status = models.CycleStatus(c.fsm.Current())
	return nil
}

// Current returns the current state
func (c *CycleFSM) Current() string {
	return c.fsm.Current()
}

// Can checks if a transition is possible
func (c *CycleFSM) Can(event string) bool {
	return c.fsm.Can(event)
}
