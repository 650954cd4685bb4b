package statemachine

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

// CommissionFSM wraps a commission split entry with its state machine.
//
//	pending ⇄ approved → paid
//
// Rejecting never ends the line: it goes back to pending so it can be corrected.
type CommissionFSM struct {
	entry *models.CommissionSplitEntry
	fsm   *fsm.FSM
}

// NewCommissionFSM creates a new commission state machine
func NewCommissionFSM(entry *models.CommissionSplitEntry) *CommissionFSM {
	pending := string(models.CommissionStatusPending)
	approved := string(models.CommissionStatusApproved)

	cfsm := &CommissionFSM{entry: entry}
	cfsm.fsm = fsm.NewFSM(
		string(entry.Status),
		fsm.Events{
			// pending → approved
			{Name: "approve", Src: []string{pending}, Dst: approved},

			// pending/approved → pending
			{Name: "reject", Src: []string{pending, approved}, Dst: pending},

			// approved → paid
			{Name: "pay", Src: []string{approved}, Dst: string(models.CommissionStatusPaid)},

			// pending/approved → pending, a changed amount needs a fresh approval
			{Name: "override", Src: []string{pending, approved}, Dst: pending},
		},
		fsm.Callbacks{},
	)

	return cfsm
}

// Approve transitions the entry to approved state
func (c *CommissionFSM) Approve(ctx context.Context) error {
	return c.event(ctx, "approve")
}

// Reject returns the entry to pending
func (c *CommissionFSM) Reject(ctx context.Context) error {
	return c.event(ctx, "reject")
}

// Pay transitions the entry to paid state
func (c *CommissionFSM) Pay(ctx context.Context) error {
	return c.event(ctx, "pay")
}

// Override returns the entry to pending after its amount changed
func (c *CommissionFSM) Override(ctx context.Context) error {
	return c.event(ctx, "override")
}

func (c *CommissionFSM) event(ctx context.Context, name string) error {
	if err := fire(ctx, c.fsm, "commission entry", name); err != nil {
		return err
	}
	c.entry.Status = models.CommissionStatus(c.fsm.Current())
	return nil
}
