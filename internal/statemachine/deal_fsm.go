package statemachine

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

// DealFSM wraps a deal with its state machine
type DealFSM struct {
	deal *models.Deal
	fsm  *fsm.FSM
}

// NewDealFSM creates a new deal state machine
func NewDealFSM(deal *models.Deal) *DealFSM {
	active := []string{string(models.DealStatusActive)}

	dfsm := &DealFSM{deal: deal}
	dfsm.fsm = fsm.NewFSM(
		string(deal.Status),
		fsm.Events{
			{Name: "complete", Src: active, Dst: string(models.DealStatusCompleted)},
			{Name: "cancel", Src: active, Dst: string(models.DealStatusCancelled)},
		},
		fsm.Callbacks{},
	)

	return dfsm
}

// Complete transitions deal to completed state
func (d *DealFSM) Complete(ctx context.Context) error {
	return d.event(ctx, "complete")
}

// Cancel transitions deal to cancelled state
func (d *DealFSM) Cancel(ctx context.Context) error {
	return d.event(ctx, "cancel")
}

func (d *DealFSM) event(ctx context.Context, name string) error {
	if err := fire(ctx, d.fsm, "deal", name); err != nil {
		return err
	}
	d.deal.Status = models.DealStatus(d.fsm.Current())
	return nil
}
