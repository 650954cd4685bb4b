package statemachine

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

// OfferFSM wraps an offer with its state machine
type OfferFSM struct {
	offer *models.Offer
	fsm   *fsm.FSM
}

// NewOfferFSM creates a new offer state machine. Every transition leaves
// pending for a terminal state.
func NewOfferFSM(offer *models.Offer) *OfferFSM {
	pending := []string{string(models.OfferStatusPending)}

	ofsm := &OfferFSM{offer: offer}
	ofsm.fsm = fsm.NewFSM(
		string(offer.Status),
		fsm.Events{
			{Name: "accept", Src: pending, Dst: string(models.OfferStatusAccepted)},
			{Name: "reject", Src: pending, Dst: string(models.OfferStatusRejected)},
			{Name: "withdraw", Src: pending, Dst: string(models.OfferStatusWithdrawn)},
		},
		fsm.Callbacks{},
	)

	return ofsm
}

// Accept transitions offer to accepted state
func (o *OfferFSM) Accept(ctx context.Context) error {
	return o.event(ctx, "accept")
}

// Reject transitions offer to rejected state
func (o *OfferFSM) Reject(ctx context.Context) error {
	return o.event(ctx, "reject")
}

// Withdraw transitions offer to withdrawn state
func (o *OfferFSM) Withdraw(ctx context.Context) error {
	return o.event(ctx, "withdraw")
}

func (o *OfferFSM) event(ctx context.Context, name string) error {
	if err := fire(ctx, o.fsm, "offer", name); err != nil {
		return err
	}
	o.offer.Status = models.OfferStatus(o.fsm.Current())
	return nil
}
