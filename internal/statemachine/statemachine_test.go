package statemachine

import (
	"context"
	"testing"

	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleFSM(t *testing.T) {
	ctx := context.Background()

	t.Run("first and later offers keep the cycle negotiating", func(t *testing.T) {
		cycle := &models.Cycle{Status: models.CycleStatusOpen}
		require.NoError(t, NewCycleFSM(cycle).Negotiate(ctx))
		assert.Equal(t, models.CycleStatusUnderNegotiation, cycle.Status)

		require.NoError(t, NewCycleFSM(cycle).Negotiate(ctx))
		assert.Equal(t, models.CycleStatusUnderNegotiation, cycle.Status)
	})

	t.Run("closed cycles do not reopen", func(t *testing.T) {
		cycle := &models.Cycle{Status: models.CycleStatusUnderNegotiation}
		require.NoError(t, NewCycleFSM(cycle).Close(ctx, models.CycleOutcomeLost))
		assert.Equal(t, models.CycleStatusClosedLost, cycle.Status)

		err := NewCycleFSM(cycle).Close(ctx, models.CycleOutcomeWon)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, models.CycleStatusClosedLost, cycle.Status)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		cycle := &models.Cycle{Status: models.CycleStatusOpen}
		assert.ErrorIs(t, NewCycleFSM(cycle).Close(ctx, "draw"), ErrInvalidTransition)
	})
}

func TestOfferFSM_TerminalStates(t *testing.T) {
	ctx := context.Background()

	offer := &models.Offer{Status: models.OfferStatusPending}
	require.NoError(t, NewOfferFSM(offer).Accept(ctx))
	assert.Equal(t, models.OfferStatusAccepted, offer.Status)

	assert.ErrorIs(t, NewOfferFSM(offer).Withdraw(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, NewOfferFSM(offer).Reject(ctx), ErrInvalidTransition)
	assert.Equal(t, models.OfferStatusAccepted, offer.Status)
}

func TestDealFSM(t *testing.T) {
	ctx := context.Background()

	deal := &models.Deal{Status: models.DealStatusActive}
	require.NoError(t, NewDealFSM(deal).Complete(ctx))
	assert.Equal(t, models.DealStatusCompleted, deal.Status)
	assert.ErrorIs(t, NewDealFSM(deal).Cancel(ctx), ErrInvalidTransition)
}

func TestCommissionFSM_Workflow(t *testing.T) {
	ctx := context.Background()
	entry := &models.CommissionSplitEntry{Status: models.CommissionStatusPending}

	// paying before approval is not allowed
	assert.ErrorIs(t, NewCommissionFSM(entry).Pay(ctx), ErrInvalidTransition)

	require.NoError(t, NewCommissionFSM(entry).Approve(ctx))
	assert.Equal(t, models.CommissionStatusApproved, entry.Status)

	require.NoError(t, NewCommissionFSM(entry).Reject(ctx))
	assert.Equal(t, models.CommissionStatusPending, entry.Status)

	// rejecting a pending line keeps it pending
	require.NoError(t, NewCommissionFSM(entry).Reject(ctx))
	assert.Equal(t, models.CommissionStatusPending, entry.Status)

	require.NoError(t, NewCommissionFSM(entry).Approve(ctx))
	require.NoError(t, NewCommissionFSM(entry).Override(ctx))
	assert.Equal(t, models.CommissionStatusPending, entry.Status)

	require.NoError(t, NewCommissionFSM(entry).Approve(ctx))
	require.NoError(t, NewCommissionFSM(entry).Pay(ctx))
	assert.Equal(t, models.CommissionStatusPaid, entry.Status)

	assert.ErrorIs(t, NewCommissionFSM(entry).Reject(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, NewCommissionFSM(entry).Override(ctx), ErrInvalidTransition)
}
