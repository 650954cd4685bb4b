package services

import (
	"context"
	"testing"

	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleService_OneOpenCyclePerKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)

	sell := f.sellCycle(t, p.ID, "500000")
	assert.Equal(t, models.CycleStatusOpen, sell.Status)

	_, err := f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("450000"), listingAgent)
	assert.ErrorIs(t, err, ErrConflict)

	rent, err := f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindRent, dec("2500"), listingAgent)
	require.NoError(t, err, "different kinds may be open at once")

	property, err := f.svc.Property.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, sell.ID, property.OpenCycleID(models.CycleKindSell))
	assert.Equal(t, rent.ID, property.OpenCycleID(models.CycleKindRent))

	cycles, err := f.svc.Cycle.ListCycles(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, cycles, 2)
}

func TestCycleService_OpenCycleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)

	_, err := f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKind("lease"), dec("10"), listingAgent)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("0"), listingAgent)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("10"), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Cycle.OpenCycle(ctx, "ghost", models.CycleKindSell, dec("10"), listingAgent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCycleService_CloseLostKeepsPropertyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "500000")

	closed, err := f.svc.Cycle.CloseCycle(ctx, c.ID, models.CycleOutcomeLost)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusClosedLost, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	property, err := f.svc.Property.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusAvailable, property.Status)
	assert.Empty(t, property.OpenCycleID(models.CycleKindSell))
	owner, _ := property.CurrentOwner()
	assert.Equal(t, sellerName, owner)

	_, err = f.svc.Cycle.CloseCycle(ctx, c.ID, models.CycleOutcomeWon)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("480000"), listingAgent)
	assert.NoError(t, err, "the slot is free again")
}

func TestCycleService_CloseRefusesCycleWithActiveDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "500000")
	o := f.externalOffer(t, c.ID, "480000", "20000")
	_, err := f.svc.Offer.AcceptOffer(agentCtx(listingAgent), o.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Cycle.CloseCycle(ctx, c.ID, models.CycleOutcomeLost)
	assert.ErrorIs(t, err, ErrConflict)

	deal, err := f.svc.Deal.GetDeal(ctx, DealIDForOffer(o.ID))
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusActive, deal.Status)
	cycle, err := f.svc.Cycle.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusUnderNegotiation, cycle.Status)

	_, err = f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("470000"), listingAgent)
	assert.ErrorIs(t, err, ErrConflict, "the sell slot is still held by the deal's cycle")

	_, err = f.svc.Deal.Cancel(ctx, deal.ID, "buyer walked away")
	require.NoError(t, err)
	_, err = f.svc.Cycle.OpenCycle(ctx, p.ID, models.CycleKindSell, dec("470000"), listingAgent)
	assert.NoError(t, err)

	deals, err := f.repos.Deal.List(ctx, func(d *models.Deal) bool { return d.PropertyID == p.ID && d.IsActive() })
	require.NoError(t, err)
	assert.Empty(t, deals)
}

func TestCycleService_CloseWonNeverTransfersOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "500000")

	_, err := f.svc.Cycle.CloseCycle(ctx, c.ID, models.CycleOutcomeWon)
	require.NoError(t, err)

	property, err := f.svc.Property.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, property.Ownership, 1)
}

func TestCycleService_Relist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p, _ := f.internalDeal(t)

	unsold := f.property(t)
	_, err := f.svc.Cycle.Relist(ctx, unsold.ID, dec("600000"), listingAgent)
	assert.ErrorIs(t, err, ErrConflict, "only sold properties relist")

	relistable, err := f.svc.Cycle.ListRelistable(ctx, "")
	require.NoError(t, err)
	require.Len(t, relistable, 1)
	assert.Equal(t, p.ID, relistable[0].ID)

	mine, err := f.svc.Cycle.ListRelistable(ctx, listingAgent)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.svc.Cycle.ListRelistable(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	cycle, err := f.svc.Cycle.Relist(ctx, p.ID, dec("11000000"), "agent-new")
	require.NoError(t, err)
	assert.Equal(t, models.CycleKindSell, cycle.Kind)

	property, err := f.svc.Property.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusAvailable, property.Status)
	assert.Equal(t, "agent-new", property.ListingAgentID)
	assert.Equal(t, cycle.ID, property.OpenCycleID(models.CycleKindSell))
	owner, _ := property.CurrentOwner()
	assert.Equal(t, buyerName, owner, "relisting keeps the new owner")

	relistable, err = f.svc.Cycle.ListRelistable(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, relistable)
}

func TestCycleService_ListRelistableSkipsTrackedProperties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "500000")
	o := f.externalOffer(t, c.ID, "480000", "20000")
	_, err := f.svc.Offer.AcceptOffer(ctx, o.ID, nil)
	require.NoError(t, err)

	relistable, err := f.svc.Cycle.ListRelistable(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, relistable, "the shadow record is sold but tracked")
}
