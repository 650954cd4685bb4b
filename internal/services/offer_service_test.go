package services

import (
	"context"
	"testing"
	"time"

	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferService_TokenAboveOfferPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")

	_, err := f.svc.Offer.SubmitOffer(ctx, SubmitOfferInput{
		CycleID:     c.ID,
		Buyer:       models.BuyerRef{Name: "Walk-in Buyer"},
		OfferAmount: dec("500000"),
		TokenAmount: dec("600000"),
		SourceType:  models.OfferSourceExternal,
	})
	assert.ErrorIs(t, err, ErrValidation)

	offers, err := f.svc.Offer.ListOffers(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)

	cycle, err := f.svc.Cycle.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusOpen, cycle.Status)
	assert.Zero(t, cycle.OfferCount)
	assert.Equal(t, c.Version, cycle.Version)
}

func TestOfferService_SubmitOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")
	r := f.requirement(t)

	o, err := f.svc.Offer.SubmitOffer(ctx, SubmitOfferInput{
		CycleID:     c.ID,
		Buyer:       models.BuyerRef{RequirementID: r.ID},
		OfferAmount: dec("500000"),
		TokenAmount: dec("50000"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OfferSourceBuyerRequirement, o.SourceType)
	assert.Equal(t, buyerName, o.Buyer.Name)
	assert.Equal(t, buyingAgent, o.BuyingAgentID)
	assert.Equal(t, models.OfferStatusPending, o.Status)

	cycle, err := f.svc.Cycle.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusUnderNegotiation, cycle.Status)
	assert.Equal(t, 1, cycle.OfferCount)

	tests := []struct {
		name  string
		input SubmitOfferInput
	}{
		{"zero offer", SubmitOfferInput{CycleID: c.ID, Buyer: models.BuyerRef{Name: "X"}, OfferAmount: dec("0"), TokenAmount: dec("1")}},
		{"zero token", SubmitOfferInput{CycleID: c.ID, Buyer: models.BuyerRef{Name: "X"}, OfferAmount: dec("10"), TokenAmount: dec("0")}},
		{"external without name", SubmitOfferInput{CycleID: c.ID, OfferAmount: dec("10"), TokenAmount: dec("1"), SourceType: models.OfferSourceExternal}},
		{"internal without requirement", SubmitOfferInput{CycleID: c.ID, Buyer: models.BuyerRef{Name: "X"}, OfferAmount: dec("10"), TokenAmount: dec("1"), SourceType: models.OfferSourceInternalMatch}},
		{"unknown requirement", SubmitOfferInput{CycleID: c.ID, Buyer: models.BuyerRef{RequirementID: "ghost"}, OfferAmount: dec("10"), TokenAmount: dec("1")}},
		{"unknown source", SubmitOfferInput{CycleID: c.ID, Buyer: models.BuyerRef{Name: "X"}, OfferAmount: dec("10"), TokenAmount: dec("1"), SourceType: "referral"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Offer.SubmitOffer(ctx, tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err = f.svc.Offer.SubmitOffer(ctx, SubmitOfferInput{CycleID: "ghost", Buyer: models.BuyerRef{Name: "X"}, OfferAmount: dec("10"), TokenAmount: dec("1")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOfferService_SingleAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")

	first := f.externalOffer(t, c.ID, "500000", "10000")
	second := f.externalOffer(t, c.ID, "510000", "10000")

	_, err := f.svc.Offer.AcceptOffer(ctx, first.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Offer.AcceptOffer(ctx, second.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Offer.AcceptOffer(ctx, first.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState, "accepting twice is not a no-op")

	_, err = f.svc.Offer.SubmitOffer(ctx, SubmitOfferInput{
		CycleID:     c.ID,
		Buyer:       models.BuyerRef{Name: "Late Buyer"},
		OfferAmount: dec("520000"),
		TokenAmount: dec("10000"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := f.svc.Offer.GetOffer(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, stored.Status)

	offers, err := f.svc.Offer.ListOffers(ctx, c.ID)
	require.NoError(t, err)
	accepted := 0
	for _, o := range offers {
		if o.Status == models.OfferStatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestOfferService_AcceptLosesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")
	o := f.externalOffer(t, c.ID, "500000", "10000")

	f.store.setFailPut(func(rec *repository.Record) error {
		if rec.Kind == repository.KindCycle {
			return repository.ErrVersionConflict
		}
		return nil
	})
	_, err := f.svc.Offer.AcceptOffer(ctx, o.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)
	f.store.setFailPut(nil)

	stored, err := f.svc.Offer.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, stored.Status)

	cycle, err := f.svc.Cycle.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, cycle.AcceptedOfferID)
}

func TestOfferService_AcceptRejectsPastClosingDate(t *testing.T) {
	f := newFixture(t)
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")
	o := f.externalOffer(t, c.ID, "500000", "10000")

	past := models.NewDate(f.now.AddDate(0, 0, -1))
	_, err := f.svc.Offer.AcceptOffer(context.Background(), o.ID, &past)
	assert.ErrorIs(t, err, ErrValidation)

	closing := models.DateOf(2024, time.June, 30)
	result, err := f.svc.Offer.AcceptOffer(context.Background(), o.ID, &closing)
	require.NoError(t, err)
	require.NotNil(t, result.Offer.ClosingDate)
	assert.True(t, result.Offer.ClosingDate.Equal(closing))

	deal, err := f.svc.Deal.GetDeal(context.Background(), DealIDForOffer(o.ID))
	require.NoError(t, err)
	require.NotNil(t, deal.ExpectedClosing)
	assert.True(t, deal.ExpectedClosing.Equal(closing))
}

func TestOfferService_RejectAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := agentCtx(listingAgent)
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")
	first := f.externalOffer(t, c.ID, "400000", "10000")
	second := f.externalOffer(t, c.ID, "410000", "10000")

	rejected, err := f.svc.Offer.RejectOffer(ctx, first.ID, "too low")
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusRejected, rejected.Status)
	assert.Equal(t, "too low", rejected.StatusReason)
	assert.Equal(t, listingAgent, rejected.DecidedBy)

	withdrawn, err := f.svc.Offer.WithdrawOffer(ctx, second.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusWithdrawn, withdrawn.Status)

	_, err = f.svc.Offer.AcceptOffer(ctx, first.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Offer.RejectOffer(ctx, second.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)

	cycle, err := f.svc.Cycle.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, cycle.IsOpen(), "rejections never close the cycle")
}

func TestOfferService_AdjustOfferCapsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "550000")
	o := f.externalOffer(t, c.ID, "500000", "100000")

	adjusted, err := f.svc.Offer.AdjustOffer(ctx, o.ID, dec("80000"), nil)
	require.NoError(t, err)
	assert.True(t, adjusted.OfferAmount.Equal(dec("80000")))
	assert.True(t, adjusted.TokenAmount.Equal(dec("80000")))

	raised, err := f.svc.Offer.AdjustOffer(ctx, o.ID, dec("90000"), nil)
	require.NoError(t, err)
	assert.True(t, raised.TokenAmount.Equal(dec("80000")), "token is never raised implicitly")

	token := dec("95000")
	_, err = f.svc.Offer.AdjustOffer(ctx, o.ID, dec("90000"), &token)
	assert.ErrorIs(t, err, ErrValidation)

	token = dec("30000")
	explicit, err := f.svc.Offer.AdjustOffer(ctx, o.ID, dec("90000"), &token)
	require.NoError(t, err)
	assert.True(t, explicit.TokenAmount.Equal(dec("30000")))

	_, err = f.svc.Offer.RejectOffer(ctx, o.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Offer.AdjustOffer(ctx, o.ID, dec("90000"), nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}
