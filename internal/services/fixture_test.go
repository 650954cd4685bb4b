package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
	"github.com/stretchr/testify/require"
)

const (
	listingAgent = "agent-listing"
	buyingAgent  = "agent-buying"
	sellerName   = "Maria Lopez"
	buyerName    = "Jane Buyer"
)

// faultyStore lets a test fail selected writes
type faultyStore struct {
	repository.Store

	mu      sync.Mutex
	failPut func(rec *repository.Record) error
}

func (s *faultyStore) Put(ctx context.Context, rec *repository.Record) error {
	s.mu.Lock()
	fail := s.failPut
	s.mu.Unlock()
	if fail != nil {
		if err := fail(rec); err != nil {
			return err
		}
	}
	return s.Store.Put(ctx, rec)
}

func (s *faultyStore) setFailPut(fn func(rec *repository.Record) error) {
	s.mu.Lock()
	s.failPut = fn
	s.mu.Unlock()
}

// recorder captures every published event
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store    *faultyStore
	repos    *repository.Repositories
	worker   *jobs.Worker
	svc      *Services
	recorder *recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Discard()

	f := &fixture{
		store:    &faultyStore{Store: repository.NewMemoryStore()},
		recorder: &recorder{},
		now:      time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC),
	}
	f.repos = repository.NewRepositories(f.store)
	f.worker = jobs.NewWorker(2)
	t.Cleanup(f.worker.Shutdown)

	cfg := &config.Config{
		Currency:              "USD",
		DefaultCommissionRate: decimal.NewFromInt(2),
		AgencyID:              "agency",
	}
	bus := events.NewBus()
	f.svc = NewServices(f.repos, bus, f.worker, cfg, func() time.Time { return f.now })
	bus.Subscribe("recorder", f.recorder,
		events.OfferAccepted, events.DealFinalized, events.DealCompleted, events.DealCancelled,
		events.CommissionApproved, events.CommissionRejected, events.CommissionOverridden, events.CommissionPaid,
		events.PaymentRecorded, events.PaymentOverdue,
	)
	return f
}

func (f *fixture) today() models.Date {
	return models.NewDate(f.now)
}

func adminCtx() context.Context {
	return models.WithActor(context.Background(), models.Actor{ID: "admin-1", Role: models.RoleAdmin})
}

func agentCtx(id string) context.Context {
	return models.WithActor(context.Background(), models.Actor{ID: id, Role: models.RoleAgent})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) property(t *testing.T) *models.Property {
	t.Helper()
	p, err := f.svc.Property.Create(agentCtx(listingAgent), CreatePropertyInput{
		Address:        "12 Harbour Street",
		Area:           dec("180"),
		ListingAgentID: listingAgent,
		Owner:          sellerName,
		OwnedSince:     models.DateOf(2015, time.June, 1),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) sellCycle(t *testing.T, propertyID, price string) *models.Cycle {
	t.Helper()
	c, err := f.svc.Cycle.OpenCycle(agentCtx(listingAgent), propertyID, models.CycleKindSell, dec(price), listingAgent)
	require.NoError(t, err)
	return c
}

func (f *fixture) requirement(t *testing.T) *models.BuyerRequirement {
	t.Helper()
	r, err := f.svc.Requirement.Create(agentCtx(buyingAgent), CreateRequirementInput{
		BuyerName: buyerName,
		AgentID:   buyingAgent,
		Kind:      models.CycleKindSell,
		Budget:    dec("10000000"),
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) internalOffer(t *testing.T, cycleID, requirementID, amount, token string) *models.Offer {
	t.Helper()
	o, err := f.svc.Offer.SubmitOffer(agentCtx(buyingAgent), SubmitOfferInput{
		CycleID:     cycleID,
		Buyer:       models.BuyerRef{RequirementID: requirementID},
		OfferAmount: dec(amount),
		TokenAmount: dec(token),
		SourceType:  models.OfferSourceInternalMatch,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) externalOffer(t *testing.T, cycleID, amount, token string) *models.Offer {
	t.Helper()
	o, err := f.svc.Offer.SubmitOffer(agentCtx("agent-outside"), SubmitOfferInput{
		CycleID:       cycleID,
		Buyer:         models.BuyerRef{Name: "Walk-in Buyer"},
		OfferAmount:   dec(amount),
		TokenAmount:   dec(token),
		SourceType:    models.OfferSourceExternal,
		BuyingAgentID: "agent-outside",
	})
	require.NoError(t, err)
	return o
}

// internalDeal runs scenario A up to the finalized deal
func (f *fixture) internalDeal(t *testing.T) (*models.Deal, *models.Property, *models.BuyerRequirement) {
	t.Helper()
	p := f.property(t)
	c := f.sellCycle(t, p.ID, "10000000")
	r := f.requirement(t)
	o := f.internalOffer(t, c.ID, r.ID, "9500000", "950000")

	_, err := f.svc.Offer.AcceptOffer(agentCtx(listingAgent), o.ID, nil)
	require.NoError(t, err)

	deal, err := f.svc.Deal.GetDeal(context.Background(), DealIDForOffer(o.ID))
	require.NoError(t, err)
	return deal, p, r
}
