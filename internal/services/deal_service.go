package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/statemachine"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

var (
	dealNamespace   = uuid.MustParse("a3d8e2f4-5b61-4c09-8e7a-1d2c3b4a5f60")
	shadowNamespace = uuid.MustParse("c9e4b7a1-2f83-4d6e-b015-7a8c9d0e1f23")
)

// DealIDForOffer returns the id of the deal created from offerID. Every
// finalization of the same offer targets the same record.
func DealIDForOffer(offerID string) string {
	return uuid.NewSHA1(dealNamespace, []byte(offerID)).String()
}

// DealService turns accepted offers into deals and settles them.
type DealService struct {
	dealRepo        repository.DealRepository
	offerRepo       repository.OfferRepository
	cycleRepo       repository.CycleRepository
	propertyRepo    repository.PropertyRepository
	requirementRepo repository.RequirementRepository
	scheduleRepo    repository.PaymentScheduleRepository
	cycleSvc        *CycleService
	publisher       events.Publisher
	auditSvc        *AuditService
	config          *config.Config
	now             func() time.Time
}

func NewDealService(
	repos *repository.Repositories,
	cycleSvc *CycleService,
	publisher events.Publisher,
	auditSvc *AuditService,
	cfg *config.Config,
	now func() time.Time,
) *DealService {
	return &DealService{
		dealRepo:        repos.Deal,
		offerRepo:       repos.Offer,
		cycleRepo:       repos.Cycle,
		propertyRepo:    repos.Property,
		requirementRepo: repos.Requirement,
		scheduleRepo:    repos.PaymentSchedule,
		cycleSvc:        cycleSvc,
		publisher:       publisher,
		auditSvc:        auditSvc,
		config:          cfg,
		now:             now,
	}
}

// Subscribe wires the finalizer and settlement handlers onto bus
func (s *DealService) Subscribe(bus *events.Bus) {
	bus.Subscribe("deal-finalizer", events.HandlerFunc(s.onOfferAccepted), events.OfferAccepted)
	bus.Subscribe("deal-settlement", events.HandlerFunc(s.onPaymentRecorded), events.PaymentRecorded)
}

func (s *DealService) onOfferAccepted(ctx context.Context, e events.Event) error {
	_, err := s.Finalize(ctx, e.EntityID)
	return err
}

func (s *DealService) onPaymentRecorded(ctx context.Context, e events.Event) error {
	if e.Attr("settled") != "true" {
		return nil
	}
	_, err := s.Complete(ctx, e.Attr("deal_id"))
	if errors.Is(err, ErrInvalidState) {
		return nil
	}
	return err
}

// Finalize creates the deal for an accepted offer. It is idempotent: the deal
// id is derived from the offer, so a repeated call returns the existing deal.
//
// Internal matches on agency inventory transfer ownership and close the cycle
// won right away. Everything else creates a tracked shadow property for the
// buyer and leaves the cycle open until the deal completes.
func (s *DealService) Finalize(ctx context.Context, offerID string) (*models.Deal, error) {
	dealID := DealIDForOffer(offerID)
	if existing, err := s.dealRepo.Get(ctx, dealID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	offer, err := s.offerRepo.Get(ctx, offerID)
	if err != nil {
		return nil, storeError(err, repository.KindOffer, offerID)
	}
	if offer.Status != models.OfferStatusAccepted {
		return nil, fmt.Errorf("%w: offer %s is %s, only accepted offers become deals", ErrInvalidState, offer.ID, offer.Status)
	}
	cycle, err := s.cycleRepo.Get(ctx, offer.CycleID)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, offer.CycleID)
	}
	if cycle.AcceptedOfferID != offer.ID {
		return nil, validationError("cycle %s did not accept offer %s", cycle.ID, offer.ID)
	}
	property, err := s.propertyRepo.Get(ctx, cycle.PropertyID)
	if err != nil {
		return nil, storeError(err, repository.KindProperty, cycle.PropertyID)
	}

	today := models.NewDate(s.now())
	rate := s.CommissionRate(property)
	seller, _ := property.CurrentOwner()

	deal := &models.Deal{
		Meta:            models.Meta{ID: dealID},
		OfferID:         offer.ID,
		CycleID:         cycle.ID,
		CycleKind:       cycle.Kind,
		PropertyID:      property.ID,
		AgreedPrice:     offer.OfferAmount,
		Currency:        s.config.Currency,
		Buyer:           offer.Buyer,
		Seller:          seller,
		ListingAgentID:  cycle.AgentID,
		BuyingAgentID:   offer.BuyingAgentID,
		Status:          models.DealStatusActive,
		AcceptedDate:    today,
		ExpectedClosing: offer.ClosingDate,
		Commission: models.Commission{
			Rate:  rate,
			Total: commissionTotal(offer.OfferAmount, rate),
		},
	}
	if offer.DecidedAt != nil {
		deal.AcceptedDate = models.NewDate(*offer.DecidedAt)
	}

	comp := newCompensator("finalize deal")
	internal := offer.SourceType == models.OfferSourceInternalMatch && property.IsOwned()

	var shares []SplitShare
	if internal {
		deal.MatchKind = models.MatchKindInternal
		deal.Commission.Policy = models.SplitPolicyTwoWay
		shares = []SplitShare{
			{Party: models.PrimaryAgent(cycle.AgentID)},
			{Party: models.SecondaryAgent(offer.BuyingAgentID)},
		}

		snapshot := clone(property)
		// a tenancy leaves the owner in place
		if cycle.Kind != models.CycleKindRent {
			if err := property.TransferOwnership(offer.Buyer.Reference(), today); err != nil {
				return nil, validationError("cannot transfer property %s: %v", property.ID, err)
			}
		}
		property.Status = closedStatus(cycle.Kind)
		property.ReleaseCycle(cycle.Kind, cycle.ID)
		if err := s.propertyRepo.Put(ctx, property); err != nil {
			return s.finalizeFailed(ctx, comp, dealID, storeError(err, repository.KindProperty, property.ID))
		}
		comp.add("property "+property.ID, restoreStep(s.propertyRepo, snapshot, property))
	} else {
		deal.MatchKind = models.MatchKindExternal
		deal.Commission.Policy = models.SplitPolicySingle
		shares = []SplitShare{{Party: models.SecondaryAgent(offer.BuyingAgentID)}}

		shadow := s.shadowProperty(deal, property, today)
		if err := s.propertyRepo.Put(ctx, shadow); err != nil {
			return s.finalizeFailed(ctx, comp, dealID, storeError(err, repository.KindProperty, shadow.ID))
		}
		comp.add("shadow property "+shadow.ID, deleteStep(s.propertyRepo, shadow.ID))
		deal.ShadowPropertyID = shadow.ID

		if property.Status == models.PropertyStatusAvailable {
			snapshot := clone(property)
			property.Status = models.PropertyStatusUnderOffer
			if err := s.propertyRepo.Put(ctx, property); err != nil {
				return s.finalizeFailed(ctx, comp, dealID, storeError(err, repository.KindProperty, property.ID))
			}
			comp.add("property "+property.ID, restoreStep(s.propertyRepo, snapshot, property))
		}
	}

	planned, err := planSplit(deal.Commission.Policy, shares)
	if err != nil {
		return nil, comp.fail(ctx, err)
	}
	deal.Commission.Entries = buildEntries(deal.ID, deal.Commission.Total, planned)

	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return s.finalizeFailed(ctx, comp, dealID, storeError(err, repository.KindDeal, deal.ID))
	}
	comp.add("deal "+deal.ID, deleteStep(s.dealRepo, deal.ID))

	if internal {
		if err := s.cycleSvc.closeWith(ctx, comp, cycle, models.CycleOutcomeWon, nil); err != nil {
			return nil, comp.fail(ctx, err)
		}
	}

	s.auditSvc.Log(ctx, models.AuditActionFinalize, "Deal", deal.ID,
		fmt.Sprintf("%s deal from offer %s at %s %s, commission %s", deal.MatchKind, offer.ID, deal.AgreedPrice, deal.Currency, deal.Commission.Total))
	logger.Info("Deal finalized",
		"deal_id", deal.ID,
		"offer_id", offer.ID,
		"match_kind", string(deal.MatchKind),
		"commission", deal.Commission.Total.String(),
	)

	s.publisher.Publish(ctx, events.New(events.DealFinalized, string(repository.KindDeal), deal.ID).At(s.now()).
		With("offer_id", offer.ID).
		With("agreed_price", deal.AgreedPrice.String()).
		With("match_kind", string(deal.MatchKind)).
		To(deal.ListingAgentID, deal.BuyingAgentID))

	return deal, nil
}

// finalizeFailed compensates and, when a concurrent finalization already won
// the race for the deal id, returns that deal instead of the error.
func (s *DealService) finalizeFailed(ctx context.Context, comp *compensator, dealID string, cause error) (*models.Deal, error) {
	err := comp.fail(ctx, cause)
	if errors.Is(cause, ErrConflict) {
		var agg *AggregateError
		if !errors.As(err, &agg) || agg.Consistent() {
			if existing, gerr := s.dealRepo.Get(ctx, dealID); gerr == nil {
				return existing, nil
			}
		}
	}
	return nil, err
}

func (s *DealService) shadowProperty(deal *models.Deal, source *models.Property, today models.Date) *models.Property {
	return &models.Property{
		Meta:           models.Meta{ID: uuid.NewSHA1(shadowNamespace, []byte(deal.ID)).String()},
		Address:        source.Address,
		Area:           source.Area,
		AreaUnit:       source.AreaUnit,
		Status:         closedStatus(deal.CycleKind),
		Identity:       models.PropertyTracked,
		ListingAgentID: deal.BuyingAgentID,
		Ownership:      []models.OwnershipPeriod{{Owner: deal.Buyer.Reference(), StartDate: today}},
		SourceDealID:   deal.ID,
	}
}

// closedStatus is the property status a won cycle of kind leads to
func closedStatus(kind models.CycleKind) models.PropertyStatus {
	if kind == models.CycleKindRent {
		return models.PropertyStatusRented
	}
	return models.PropertyStatusSold
}

// Complete settles an active deal: the buyer requirement is marked acquired,
// the cycle closes won if it is still open and the deal becomes completed.
func (s *DealService) Complete(ctx context.Context, dealID string) (*models.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsActive() {
		return nil, fmt.Errorf("%w: deal %s is %s", ErrInvalidState, deal.ID, deal.Status)
	}
	if deal.PaymentScheduleID != "" {
		schedule, err := s.scheduleRepo.Get(ctx, deal.PaymentScheduleID)
		if err != nil {
			return nil, storeError(err, repository.KindPaymentSchedule, deal.PaymentScheduleID)
		}
		if !schedule.IsSettled() {
			return nil, validationError("deal %s still has %s outstanding", deal.ID, schedule.Total().Sub(schedule.PaidTotal()))
		}
	}
	cycle, err := s.cycleRepo.Get(ctx, deal.CycleID)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, deal.CycleID)
	}

	comp := newCompensator("complete deal")
	now := s.now().UTC()

	if deal.Buyer.IsInternal() {
		if err := s.markAcquired(ctx, comp, deal, now); err != nil {
			return nil, comp.fail(ctx, err)
		}
	}

	var mutate func(*models.Property) bool
	if deal.MatchKind == models.MatchKindExternal {
		mutate = func(p *models.Property) bool {
			if p.Status != models.PropertyStatusUnderOffer {
				return false
			}
			p.Status = closedStatus(deal.CycleKind)
			return true
		}
	}
	if err := s.cycleSvc.closeWith(ctx, comp, cycle, models.CycleOutcomeWon, mutate); err != nil {
		return nil, comp.fail(ctx, err)
	}

	if err := statemachine.NewDealFSM(deal).Complete(ctx); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindDeal, deal.ID))
	}
	closing := models.NewDate(now)
	deal.ActualClosing = &closing
	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindDeal, deal.ID))
	}

	s.auditSvc.Log(ctx, models.AuditActionComplete, "Deal", deal.ID, fmt.Sprintf("closed on %s", closing))
	logger.Info("Deal completed", "deal_id", deal.ID, "cycle_id", cycle.ID)

	s.publisher.Publish(ctx, events.New(events.DealCompleted, string(repository.KindDeal), deal.ID).At(s.now()).
		With("agreed_price", deal.AgreedPrice.String()).
		To(deal.ListingAgentID, deal.BuyingAgentID))
	return deal, nil
}

func (s *DealService) markAcquired(ctx context.Context, comp *compensator, deal *models.Deal, at time.Time) error {
	req, err := s.requirementRepo.Get(ctx, deal.Buyer.RequirementID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Buyer requirement missing on completion", "deal_id", deal.ID, "requirement_id", deal.Buyer.RequirementID)
		return nil
	}
	if err != nil {
		return err
	}
	if !req.IsActive() {
		return nil
	}

	snapshot := clone(req)
	req.Status = models.RequirementStatusAcquired
	req.AcquiredDealID = deal.ID
	req.AcquiredAt = &at
	if err := s.requirementRepo.Put(ctx, req); err != nil {
		return storeError(err, repository.KindRequirement, req.ID)
	}
	comp.add("requirement "+req.ID, restoreStep(s.requirementRepo, snapshot, req))
	return nil
}

// Cancel abandons an active deal. A cycle still open closes lost and a
// property held under offer becomes available again. Ownership already
// transferred by an internal match and shadow properties stay as they are.
func (s *DealService) Cancel(ctx context.Context, dealID, reason string) (*models.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsActive() {
		return nil, fmt.Errorf("%w: deal %s is %s", ErrInvalidState, deal.ID, deal.Status)
	}
	cycle, err := s.cycleRepo.Get(ctx, deal.CycleID)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, deal.CycleID)
	}

	comp := newCompensator("cancel deal")
	mutate := func(p *models.Property) bool {
		if p.Status != models.PropertyStatusUnderOffer {
			return false
		}
		p.Status = models.PropertyStatusAvailable
		return true
	}
	if err := s.cycleSvc.closeWith(ctx, comp, cycle, models.CycleOutcomeLost, mutate); err != nil {
		return nil, comp.fail(ctx, err)
	}

	if err := statemachine.NewDealFSM(deal).Cancel(ctx); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindDeal, deal.ID))
	}
	deal.CancelReason = strings.TrimSpace(reason)
	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindDeal, deal.ID))
	}

	s.auditSvc.Log(ctx, models.AuditActionCancel, "Deal", deal.ID, deal.CancelReason)
	logger.Info("Deal cancelled", "deal_id", deal.ID, "reason", deal.CancelReason)

	s.publisher.Publish(ctx, events.New(events.DealCancelled, string(repository.KindDeal), deal.ID).At(s.now()).
		With("reason", deal.CancelReason).
		To(deal.ListingAgentID, deal.BuyingAgentID))
	return deal, nil
}

func (s *DealService) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	deal, err := s.dealRepo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindDeal, id)
	}
	return deal, nil
}

// ListDeals returns deals, optionally filtered by status and agent on either side
func (s *DealService) ListDeals(ctx context.Context, status models.DealStatus, agentID string) ([]*models.Deal, error) {
	return s.dealRepo.List(ctx, func(d *models.Deal) bool {
		if status != "" && d.Status != status {
			return false
		}
		return agentID == "" || d.ListingAgentID == agentID || d.BuyingAgentID == agentID
	})
}

// CommissionRate returns the rate a deal on property would use
func (s *DealService) CommissionRate(property *models.Property) decimal.Decimal {
	if property.CommissionRate != nil {
		return *property.CommissionRate
	}
	return s.config.DefaultCommissionRate
}
