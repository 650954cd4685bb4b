package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/statemachine"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// SubmitOfferInput is a buyer's bid on a cycle
type SubmitOfferInput struct {
	CycleID       string
	Buyer         models.BuyerRef
	OfferAmount   decimal.Decimal
	TokenAmount   decimal.Decimal
	Conditions    string
	SourceType    models.OfferSource
	BuyingAgentID string
}

// AcceptOfferResult carries the accepted offer and its cycle as read after commit
type AcceptOfferResult struct {
	Offer *models.Offer `json:"offer"`
	Cycle *models.Cycle `json:"cycle"`
}

type OfferService struct {
	offerRepo       repository.OfferRepository
	cycleRepo       repository.CycleRepository
	requirementRepo repository.RequirementRepository
	publisher       events.Publisher
	auditSvc        *AuditService
	now             func() time.Time
}

func NewOfferService(
	offerRepo repository.OfferRepository,
	cycleRepo repository.CycleRepository,
	requirementRepo repository.RequirementRepository,
	publisher events.Publisher,
	auditSvc *AuditService,
	now func() time.Time,
) *OfferService {
	return &OfferService{
		offerRepo:       offerRepo,
		cycleRepo:       cycleRepo,
		requirementRepo: requirementRepo,
		publisher:       publisher,
		auditSvc:        auditSvc,
		now:             now,
	}
}

// SubmitOffer records a pending offer. The first offer moves the cycle to under_negotiation.
func (s *OfferService) SubmitOffer(ctx context.Context, in SubmitOfferInput) (*models.Offer, error) {
	if !in.OfferAmount.IsPositive() {
		return nil, validationError("offer amount must be greater than zero")
	}
	if !in.TokenAmount.IsPositive() {
		return nil, validationError("token amount must be greater than zero")
	}
	if in.TokenAmount.GreaterThan(in.OfferAmount) {
		return nil, validationError("token amount %s exceeds offer amount %s", in.TokenAmount, in.OfferAmount)
	}
	in.Buyer.Name = strings.TrimSpace(in.Buyer.Name)
	if in.SourceType == "" {
		in.SourceType = models.OfferSourceExternal
		if in.Buyer.IsInternal() {
			in.SourceType = models.OfferSourceBuyerRequirement
		}
	}
	if err := validateBuyer(in.SourceType, in.Buyer); err != nil {
		return nil, err
	}

	cycle, err := s.cycleRepo.Get(ctx, in.CycleID)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, in.CycleID)
	}
	if !cycle.IsOpen() {
		return nil, validationError("cycle %s is %s and does not accept offers", cycle.ID, cycle.Status)
	}
	if cycle.HasAcceptedOffer() {
		return nil, validationError("cycle %s already has an accepted offer", cycle.ID)
	}

	buyingAgent := in.BuyingAgentID
	if in.Buyer.IsInternal() {
		req, err := s.requirementRepo.Get(ctx, in.Buyer.RequirementID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("buyer requirement %s does not exist", in.Buyer.RequirementID)
		}
		if err != nil {
			return nil, err
		}
		if !req.IsActive() {
			return nil, validationError("buyer requirement %s is %s", req.ID, req.Status)
		}
		if in.Buyer.Name == "" {
			in.Buyer.Name = req.BuyerName
		}
		if buyingAgent == "" {
			buyingAgent = req.AgentID
		}
	}
	if buyingAgent == "" {
		buyingAgent = cycle.AgentID
	}

	offer := &models.Offer{
		Meta:          models.Meta{ID: uuid.NewString()},
		CycleID:       cycle.ID,
		PropertyID:    cycle.PropertyID,
		Buyer:         in.Buyer,
		OfferAmount:   in.OfferAmount,
		TokenAmount:   in.TokenAmount,
		Conditions:    strings.TrimSpace(in.Conditions),
		Status:        models.OfferStatusPending,
		SourceType:    in.SourceType,
		BuyingAgentID: buyingAgent,
	}

	comp := newCompensator("submit offer")
	if err := s.offerRepo.Put(ctx, offer); err != nil {
		return nil, storeError(err, repository.KindOffer, offer.ID)
	}
	comp.add("offer "+offer.ID, deleteStep(s.offerRepo, offer.ID))

	cycle.OfferCount++
	if err := statemachine.NewCycleFSM(cycle).Negotiate(ctx); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindCycle, cycle.ID))
	}
	if err := s.cycleRepo.Put(ctx, cycle); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindCycle, cycle.ID))
	}

	s.auditSvc.Log(ctx, models.AuditActionCreate, "Offer", offer.ID,
		fmt.Sprintf("offer %s (token %s) from %s on cycle %s", offer.OfferAmount, offer.TokenAmount, offer.Buyer.Reference(), cycle.ID))
	logger.Info("Offer submitted", "offer_id", offer.ID, "cycle_id", cycle.ID, "source", string(offer.SourceType))
	return offer, nil
}

func validateBuyer(source models.OfferSource, buyer models.BuyerRef) error {
	switch source {
	case models.OfferSourceInternalMatch, models.OfferSourceBuyerRequirement:
		if !buyer.IsInternal() {
			return validationError("%s offers must reference a buyer requirement", source)
		}
	case models.OfferSourceExternal:
		if buyer.IsInternal() {
			return validationError("external offers cannot reference a buyer requirement")
		}
		if buyer.Name == "" {
			return validationError("external offers need a buyer name")
		}
	default:
		return validationError("unknown offer source %q", source)
	}
	return nil
}

// AcceptOffer marks the offer accepted and emits offer.accepted once both the
// cycle claim and the offer are committed.
func (s *OfferService) AcceptOffer(ctx context.Context, offerID string, closingDate *models.Date) (*AcceptOfferResult, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	cycle, err := s.cycleRepo.Get(ctx, offer.CycleID)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, offer.CycleID)
	}
	if cycle.HasAcceptedOffer() && cycle.AcceptedOfferID != offer.ID {
		return nil, validationError("cycle %s already accepted offer %s", cycle.ID, cycle.AcceptedOfferID)
	}
	if !offer.IsPending() {
		return nil, fmt.Errorf("%w: offer %s is %s", ErrInvalidState, offer.ID, offer.Status)
	}
	if !cycle.IsOpen() {
		return nil, validationError("cycle %s is %s", cycle.ID, cycle.Status)
	}
	today := models.NewDate(s.now())
	if closingDate != nil && closingDate.Before(today) {
		return nil, validationError("closing date %s is in the past", closingDate)
	}

	comp := newCompensator("accept offer")

	// Claiming the cycle first makes a second accepting writer lose on the version check.
	cycleSnapshot := clone(cycle)
	cycle.AcceptedOfferID = offer.ID
	if err := s.cycleRepo.Put(ctx, cycle); err != nil {
		return nil, storeError(err, repository.KindCycle, cycle.ID)
	}
	comp.add("cycle "+cycle.ID, restoreStep(s.cycleRepo, cycleSnapshot, cycle))

	if err := statemachine.NewOfferFSM(offer).Accept(ctx); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindOffer, offer.ID))
	}
	s.decide(ctx, offer, "")
	offer.ClosingDate = closingDate
	if err := s.offerRepo.Put(ctx, offer); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindOffer, offer.ID))
	}

	s.auditSvc.Log(ctx, models.AuditActionAccept, "Offer", offer.ID,
		fmt.Sprintf("accepted at %s on cycle %s", offer.OfferAmount, cycle.ID))
	logger.Info("Offer accepted", "offer_id", offer.ID, "cycle_id", cycle.ID)

	s.publisher.Publish(ctx, events.New(events.OfferAccepted, string(repository.KindOffer), offer.ID).At(s.now()).
		With("cycle_id", cycle.ID).
		With("property_id", cycle.PropertyID).
		With("amount", offer.OfferAmount.String()).
		To(cycle.AgentID, offer.BuyingAgentID))

	// subscribers may have moved the cycle on
	current, err := s.cycleRepo.Get(ctx, cycle.ID)
	if err != nil {
		current = cycle
	}
	if refreshed, err := s.offerRepo.Get(ctx, offer.ID); err == nil {
		offer = refreshed
	}
	return &AcceptOfferResult{Offer: offer, Cycle: current}, nil
}

// RejectOffer closes a pending offer as rejected. The cycle stays open.
func (s *OfferService) RejectOffer(ctx context.Context, offerID, reason string) (*models.Offer, error) {
	return s.terminate(ctx, offerID, reason, "reject", func(m *statemachine.OfferFSM) error { return m.Reject(ctx) })
}

// WithdrawOffer closes a pending offer as withdrawn by the buyer. The cycle stays open.
func (s *OfferService) WithdrawOffer(ctx context.Context, offerID, reason string) (*models.Offer, error) {
	return s.terminate(ctx, offerID, reason, "withdraw", func(m *statemachine.OfferFSM) error { return m.Withdraw(ctx) })
}

func (s *OfferService) terminate(ctx context.Context, offerID, reason, action string, transition func(*statemachine.OfferFSM) error) (*models.Offer, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := transition(statemachine.NewOfferFSM(offer)); err != nil {
		return nil, storeError(err, repository.KindOffer, offer.ID)
	}
	s.decide(ctx, offer, strings.TrimSpace(reason))
	if err := s.offerRepo.Put(ctx, offer); err != nil {
		return nil, storeError(err, repository.KindOffer, offer.ID)
	}

	s.auditSvc.Log(ctx, models.AuditActionUpdate, "Offer", offer.ID, fmt.Sprintf("%s: %s", action, reason))
	logger.Info("Offer closed", "offer_id", offer.ID, "status", string(offer.Status))
	return offer, nil
}

func (s *OfferService) decide(ctx context.Context, offer *models.Offer, reason string) {
	at := s.now().UTC()
	offer.DecidedAt = &at
	offer.StatusReason = reason
	if actor, ok := models.ActorFromContext(ctx); ok {
		offer.DecidedBy = actor.ID
	}
}

// AdjustOffer changes the amounts of a pending offer. Lowering the offer below
// the current token caps the token at the new offer; the token is never raised
// unless the caller sets it.
func (s *OfferService) AdjustOffer(ctx context.Context, offerID string, offerAmount decimal.Decimal, tokenAmount *decimal.Decimal) (*models.Offer, error) {
	if !offerAmount.IsPositive() {
		return nil, validationError("offer amount must be greater than zero")
	}
	if tokenAmount != nil {
		if !tokenAmount.IsPositive() {
			return nil, validationError("token amount must be greater than zero")
		}
		if tokenAmount.GreaterThan(offerAmount) {
			return nil, validationError("token amount %s exceeds offer amount %s", tokenAmount, offerAmount)
		}
	}

	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsPending() {
		return nil, fmt.Errorf("%w: offer %s is %s and can no longer change", ErrInvalidState, offer.ID, offer.Status)
	}

	previous := offer.OfferAmount
	offer.OfferAmount = offerAmount
	switch {
	case tokenAmount != nil:
		offer.TokenAmount = *tokenAmount
	case offer.TokenAmount.GreaterThan(offerAmount):
		offer.TokenAmount = offerAmount
	}
	if err := s.offerRepo.Put(ctx, offer); err != nil {
		return nil, storeError(err, repository.KindOffer, offer.ID)
	}

	s.auditSvc.Log(ctx, models.AuditActionUpdate, "Offer", offer.ID,
		fmt.Sprintf("amount %s -> %s, token %s", previous, offer.OfferAmount, offer.TokenAmount))
	return offer, nil
}

func (s *OfferService) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	offer, err := s.offerRepo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindOffer, id)
	}
	return offer, nil
}

// ListOffers returns the offers of a cycle
func (s *OfferService) ListOffers(ctx context.Context, cycleID string) ([]*models.Offer, error) {
	return s.offerRepo.List(ctx, func(o *models.Offer) bool {
		return cycleID == "" || o.CycleID == cycleID
	})
}
