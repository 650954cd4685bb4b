package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/statemachine"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// CycleService tracks the sell, purchase and rent cycles open on each property.
//
// The property record holds one slot per cycle kind. Opening a cycle claims
// the slot with a versioned write before the cycle itself is stored, so two
// concurrent opens of the same kind cannot both succeed.
type CycleService struct {
	propertyRepo repository.PropertyRepository
	cycleRepo    repository.CycleRepository
	dealRepo     repository.DealRepository
	auditSvc     *AuditService
	now          func() time.Time
}

func NewCycleService(
	propertyRepo repository.PropertyRepository,
	cycleRepo repository.CycleRepository,
	dealRepo repository.DealRepository,
	auditSvc *AuditService,
	now func() time.Time,
) *CycleService {
	return &CycleService{
		propertyRepo: propertyRepo,
		cycleRepo:    cycleRepo,
		dealRepo:     dealRepo,
		auditSvc:     auditSvc,
		now:          now,
	}
}

// OpenCycle starts a sell, purchase or rent process on a property
func (s *CycleService) OpenCycle(ctx context.Context, propertyID string, kind models.CycleKind, askingPrice decimal.Decimal, agentID string) (*models.Cycle, error) {
	if !kind.Valid() {
		return nil, validationError("unknown cycle kind %q", kind)
	}
	return s.open(ctx, propertyID, kind, askingPrice, agentID, false)
}

// Relist opens a new sell cycle on a property that was sold, keeping its identity
func (s *CycleService) Relist(ctx context.Context, propertyID string, askingPrice decimal.Decimal, agentID string) (*models.Cycle, error) {
	return s.open(ctx, propertyID, models.CycleKindSell, askingPrice, agentID, true)
}

func (s *CycleService) open(ctx context.Context, propertyID string, kind models.CycleKind, askingPrice decimal.Decimal, agentID string, relist bool) (*models.Cycle, error) {
	if !askingPrice.IsPositive() {
		return nil, validationError("asking price must be greater than zero")
	}
	if agentID == "" {
		return nil, validationError("agent is required")
	}

	property, err := s.propertyRepo.Get(ctx, propertyID)
	if err != nil {
		return nil, storeError(err, repository.KindProperty, propertyID)
	}
	if relist && property.Status != models.PropertyStatusSold {
		return nil, conflictError("property %s is %s, only sold properties can be relisted", propertyID, property.Status)
	}

	live, err := s.slotIsLive(ctx, property, kind)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, conflictError("property %s already has an open %s cycle", propertyID, kind)
	}

	cycle := &models.Cycle{
		Meta:        models.Meta{ID: uuid.NewString()},
		PropertyID:  property.ID,
		Kind:        kind,
		AskingPrice: askingPrice,
		AgentID:     agentID,
		Status:      models.CycleStatusOpen,
	}

	comp := newCompensator("open cycle")
	snapshot := clone(property)
	property.ClaimCycle(kind, cycle.ID)
	if relist {
		property.Status = models.PropertyStatusAvailable
		property.ListingAgentID = agentID
	}
	if err := s.propertyRepo.Put(ctx, property); err != nil {
		return nil, storeError(err, repository.KindProperty, property.ID)
	}
	comp.add("property slot", restoreStep(s.propertyRepo, snapshot, property))

	if err := s.cycleRepo.Put(ctx, cycle); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindCycle, cycle.ID))
	}

	action := "opened"
	if relist {
		action = "relisted"
	}
	s.auditSvc.Log(ctx, models.AuditActionCreate, "Cycle", cycle.ID,
		fmt.Sprintf("%s cycle %s on property %s at %s", kind, action, property.ID, askingPrice.StringFixed(2)))
	logger.Info("Cycle opened", "cycle_id", cycle.ID, "property_id", property.ID, "kind", string(kind), "relist", relist)
	return cycle, nil
}

// slotIsLive reports whether the property's slot for kind still points at an
// open cycle. A slot left behind by a cycle that is gone or closed is stale.
func (s *CycleService) slotIsLive(ctx context.Context, property *models.Property, kind models.CycleKind) (bool, error) {
	holder := property.OpenCycleID(kind)
	if holder == "" {
		return false, nil
	}
	cycle, err := s.cycleRepo.Get(ctx, holder)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cycle.IsOpen(), nil
}

// CloseCycle ends a cycle as won or lost. It never transfers ownership and a
// lost cycle leaves the property status as it is. A cycle whose accepted offer
// became an active deal only closes through that deal's completion or cancellation.
func (s *CycleService) CloseCycle(ctx context.Context, cycleID string, outcome models.CycleOutcome) (*models.Cycle, error) {
	cycle, err := s.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if !cycle.IsOpen() {
		return nil, fmt.Errorf("%w: cycle %s is already %s", ErrInvalidState, cycle.ID, cycle.Status)
	}
	if cycle.HasAcceptedOffer() {
		dealID := DealIDForOffer(cycle.AcceptedOfferID)
		deal, err := s.dealRepo.Get(ctx, dealID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err, repository.KindDeal, dealID)
		}
		if err == nil && deal.IsActive() {
			return nil, conflictError("cycle %s has active deal %s; complete or cancel the deal instead", cycle.ID, deal.ID)
		}
	}

	comp := newCompensator("close cycle")
	if err := s.closeWith(ctx, comp, cycle, outcome, nil); err != nil {
		return nil, comp.fail(ctx, err)
	}

	s.auditSvc.Log(ctx, models.AuditActionUpdate, "Cycle", cycle.ID, fmt.Sprintf("closed %s", outcome))
	logger.Info("Cycle closed", "cycle_id", cycle.ID, "outcome", string(outcome))
	return cycle, nil
}

// closeWith frees the property's slot, applying mutate to the property in the
// same write, and then closes the cycle if it is still open. mutate reports
// whether it changed the property; the property is only written when something changed. Undo steps are
// registered on comp; the caller decides when to fail.
func (s *CycleService) closeWith(ctx context.Context, comp *compensator, cycle *models.Cycle, outcome models.CycleOutcome, mutate func(*models.Property) bool) error {
	if cycle.IsOpen() {
		// validate the transition before touching the property
		probe := *cycle
		if err := statemachine.NewCycleFSM(&probe).Close(ctx, outcome); err != nil {
			return storeError(err, repository.KindCycle, cycle.ID)
		}
	}

	property, err := s.propertyRepo.Get(ctx, cycle.PropertyID)
	if err != nil {
		return storeError(err, repository.KindProperty, cycle.PropertyID)
	}
	snapshot := clone(property)
	changed := property.ReleaseCycle(cycle.Kind, cycle.ID)
	if mutate != nil && mutate(property) {
		changed = true
	}
	if changed {
		if err := s.propertyRepo.Put(ctx, property); err != nil {
			return storeError(err, repository.KindProperty, property.ID)
		}
		comp.add("property "+property.ID, restoreStep(s.propertyRepo, snapshot, property))
	}

	if !cycle.IsOpen() {
		return nil
	}

	cycleSnapshot := clone(cycle)
	if err := statemachine.NewCycleFSM(cycle).Close(ctx, outcome); err != nil {
		return storeError(err, repository.KindCycle, cycle.ID)
	}
	closedAt := s.now().UTC()
	cycle.ClosedAt = &closedAt
	if err := s.cycleRepo.Put(ctx, cycle); err != nil {
		*cycle = *cycleSnapshot
		return storeError(err, repository.KindCycle, cycle.ID)
	}
	comp.add("cycle "+cycle.ID, restoreStep(s.cycleRepo, cycleSnapshot, cycle))
	return nil
}

// ListRelistable returns owned properties that were sold and have no open
// sell cycle. A non-empty userID limits the result to that listing agent.
func (s *CycleService) ListRelistable(ctx context.Context, userID string) ([]*models.Property, error) {
	sold, err := s.propertyRepo.List(ctx, func(p *models.Property) bool {
		return p.Status == models.PropertyStatusSold &&
			p.IsOwned() &&
			(userID == "" || p.ListingAgentID == userID)
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Property, 0, len(sold))
	for _, p := range sold {
		live, err := s.slotIsLive(ctx, p, models.CycleKindSell)
		if err != nil {
			return nil, err
		}
		if !live {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CycleService) GetCycle(ctx context.Context, id string) (*models.Cycle, error) {
	cycle, err := s.cycleRepo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindCycle, id)
	}
	return cycle, nil
}

// ListCycles returns the cycles of a property, or every cycle when propertyID is empty
func (s *CycleService) ListCycles(ctx context.Context, propertyID string) ([]*models.Cycle, error) {
	return s.cycleRepo.List(ctx, func(c *models.Cycle) bool {
		return propertyID == "" || c.PropertyID == propertyID
	})
}
