package services

import (
	"context"
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

var (
	hundred = decimal.NewFromInt(100)

	splitNamespace = uuid.MustParse("6f1c3b0e-7a34-4c4e-9a8d-2f5b1d9e0c17")
)

// SplitShare is one party of a split with the percentage it asks for.
// Percentage is ignored by the two_way and single policies.
type SplitShare struct {
	Party      models.SplitParty `json:"party"`
	Percentage decimal.Decimal   `json:"percentage"`
}

// BulkResult is the outcome for one entry of a bulk operation
type BulkResult struct {
	EntryID string                       `json:"entry_id"`
	Entry   *models.CommissionSplitEntry `json:"entry,omitempty"`
	Err     error                        `json:"-"`
}

// OK returns true when the entry was committed
func (r BulkResult) OK() bool {
	return r.Err == nil
}

// CommissionLine is a split entry together with the deal it belongs to
type CommissionLine struct {
	DealID string                      `json:"deal_id"`
	Entry  models.CommissionSplitEntry `json:"entry"`
}

// CommissionService computes commission splits and runs the administrator
// approval workflow on each split entry.
type CommissionService struct {
	dealRepo  repository.DealRepository
	publisher events.Publisher
	auditSvc  *AuditService
	now       func() time.Time
}

func NewCommissionService(dealRepo repository.DealRepository, publisher events.Publisher, auditSvc *AuditService, now func() time.Time) *CommissionService {
	return &CommissionService{
		dealRepo:  dealRepo,
		publisher: publisher,
		auditSvc:  auditSvc,
		now:       now,
	}
}

// commissionTotal is agreedPrice * rate / 100 in currency cents
func commissionTotal(agreedPrice, rate decimal.Decimal) decimal.Decimal {
	return agreedPrice.Mul(rate).Div(hundred).Round(2)
}

// planSplit validates shares against policy and returns them with the
// percentages the policy assigns.
func planSplit(policy models.SplitPolicy, shares []SplitShare) ([]SplitShare, error) {
	seen := make(map[string]bool, len(shares))
	for _, share := range shares {
		if !share.Party.Valid() {
			return nil, validationError("invalid split party %q", share.Party.Key())
		}
		if seen[share.Party.Key()] {
			return nil, validationError("party %s appears more than once in the split", share.Party.Key())
		}
		seen[share.Party.Key()] = true
	}

	planned := make([]SplitShare, len(shares))
	copy(planned, shares)

	switch policy {
	case models.SplitPolicyTwoWay:
		if len(planned) != 2 {
			return nil, validationError("a two way split needs exactly two parties, got %d", len(planned))
		}
		planned[0].Percentage = decimal.NewFromInt(50)
		planned[1].Percentage = decimal.NewFromInt(50)
	case models.SplitPolicySingle:
		if len(planned) != 1 {
			return nil, validationError("a single split needs exactly one party, got %d", len(planned))
		}
		planned[0].Percentage = hundred
	case models.SplitPolicyCustom:
		if len(planned) == 0 {
			return nil, validationError("a custom split needs at least one party")
		}
		sum := decimal.Zero
		for _, share := range planned {
			if !share.Percentage.IsPositive() {
				return nil, validationError("percentage for %s must be greater than zero", share.Party.Key())
			}
			sum = sum.Add(share.Percentage)
		}
		if !sum.Equal(hundred) {
			return nil, validationError("split percentages sum to %s, expected exactly 100", sum)
		}
	default:
		return nil, validationError("unknown split policy %q", policy)
	}
	return planned, nil
}

// buildEntries turns planned shares into pending entries. Amounts are rounded
// to cents and the last entry absorbs the remainder so they add up to total.
func buildEntries(dealID string, total decimal.Decimal, shares []SplitShare) []models.CommissionSplitEntry {
	entries := make([]models.CommissionSplitEntry, 0, len(shares))
	allocated := decimal.Zero
	for i, share := range shares {
		amount := total.Mul(share.Percentage).Div(hundred).Round(2)
		if i == len(shares)-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		entries = append(entries, models.CommissionSplitEntry{
			ID:         uuid.NewSHA1(splitNamespace, []byte(dealID+"/"+share.Party.Key())).String(),
			Party:      share.Party,
			Percentage: share.Percentage,
			Amount:     amount,
			Status:     models.CommissionStatusPending,
		})
	}
	return entries
}

// ComputeSplit replaces the split of a deal whose entries are all still pending
func (s *CommissionService) ComputeSplit(ctx context.Context, dealID string, policy models.SplitPolicy, shares []SplitShare) ([]models.CommissionSplitEntry, error) {
	planned, err := planSplit(policy, shares)
	if err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.Get(ctx, dealID)
	if err != nil {
		return nil, storeError(err, repository.KindDeal, dealID)
	}
	if !deal.IsActive() {
		return nil, validationError("deal %s is %s", deal.ID, deal.Status)
	}
	if !deal.Commission.AllPending() {
		return nil, validationError("deal %s has approved or paid commission entries", deal.ID)
	}

	deal.Commission.Policy = policy
	deal.Commission.Entries = buildEntries(deal.ID, deal.Commission.Total, planned)
	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return nil, storeError(err, repository.KindDeal, deal.ID)
	}

	s.auditSvc.Log(ctx, models.AuditActionUpdate, "Commission", deal.ID,
		fmt.Sprintf("split recomputed: %s across %d parties", policy, len(planned)))
	return deal.Commission.Entries, nil
}

// Approve moves an entry from pending to approved
func (s *CommissionService) Approve(ctx context.Context, entryID string) (*models.CommissionSplitEntry, error) {
	return s.update(ctx, entryID, models.AuditActionApprove, func(actor models.Actor, at time.Time, entry *models.CommissionSplitEntry) (events.Type, error) {
		if err := statemachine.NewCommissionFSM(entry).Approve(ctx); err != nil {
			return "", err
		}
		entry.ApprovedBy = actor.ID
		entry.ApprovedAt = &at
		return events.CommissionApproved, nil
	})
}

// Reject sends an entry back to pending with the reason attached
func (s *CommissionService) Reject(ctx context.Context, entryID, reason string) (*models.CommissionSplitEntry, error) {
	reason = strings.TrimSpace(reason)
	return s.update(ctx, entryID, models.AuditActionReject, func(actor models.Actor, at time.Time, entry *models.CommissionSplitEntry) (events.Type, error) {
		if reason == "" {
			return "", validationError("a rejection reason is required")
		}
		if err := statemachine.NewCommissionFSM(entry).Reject(ctx); err != nil {
			return "", err
		}
		entry.RejectionReason = reason
		entry.RejectedBy = actor.ID
		entry.RejectedAt = &at
		entry.ApprovedBy = ""
		entry.ApprovedAt = nil
		return events.CommissionRejected, nil
	})
}

// Override replaces an entry's amount. The first computed amount is kept in
// OverrideAmount and the entry needs a fresh approval.
func (s *CommissionService) Override(ctx context.Context, entryID string, newAmount decimal.Decimal, reason string) (*models.CommissionSplitEntry, error) {
	reason = strings.TrimSpace(reason)
	return s.update(ctx, entryID, models.AuditActionOverride, func(actor models.Actor, at time.Time, entry *models.CommissionSplitEntry) (events.Type, error) {
		if reason == "" {
			return "", validationError("an override reason is required")
		}
		if !newAmount.IsPositive() {
			return "", validationError("override amount must be greater than zero")
		}
		if err := statemachine.NewCommissionFSM(entry).Override(ctx); err != nil {
			return "", err
		}
		if entry.OverrideAmount == nil {
			original := entry.Amount
			entry.OverrideAmount = &original
		}
		entry.Amount = newAmount
		entry.OverrideReason = reason
		entry.OverriddenBy = actor.ID
		entry.OverriddenAt = &at
		entry.ApprovedBy = ""
		entry.ApprovedAt = nil
		return events.CommissionOverridden, nil
	})
}

// MarkPaid moves an approved entry to paid
func (s *CommissionService) MarkPaid(ctx context.Context, entryID string) (*models.CommissionSplitEntry, error) {
	return s.update(ctx, entryID, models.AuditActionPay, func(actor models.Actor, at time.Time, entry *models.CommissionSplitEntry) (events.Type, error) {
		if err := statemachine.NewCommissionFSM(entry).Pay(ctx); err != nil {
			return "", err
		}
		entry.PaidBy = actor.ID
		entry.PaidAt = &at
		return events.CommissionPaid, nil
	})
}

// BulkApprove approves every entry it can and reports each result
func (s *CommissionService) BulkApprove(ctx context.Context, entryIDs []string) ([]BulkResult, error) {
	return s.bulk(ctx, entryIDs, func(id string) (*models.CommissionSplitEntry, error) {
		return s.Approve(ctx, id)
	})
}

// BulkReject rejects every entry it can with one shared reason
func (s *CommissionService) BulkReject(ctx context.Context, entryIDs []string, reason string) ([]BulkResult, error) {
	if strings.TrimSpace(reason) == "" {
		if _, err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		return nil, validationError("a rejection reason is required")
	}
	return s.bulk(ctx, entryIDs, func(id string) (*models.CommissionSplitEntry, error) {
		return s.Reject(ctx, id, reason)
	})
}

// BulkMarkPaid marks every entry it can as paid
func (s *CommissionService) BulkMarkPaid(ctx context.Context, entryIDs []string) ([]BulkResult, error) {
	return s.bulk(ctx, entryIDs, func(id string) (*models.CommissionSplitEntry, error) {
		return s.MarkPaid(ctx, id)
	})
}

// bulk applies op per entry. Each entry commits on its own; failures are
// reported next to the successes instead of aborting the batch.
func (s *CommissionService) bulk(ctx context.Context, entryIDs []string, op func(id string) (*models.CommissionSplitEntry, error)) ([]BulkResult, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if len(entryIDs) == 0 {
		return nil, validationError("no commission entries given")
	}

	results := make([]BulkResult, 0, len(entryIDs))
	failed := 0
	for _, id := range entryIDs {
		entry, err := op(id)
		if err != nil {
			failed++
		}
		results = append(results, BulkResult{EntryID: id, Entry: entry, Err: err})
	}
	logger.Info("Bulk commission update", "entries", len(entryIDs), "failed", failed)
	return results, nil
}

type entryUpdate func(actor models.Actor, at time.Time, entry *models.CommissionSplitEntry) (events.Type, error)

func (s *CommissionService) update(ctx context.Context, entryID, action string, apply entryUpdate) (*models.CommissionSplitEntry, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	deal, err := s.findDealByEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if deal.Status == models.DealStatusCancelled {
		return nil, validationError("deal %s is cancelled", deal.ID)
	}
	entry, _ := deal.Commission.Entry(entryID)
	original := entry.Amount

	eventType, err := apply(actor, s.now().UTC(), entry)
	if err != nil {
		return nil, storeError(err, repository.KindDeal, deal.ID)
	}
	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return nil, storeError(err, repository.KindDeal, deal.ID)
	}

	s.auditSvc.Log(ctx, action, "Commission", entry.ID,
		fmt.Sprintf("deal %s, %s: %s -> %s, status %s", deal.ID, entry.Party.Key(), original, entry.Amount, entry.Status))
	logger.Info("Commission entry updated", "entry_id", entry.ID, "deal_id", deal.ID, "status", string(entry.Status))

	e := events.New(eventType, "commission_entry", entry.ID).At(s.now()).
		With("deal_id", deal.ID).
		With("amount", entry.Amount.String()).
		To(entry.Party.AgentID)
	e.ActorID = actor.ID
	switch eventType {
	case events.CommissionRejected:
		e = e.With("reason", entry.RejectionReason)
	case events.CommissionOverridden:
		e = e.With("reason", entry.OverrideReason).With("original_amount", original.String())
	}
	s.publisher.Publish(ctx, e)

	return entry, nil
}

func (s *CommissionService) findDealByEntry(ctx context.Context, entryID string) (*models.Deal, error) {
	deals, err := s.dealRepo.List(ctx, func(d *models.Deal) bool {
		_, ok := d.Commission.Entry(entryID)
		return ok
	})
	if err != nil {
		return nil, err
	}
	if len(deals) == 0 {
		return nil, fmt.Errorf("%w: commission entry %s", ErrNotFound, entryID)
	}
	return deals[0], nil
}

// ListEntries returns split entries across deals, optionally filtered by status
func (s *CommissionService) ListEntries(ctx context.Context, status models.CommissionStatus) ([]CommissionLine, error) {
	deals, err := s.dealRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	var lines []CommissionLine
	for _, d := range deals {
		for _, e := range d.Commission.Entries {
			if status == "" || e.Status == status {
				lines = append(lines, CommissionLine{DealID: d.ID, Entry: e})
			}
		}
	}
	return lines, nil
}

func requireAdmin(ctx context.Context) (models.Actor, error) {
	actor, ok := models.ActorFromContext(ctx)
	if !ok || !actor.IsAdmin() {
		return actor, fmt.Errorf("%w: administrator role required", ErrForbidden)
	}
	return actor, nil
}
