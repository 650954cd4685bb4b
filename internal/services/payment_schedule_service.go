package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

var scheduleNamespace = uuid.MustParse("0b7e5d2c-9f14-4a3b-8c6d-e5f4a3b2c1d0")

// ScheduleIDForDeal returns the id of the one payment schedule a deal may have
func ScheduleIDForDeal(dealID string) string {
	return uuid.NewSHA1(scheduleNamespace, []byte(dealID)).String()
}

// InstalmentInput is one requested instalment of a schedule
type InstalmentInput struct {
	Amount  decimal.Decimal `json:"amount"`
	DueDate models.Date     `json:"due_date"`
}

// RecordPaymentInput is a payment received against one instalment
type RecordPaymentInput struct {
	ScheduleID   string
	InstalmentID string
	Amount       decimal.Decimal
	PaymentDate  models.Date
	Method       string
	ReceiptRef   string
	Notes        string
}

// OverdueInstalment is an instalment past its due date with money outstanding
type OverdueInstalment struct {
	ScheduleID  string            `json:"schedule_id"`
	DealID      string            `json:"deal_id"`
	Instalment  models.Instalment `json:"instalment"`
	Remaining   decimal.Decimal   `json:"remaining"`
	DaysOverdue int               `json:"days_overdue"`
}

// PaymentScheduleService tracks the instalment plan of each deal
type PaymentScheduleService struct {
	scheduleRepo repository.PaymentScheduleRepository
	dealRepo     repository.DealRepository
	publisher    events.Publisher
	auditSvc     *AuditService
	now          func() time.Time
}

func NewPaymentScheduleService(
	scheduleRepo repository.PaymentScheduleRepository,
	dealRepo repository.DealRepository,
	publisher events.Publisher,
	auditSvc *AuditService,
	now func() time.Time,
) *PaymentScheduleService {
	return &PaymentScheduleService{
		scheduleRepo: scheduleRepo,
		dealRepo:     dealRepo,
		publisher:    publisher,
		auditSvc:     auditSvc,
		now:          now,
	}
}

// PlanInstalments splits total into count monthly instalments starting on
// firstDue. Amounts are whole currency units; the first instalment picks up
// whatever the division leaves over.
func PlanInstalments(total decimal.Decimal, count int, firstDue models.Date) ([]InstalmentInput, error) {
	if !total.IsPositive() {
		return nil, validationError("total must be greater than zero")
	}
	if count <= 0 {
		return nil, validationError("instalment count must be greater than zero")
	}
	if firstDue.IsZero() {
		return nil, validationError("first due date is required")
	}

	n := decimal.NewFromInt(int64(count))
	base := total.Div(n).Floor()
	first := total.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))
	if !base.IsPositive() {
		return nil, validationError("total %s is too small for %d instalments", total, count)
	}

	plan := make([]InstalmentInput, count)
	for i := range plan {
		amount := base
		if i == 0 {
			amount = first
		}
		plan[i] = InstalmentInput{
			Amount:  amount,
			DueDate: models.Date{Time: firstDue.AddDate(0, i, 0)},
		}
	}
	return plan, nil
}

// GenerateSchedule attaches an instalment plan to an active deal. The
// instalments must add up to the agreed price exactly.
func (s *PaymentScheduleService) GenerateSchedule(ctx context.Context, dealID string, instalments []InstalmentInput) (*models.PaymentSchedule, error) {
	if len(instalments) == 0 {
		return nil, validationError("at least one instalment is required")
	}
	sum := decimal.Zero
	for i, in := range instalments {
		if !in.Amount.IsPositive() {
			return nil, validationError("instalment %d amount must be greater than zero", i+1)
		}
		if in.DueDate.IsZero() {
			return nil, validationError("instalment %d needs a due date", i+1)
		}
		sum = sum.Add(in.Amount)
	}

	deal, err := s.dealRepo.Get(ctx, dealID)
	if err != nil {
		return nil, storeError(err, repository.KindDeal, dealID)
	}
	if !deal.IsActive() {
		return nil, validationError("deal %s is %s", deal.ID, deal.Status)
	}
	if !sum.Equal(deal.AgreedPrice) {
		return nil, fmt.Errorf("%w: %w: instalments sum to %s, agreed price is %s",
			ErrConsistency, ErrValidation, sum, deal.AgreedPrice)
	}

	schedule := &models.PaymentSchedule{
		Meta:        models.Meta{ID: ScheduleIDForDeal(deal.ID)},
		DealID:      deal.ID,
		Currency:    deal.Currency,
		Instalments: make([]models.Instalment, 0, len(instalments)),
	}
	for i, in := range instalments {
		number := i + 1
		schedule.Instalments = append(schedule.Instalments, models.Instalment{
			ID:         uuid.NewSHA1(scheduleNamespace, []byte(schedule.ID+"/"+strconv.Itoa(number))).String(),
			Number:     number,
			Amount:     in.Amount,
			DueDate:    in.DueDate,
			PaidAmount: decimal.Zero,
		})
	}

	comp := newCompensator("generate schedule")
	if err := s.scheduleRepo.Put(ctx, schedule); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, conflictError("deal %s already has a payment schedule", deal.ID)
		}
		return nil, err
	}
	comp.add("schedule "+schedule.ID, deleteStep(s.scheduleRepo, schedule.ID))

	deal.PaymentScheduleID = schedule.ID
	if err := s.dealRepo.Put(ctx, deal); err != nil {
		return nil, comp.fail(ctx, storeError(err, repository.KindDeal, deal.ID))
	}

	s.auditSvc.Log(ctx, models.AuditActionCreate, "PaymentSchedule", schedule.ID,
		fmt.Sprintf("%d instalments totalling %s for deal %s", len(schedule.Instalments), sum, deal.ID))
	logger.Info("Payment schedule generated", "schedule_id", schedule.ID, "deal_id", deal.ID, "instalments", len(schedule.Instalments))
	return schedule, nil
}

// RecordPayment appends a payment to an instalment. Overpaying an instalment
// is rejected without touching the schedule.
func (s *PaymentScheduleService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.PaymentSchedule, error) {
	if !in.Amount.IsPositive() {
		return nil, validationError("payment amount must be greater than zero")
	}
	if in.PaymentDate.IsZero() {
		return nil, validationError("payment date is required")
	}
	today := models.NewDate(s.now())
	if in.PaymentDate.After(today) {
		return nil, validationError("payment date %s is in the future", in.PaymentDate)
	}

	schedule, err := s.GetSchedule(ctx, in.ScheduleID)
	if err != nil {
		return nil, err
	}
	instalment, ok := schedule.Instalment(in.InstalmentID)
	if !ok {
		return nil, fmt.Errorf("%w: instalment %s on schedule %s", ErrNotFound, in.InstalmentID, schedule.ID)
	}
	if remaining := instalment.Remaining(); in.Amount.GreaterThan(remaining) {
		return nil, validationError("payment %s exceeds the %s remaining on instalment %d", in.Amount, remaining, instalment.Number)
	}
	deal, err := s.dealRepo.Get(ctx, schedule.DealID)
	if err != nil {
		return nil, storeError(err, repository.KindDeal, schedule.DealID)
	}
	if !deal.IsActive() {
		return nil, validationError("deal %s is %s", deal.ID, deal.Status)
	}

	record := models.PaymentRecord{
		Date:       in.PaymentDate,
		Amount:     in.Amount,
		Method:     strings.TrimSpace(in.Method),
		ReceiptRef: strings.TrimSpace(in.ReceiptRef),
		Notes:      strings.TrimSpace(in.Notes),
		RecordedAt: s.now().UTC(),
	}
	if actor, ok := models.ActorFromContext(ctx); ok {
		record.RecordedBy = actor.ID
	}
	instalment.Payments = append(instalment.Payments, record)
	instalment.PaidAmount = instalment.PaidAmount.Add(in.Amount)

	if err := s.scheduleRepo.Put(ctx, schedule); err != nil {
		return nil, storeError(err, repository.KindPaymentSchedule, schedule.ID)
	}

	status := instalment.Status(today)
	settled := schedule.IsSettled()
	s.auditSvc.Log(ctx, models.AuditActionPay, "PaymentSchedule", schedule.ID,
		fmt.Sprintf("instalment %d: %s received, %s", instalment.Number, in.Amount, status))
	logger.Info("Payment recorded",
		"schedule_id", schedule.ID,
		"instalment", instalment.Number,
		"amount", in.Amount.String(),
		"settled", settled,
	)

	s.publisher.Publish(ctx, events.New(events.PaymentRecorded, string(repository.KindPaymentSchedule), schedule.ID).At(s.now()).
		With("deal_id", deal.ID).
		With("instalment_id", instalment.ID).
		With("amount", in.Amount.String()).
		With("status", string(status)).
		With("settled", strconv.FormatBool(settled)).
		To(deal.ListingAgentID, deal.BuyingAgentID))

	// a settled schedule may have completed the deal; return what is stored now
	if current, err := s.scheduleRepo.Get(ctx, schedule.ID); err == nil {
		schedule = current
	}
	return schedule, nil
}

func (s *PaymentScheduleService) GetSchedule(ctx context.Context, id string) (*models.PaymentSchedule, error) {
	schedule, err := s.scheduleRepo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindPaymentSchedule, id)
	}
	return schedule, nil
}

// Today is the calendar day instalment statuses are derived against
func (s *PaymentScheduleService) Today() models.Date {
	return models.NewDate(s.now())
}

// GetScheduleByDeal returns the schedule attached to a deal
func (s *PaymentScheduleService) GetScheduleByDeal(ctx context.Context, dealID string) (*models.PaymentSchedule, error) {
	return s.GetSchedule(ctx, ScheduleIDForDeal(dealID))
}

// ListOverdue returns every instalment overdue as of today across active deals
func (s *PaymentScheduleService) ListOverdue(ctx context.Context, today models.Date) ([]OverdueInstalment, error) {
	schedules, err := s.scheduleRepo.List(ctx, func(ps *models.PaymentSchedule) bool {
		return !ps.IsSettled()
	})
	if err != nil {
		return nil, err
	}

	var overdue []OverdueInstalment
	for _, ps := range schedules {
		deal, err := s.dealRepo.Get(ctx, ps.DealID)
		if err != nil || !deal.IsActive() {
			continue
		}
		for _, inst := range ps.Instalments {
			if !inst.DueDate.Before(today) || !inst.Remaining().IsPositive() {
				continue
			}
			overdue = append(overdue, OverdueInstalment{
				ScheduleID:  ps.ID,
				DealID:      ps.DealID,
				Instalment:  inst,
				Remaining:   inst.Remaining(),
				DaysOverdue: int(today.Sub(inst.DueDate.Time).Hours() / 24),
			})
		}
	}
	return overdue, nil
}

// SendOverdueReminders publishes payment.overdue for each overdue instalment
// and returns how many were sent.
func (s *PaymentScheduleService) SendOverdueReminders(ctx context.Context) (int, error) {
	overdue, err := s.ListOverdue(ctx, models.NewDate(s.now()))
	if err != nil {
		return 0, err
	}

	for _, o := range overdue {
		e := events.New(events.PaymentOverdue, string(repository.KindPaymentSchedule), o.ScheduleID).At(s.now()).
			With("deal_id", o.DealID).
			With("instalment_id", o.Instalment.ID).
			With("number", strconv.Itoa(o.Instalment.Number)).
			With("due_date", o.Instalment.DueDate.String()).
			With("remaining", o.Remaining.String())
		if deal, err := s.dealRepo.Get(ctx, o.DealID); err == nil {
			e = e.To(deal.ListingAgentID, deal.BuyingAgentID)
		}
		s.publisher.Publish(ctx, e)
	}
	return len(overdue), nil
}
