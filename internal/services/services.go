package services

import (
	"time"

	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
)

// Services holds all service instances
type Services struct {
	Property        *PropertyService
	Requirement     *RequirementService
	Cycle           *CycleService
	Offer           *OfferService
	Deal            *DealService
	Commission      *CommissionService
	PaymentSchedule *PaymentScheduleService
	Audit           *AuditService
	Notification    *NotificationService
	Email           *EmailService
	Report          *ReportService
	Job             *JobService
}

// NewServices creates all service instances and subscribes the event
// consumers on bus. now is the clock every service reads "today" from.
func NewServices(repos *repository.Repositories, bus *events.Bus, worker *jobs.Worker, cfg *config.Config, now func() time.Time) *Services {
	if now == nil {
		now = time.Now
	}

	auditSvc := NewAuditService(repos.Audit)
	cycleSvc := NewCycleService(repos.Property, repos.Cycle, repos.Deal, auditSvc, now)
	dealSvc := NewDealService(repos, cycleSvc, bus, auditSvc, cfg, now)
	scheduleSvc := NewPaymentScheduleService(repos.PaymentSchedule, repos.Deal, bus, auditSvc, now)
	notificationSvc := NewNotificationService(repos.Notification, worker)
	emailSvc := NewEmailService(cfg, worker)

	// order matters: the finalizer runs before anyone is told about the acceptance
	dealSvc.Subscribe(bus)
	bus.Subscribe("notifications", notificationSvc,
		events.OfferAccepted,
		events.DealFinalized,
		events.DealCompleted,
		events.DealCancelled,
		events.CommissionApproved,
		events.CommissionRejected,
		events.CommissionOverridden,
		events.CommissionPaid,
		events.PaymentRecorded,
		events.PaymentOverdue,
	)
	emailSvc.Subscribe(bus)

	return &Services{
		Property:        NewPropertyService(repos.Property, auditSvc, now),
		Requirement:     NewRequirementService(repos.Requirement, auditSvc),
		Cycle:           cycleSvc,
		Offer:           NewOfferService(repos.Offer, repos.Cycle, repos.Requirement, bus, auditSvc, now),
		Deal:            dealSvc,
		Commission:      NewCommissionService(repos.Deal, bus, auditSvc, now),
		PaymentSchedule: scheduleSvc,
		Audit:           auditSvc,
		Notification:    notificationSvc,
		Email:           emailSvc,
		Report:          NewReportService(repos.Deal, scheduleSvc, cfg.AgencyID),
		Job:             NewJobService(worker, scheduleSvc),
	}
}
