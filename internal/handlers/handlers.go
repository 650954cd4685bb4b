package handlers

import (
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/internal/storage"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Property     *PropertyHandler
	Requirement  *RequirementHandler
	Cycle        *CycleHandler
	Offer        *OfferHandler
	Deal         *DealHandler
	Commission   *CommissionHandler
	Schedule     *ScheduleHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Report       *ReportHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, receipts *storage.LocalStorage) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Property:     NewPropertyHandler(svcs.Property, svcs.Cycle),
		Requirement:  NewRequirementHandler(svcs.Requirement),
		Cycle:        NewCycleHandler(svcs.Cycle, svcs.Offer),
		Offer:        NewOfferHandler(svcs.Offer, svcs.Deal),
		Deal:         NewDealHandler(svcs.Deal, svcs.Commission, svcs.Audit),
		Commission:   NewCommissionHandler(svcs.Commission),
		Schedule:     NewScheduleHandler(svcs.PaymentSchedule, svcs.Deal, receipts),
		Notification: NewNotificationHandler(svcs.Notification),
		Audit:        NewAuditHandler(svcs.Audit),
		Report:       NewReportHandler(svcs.Report),
		Job:          NewJobHandler(svcs.Job),
	}
}
