package repository

import (
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

type (
	PropertyRepository        = Repository[*models.Property]
	CycleRepository           = Repository[*models.Cycle]
	OfferRepository           = Repository[*models.Offer]
	DealRepository            = Repository[*models.Deal]
	PaymentScheduleRepository = Repository[*models.PaymentSchedule]
	RequirementRepository     = Repository[*models.BuyerRequirement]
	AuditRepository           = Repository[*models.AuditLog]
	NotificationRepository    = Repository[*models.Notification]
)

// Repositories holds all repository instances
type Repositories struct {
	Property        PropertyRepository
	Cycle           CycleRepository
	Offer           OfferRepository
	Deal            DealRepository
	PaymentSchedule PaymentScheduleRepository
	Requirement     RequirementRepository
	Audit           AuditRepository
	Notification    NotificationRepository
}

// NewRepositories creates all repository instances over one store
func NewRepositories(store Store) *Repositories {
	return &Repositories{
		Property:        NewRepository[*models.Property](store, KindProperty),
		Cycle:           NewRepository[*models.Cycle](store, KindCycle),
		Offer:           NewRepository[*models.Offer](store, KindOffer),
		Deal:            NewRepository[*models.Deal](store, KindDeal),
		PaymentSchedule: NewRepository[*models.PaymentSchedule](store, KindPaymentSchedule),
		Requirement:     NewRepository[*models.BuyerRequirement](store, KindRequirement),
		Audit:           NewRepository[*models.AuditLog](store, KindAudit),
		Notification:    NewRepository[*models.Notification](store, KindNotification),
	}
}
