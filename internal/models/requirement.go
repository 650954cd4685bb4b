package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequirementStatus is the status of a buyer requirement
type RequirementStatus string

const (
	RequirementStatusActive   RequirementStatus = "active"
	RequirementStatusAcquired RequirementStatus = "acquired"
)

// BuyerRequirement is a buyer's search registered with the agency
type BuyerRequirement struct {
	Meta
	BuyerName      string            `json:"buyer_name"`
	AgentID        string            `json:"agent_id"`
	Kind           CycleKind         `json:"kind"`
	Budget         decimal.Decimal   `json:"budget"`
	Notes          string            `json:"notes,omitempty"`
	Status         RequirementStatus `json:"status"`
	AcquiredDealID string            `json:"acquired_deal_id,omitempty"`
	AcquiredAt     *time.Time        `json:"acquired_at,omitempty"`
}

// IsActive returns true while the buyer is still searching
func (r *BuyerRequirement) IsActive() bool {
	return r.Status == RequirementStatusActive
}
