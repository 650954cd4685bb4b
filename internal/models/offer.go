package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus is the negotiation status of an offer
type OfferStatus string

// Offer status constants
const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// OfferSource tells where the buyer behind an offer comes from
type OfferSource string

// Offer source constants
const (
	OfferSourceInternalMatch    OfferSource = "internal_match"
	OfferSourceBuyerRequirement OfferSource = "buyer_requirement"
	OfferSourceExternal         OfferSource = "external"
)

// Valid reports whether s is a known offer source
func (s OfferSource) Valid() bool {
	switch s {
	case OfferSourceInternalMatch, OfferSourceBuyerRequirement, OfferSourceExternal:
		return true
	}
	return false
}

// BuyerRef identifies the buyer: an internal requirement or an external name.
type BuyerRef struct {
	RequirementID string `json:"requirement_id,omitempty"`
	Name          string `json:"name,omitempty"`
}

// Reference returns the identifier used as the buyer's owner name
func (b BuyerRef) Reference() string {
	if b.Name != "" {
		return b.Name
	}
	return b.RequirementID
}

// IsInternal returns true when the buyer comes from the requirement pool
func (b BuyerRef) IsInternal() bool {
	return b.RequirementID != ""
}

// Offer is a buyer's bid against a cycle
type Offer struct {
	Meta
	CycleID       string          `json:"cycle_id"`
	PropertyID    string          `json:"property_id"`
	Buyer         BuyerRef        `json:"buyer"`
	OfferAmount   decimal.Decimal `json:"offer_amount"`
	TokenAmount   decimal.Decimal `json:"token_amount"`
	Conditions    string          `json:"conditions,omitempty"`
	Status        OfferStatus     `json:"status"`
	SourceType    OfferSource     `json:"source_type"`
	BuyingAgentID string          `json:"buying_agent_id"`
	ClosingDate   *Date           `json:"closing_date,omitempty"`
	StatusReason  string          `json:"status_reason,omitempty"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
	DecidedBy     string          `json:"decided_by,omitempty"`
}

// IsPending returns true while the offer can still change
func (o *Offer) IsPending() bool {
	return o.Status == OfferStatusPending
}

// AmountsValid reports whether 0 < token <= offer holds
func (o *Offer) AmountsValid() bool {
	return o.TokenAmount.IsPositive() && o.OfferAmount.IsPositive() &&
		o.TokenAmount.LessThanOrEqual(o.OfferAmount)
}
