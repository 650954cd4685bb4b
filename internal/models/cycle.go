package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleKind is the market process a cycle runs
type CycleKind string

// Cycle kind constants
const (
	CycleKindSell     CycleKind = "sell"
	CycleKindPurchase CycleKind = "purchase"
	CycleKindRent     CycleKind = "rent"
)

// Valid reports whether k is a known cycle kind
func (k CycleKind) Valid() bool {
	switch k {
	case CycleKindSell, CycleKindPurchase, CycleKindRent:
		return true
	}
	return false
}

// CycleStatus is the lifecycle status of a cycle
type CycleStatus string

// Cycle status constants
const (
	CycleStatusOpen             CycleStatus = "open"
	CycleStatusUnderNegotiation CycleStatus = "under_negotiation"
	CycleStatusClosedWon        CycleStatus = "closed_won"
	CycleStatusClosedLost       CycleStatus = "closed_lost"
)

// CycleOutcome is the result a cycle is closed with
type CycleOutcome string

const (
	CycleOutcomeWon  CycleOutcome = "won"
	CycleOutcomeLost CycleOutcome = "lost"
)

// Cycle is one sell, purchase or rent process against a property
type Cycle struct {
	Meta
	PropertyID      string          `json:"property_id"`
	Kind            CycleKind       `json:"kind"`
	AskingPrice     decimal.Decimal `json:"asking_price"`
	AgentID         string          `json:"agent_id"`
	Status          CycleStatus     `json:"status"`
	AcceptedOfferID string          `json:"accepted_offer_id,omitempty"`
	OfferCount      int             `json:"offer_count"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

// IsOpen returns true while the cycle accepts offers
func (c *Cycle) IsOpen() bool {
	return c.Status == CycleStatusOpen || c.Status == CycleStatusUnderNegotiation
}

// HasAcceptedOffer returns true once an offer has been accepted on the cycle
func (c *Cycle) HasAcceptedOffer() bool {
	return c.AcceptedOfferID != ""
}
