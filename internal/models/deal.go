package models

import (
	"github.com/shopspring/decimal"
)

// DealStatus is the lifecycle status of a deal
type DealStatus string

// Deal status constants
const (
	DealStatusActive    DealStatus = "active"
	DealStatusCompleted DealStatus = "completed"
	DealStatusCancelled DealStatus = "cancelled"
)

// MatchKind records which commission policy a deal was finalized with
type MatchKind string

const (
	MatchKindInternal MatchKind = "internal"
	MatchKindExternal MatchKind = "external"
)

// Commission is the commission block of a deal
type Commission struct {
	Rate    decimal.Decimal        `json:"rate"`
	Total   decimal.Decimal        `json:"total"`
	Policy  SplitPolicy            `json:"policy"`
	Entries []CommissionSplitEntry `json:"entries"`
}

// PercentageTotal sums the split percentages
func (c *Commission) PercentageTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range c.Entries {
		sum = sum.Add(e.Percentage)
	}
	return sum
}

// AllPending returns true if no split entry left the pending state
func (c *Commission) AllPending() bool {
	for _, e := range c.Entries {
		if e.Status != CommissionStatusPending {
			return false
		}
	}
	return true
}

// Entry returns the split entry with the given id
func (c *Commission) Entry(id string) (*CommissionSplitEntry, bool) {
	for i := range c.Entries {
		if c.Entries[i].ID == id {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

// Deal is the record created from exactly one accepted offer
type Deal struct {
	Meta
	OfferID           string          `json:"offer_id"`
	CycleID           string          `json:"cycle_id"`
	CycleKind         CycleKind       `json:"cycle_kind"`
	PropertyID        string          `json:"property_id"`
	AgreedPrice       decimal.Decimal `json:"agreed_price"`
	Currency          string          `json:"currency"`
	Buyer             BuyerRef        `json:"buyer"`
	Seller            string          `json:"seller"`
	ListingAgentID    string          `json:"listing_agent_id"`
	BuyingAgentID     string          `json:"buying_agent_id"`
	MatchKind         MatchKind       `json:"match_kind"`
	Commission        Commission      `json:"commission"`
	Status            DealStatus      `json:"status"`
	AcceptedDate      Date            `json:"accepted_date"`
	ExpectedClosing   *Date           `json:"expected_closing,omitempty"`
	ActualClosing     *Date           `json:"actual_closing,omitempty"`
	ShadowPropertyID  string          `json:"shadow_property_id,omitempty"`
	PaymentScheduleID string          `json:"payment_schedule_id,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
}

// IsActive returns true until the deal completes or is cancelled
func (d *Deal) IsActive() bool {
	return d.Status == DealStatusActive
}
