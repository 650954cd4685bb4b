package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PropertyStatus is the market status of a property
type PropertyStatus string

// Property status constants
const (
	PropertyStatusAvailable  PropertyStatus = "available"
	PropertyStatusUnderOffer PropertyStatus = "under_offer"
	PropertyStatusSold       PropertyStatus = "sold"
	PropertyStatusRented     PropertyStatus = "rented"
)

// PropertyIdentity distinguishes agency inventory from pipeline-only records.
type PropertyIdentity string

const (
	// PropertyOwned is agency inventory.
	PropertyOwned PropertyIdentity = "owned"
	// PropertyTracked is a shadow record kept for an externally sourced deal.
	PropertyTracked PropertyIdentity = "tracked"
)

var ErrInvalidOwnershipTransfer = errors.New("invalid ownership transfer")

// OwnershipPeriod is one entry of a property's ownership history
type OwnershipPeriod struct {
	Owner     string `json:"owner"`
	StartDate Date   `json:"start_date"`
	EndDate   *Date  `json:"end_date"`
}

// Property is a real-estate unit handled by the agency
type Property struct {
	Meta
	Address        string               `json:"address"`
	Area           decimal.Decimal      `json:"area"`
	AreaUnit       string               `json:"area_unit"`
	Status         PropertyStatus       `json:"status"`
	Identity       PropertyIdentity     `json:"identity"`
	ListingAgentID string               `json:"listing_agent_id"`
	CommissionRate *decimal.Decimal     `json:"commission_rate,omitempty"`
	Ownership      []OwnershipPeriod    `json:"ownership"`
	OpenCycles     map[CycleKind]string `json:"open_cycles,omitempty"`
	SourceDealID   string               `json:"source_deal_id,omitempty"`
}

// IsOwned returns true for agency inventory
func (p *Property) IsOwned() bool {
	return p.Identity == PropertyOwned
}

// CurrentOwner returns the owner of the single open ownership period
func (p *Property) CurrentOwner() (string, bool) {
	for i := len(p.Ownership) - 1; i >= 0; i-- {
		if p.Ownership[i].EndDate == nil {
			return p.Ownership[i].Owner, true
		}
	}
	return "", false
}

// TransferOwnership closes the open period on date on and opens one for owner.
func (p *Property) TransferOwnership(owner string, on Date) error {
	if owner == "" {
		return ErrInvalidOwnershipTransfer
	}
	for i := range p.Ownership {
		period := &p.Ownership[i]
		if period.EndDate != nil {
			continue
		}
		if on.Before(period.StartDate) {
			return ErrInvalidOwnershipTransfer
		}
		end := on
		period.EndDate = &end
	}
	p.Ownership = append(p.Ownership, OwnershipPeriod{Owner: owner, StartDate: on})
	return nil
}

// OpenCycleID returns the id of the cycle holding the slot for kind
func (p *Property) OpenCycleID(kind CycleKind) string {
	if p.OpenCycles == nil {
		return ""
	}
	return p.OpenCycles[kind]
}

// ClaimCycle records cycleID as the open cycle for kind.
func (p *Property) ClaimCycle(kind CycleKind, cycleID string) {
	if p.OpenCycles == nil {
		p.OpenCycles = make(map[CycleKind]string)
	}
	p.OpenCycles[kind] = cycleID
}

// ReleaseCycle frees the slot for kind if cycleID still holds it.
func (p *Property) ReleaseCycle(kind CycleKind, cycleID string) bool {
	if p.OpenCycles == nil || p.OpenCycles[kind] != cycleID {
		return false
	}
	delete(p.OpenCycles, kind)
	return true
}
