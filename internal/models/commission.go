package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitPolicy is how a deal's commission is divided
type SplitPolicy string

// Split policy constants
const (
	SplitPolicyTwoWay SplitPolicy = "two_way"
	SplitPolicySingle SplitPolicy = "single"
	SplitPolicyCustom SplitPolicy = "custom"
)

// SplitPartyKind tags the SplitParty variant
type SplitPartyKind string

const (
	SplitPartyAgency         SplitPartyKind = "agency"
	SplitPartyPrimaryAgent   SplitPartyKind = "primary_agent"
	SplitPartySecondaryAgent SplitPartyKind = "secondary_agent"
	SplitPartyNamedAgent     SplitPartyKind = "named_agent"
)

// SplitParty is the recipient of one commission share.
type SplitParty struct {
	Kind    SplitPartyKind `json:"kind"`
	AgentID string         `json:"agent_id,omitempty"`
}

func Agency() SplitParty                       { return SplitParty{Kind: SplitPartyAgency} }
func PrimaryAgent(agentID string) SplitParty   { return SplitParty{Kind: SplitPartyPrimaryAgent, AgentID: agentID} }
func SecondaryAgent(agentID string) SplitParty { return SplitParty{Kind: SplitPartySecondaryAgent, AgentID: agentID} }
func NamedAgent(agentID string) SplitParty     { return SplitParty{Kind: SplitPartyNamedAgent, AgentID: agentID} }

// Valid reports whether the variant is well formed
func (p SplitParty) Valid() bool {
	switch p.Kind {
	case SplitPartyAgency:
		return p.AgentID == ""
	case SplitPartyPrimaryAgent, SplitPartySecondaryAgent, SplitPartyNamedAgent:
		return p.AgentID != ""
	}
	return false
}

// Payee returns who is paid for the share: the agent, or agencyID for the agency's own cut
func (p SplitParty) Payee(agencyID string) string {
	if p.Kind == SplitPartyAgency {
		return agencyID
	}
	return p.AgentID
}

// Key identifies the party within one split. Agency, primary and secondary
// are roles that appear at most once; named agents are keyed by agent id.
func (p SplitParty) Key() string {
	if p.Kind == SplitPartyNamedAgent {
		return string(p.Kind) + ":" + p.AgentID
	}
	return string(p.Kind)
}

// CommissionStatus is the approval status of a split entry
type CommissionStatus string

// Commission status constants
const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
)

// CommissionSplitEntry is one party's share of a deal's commission
type CommissionSplitEntry struct {
	ID              string           `json:"id"`
	Party           SplitParty       `json:"party"`
	Percentage      decimal.Decimal  `json:"percentage"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          CommissionStatus `json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	RejectedBy      string           `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time       `json:"rejected_at,omitempty"`
	ApprovedBy      string           `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	PaidBy          string           `json:"paid_by,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	OverrideAmount  *decimal.Decimal `json:"override_amount,omitempty"`
	OverrideReason  string           `json:"override_reason,omitempty"`
	OverriddenBy    string           `json:"overridden_by,omitempty"`
	OverriddenAt    *time.Time       `json:"overridden_at,omitempty"`
}

// IsOverridden returns true once an administrator replaced the computed amount
func (e *CommissionSplitEntry) IsOverridden() bool {
	return e.OverrideAmount != nil
}
