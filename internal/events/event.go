package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a domain event
type Type string

// Event types emitted by the settlement engine
const (
	OfferAccepted        Type = "offer.accepted"
	DealFinalized        Type = "deal.finalized"
	DealCompleted        Type = "deal.completed"
	DealCancelled        Type = "deal.cancelled"
	CommissionApproved   Type = "commission.approved"
	CommissionRejected   Type = "commission.rejected"
	CommissionOverridden Type = "commission.overridden"
	CommissionPaid       Type = "commission.paid"
	PaymentRecorded      Type = "payment.recorded"
	PaymentOverdue       Type = "payment.overdue"
)

// Event is a notification about a committed state change
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	EntityKind string            `json:"entity_kind"`
	EntityID   string            `json:"entity_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    string            `json:"actor_id,omitempty"`
	Recipients []string          `json:"recipients,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New creates an event stamped with a fresh id and the current time
func New(t Type, entityKind, entityID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		EntityKind: entityKind,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Attributes: map[string]string{},
	}
}

// At stamps the event with the time of the change that produced it
func (e Event) At(t time.Time) Event {
	e.OccurredAt = t.UTC()
	return e
}

// With sets an attribute and returns the event for chaining
func (e Event) With(key, value string) Event {
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[key] = value
	return e
}

// To adds recipients, skipping empty ids
func (e Event) To(userIDs ...string) Event {
	for _, id := range userIDs {
		if id != "" {
			e.Recipients = append(e.Recipients, id)
		}
	}
	return e
}

// Attr returns an attribute or the empty string
func (e Event) Attr(key string) string {
	return e.Attributes[key]
}
