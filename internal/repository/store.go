package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
)

// Kind names a collection in the store
type Kind string

// Stored kinds
const (
	KindProperty        Kind = "property"
	KindCycle           Kind = "cycle"
	KindOffer           Kind = "offer"
	KindDeal            Kind = "deal"
	KindPaymentSchedule Kind = "payment_schedule"
	KindRequirement     Kind = "requirement"
	KindAudit           Kind = "audit"
	KindNotification    Kind = "notification"
)

// Record is one versioned, JSON-encoded entity
type Record struct {
	Kind      Kind
	ID        string
	Version   int64
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the keyed record port every service persists through.
//
// Put treats Version as a precondition: 0 creates the record and fails with
// ErrVersionConflict if the id is taken, anything else must match the stored
// version. On success Put increments Version in place.
type Store interface {
	Get(ctx context.Context, kind Kind, id string) (*Record, error)
	List(ctx context.Context, kind Kind) ([]*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, kind Kind, id string) error
}
