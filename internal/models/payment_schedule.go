package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstalmentStatus is derived from the paid amount, the due date and today.
type InstalmentStatus string

// Instalment status constants
const (
	InstalmentStatusPending InstalmentStatus = "pending"
	InstalmentStatusPartial InstalmentStatus = "partial"
	InstalmentStatusPaid    InstalmentStatus = "paid"
	InstalmentStatusOverdue InstalmentStatus = "overdue"
)

// PaymentRecord is one entry of an instalment's append-only payment history
type PaymentRecord struct {
	Date       Date            `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method,omitempty"`
	ReceiptRef string          `json:"receipt_ref,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	RecordedBy string          `json:"recorded_by,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Instalment is one scheduled partial payment of a deal
type Instalment struct {
	ID         string          `json:"id"`
	Number     int             `json:"number"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    Date            `json:"due_date"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Payments   []PaymentRecord `json:"payments"`
}

// Remaining returns the unpaid balance
func (i *Instalment) Remaining() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// Status derives the instalment status for the given day
func (i *Instalment) Status(today Date) InstalmentStatus {
	switch {
	case i.PaidAmount.GreaterThanOrEqual(i.Amount):
		return InstalmentStatusPaid
	case i.PaidAmount.IsPositive():
		return InstalmentStatusPartial
	case i.DueDate.Before(today):
		return InstalmentStatusOverdue
	default:
		return InstalmentStatusPending
	}
}

// PaymentSchedule is the instalment plan attached to a deal
type PaymentSchedule struct {
	Meta
	DealID      string       `json:"deal_id"`
	Currency    string       `json:"currency"`
	Instalments []Instalment `json:"instalments"`
}

// Instalment returns the instalment with the given id
func (s *PaymentSchedule) Instalment(id string) (*Instalment, bool) {
	for i := range s.Instalments {
		if s.Instalments[i].ID == id {
			return &s.Instalments[i], true
		}
	}
	return nil, false
}

// Total sums the scheduled amounts
func (s *PaymentSchedule) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range s.Instalments {
		sum = sum.Add(i.Amount)
	}
	return sum
}

// PaidTotal sums the amounts recorded so far
func (s *PaymentSchedule) PaidTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range s.Instalments {
		sum = sum.Add(i.PaidAmount)
	}
	return sum
}

// IsSettled returns true when every instalment is fully paid
func (s *PaymentSchedule) IsSettled() bool {
	for i := range s.Instalments {
		if s.Instalments[i].Remaining().IsPositive() {
			return false
		}
	}
	return len(s.Instalments) > 0
}

// InstalmentResponse is the JSON response format with derived status
type InstalmentResponse struct {
	Instalment
	Status    InstalmentStatus `json:"status"`
	Remaining decimal.Decimal  `json:"remaining"`
}

// PaymentScheduleResponse is the JSON response format
type PaymentScheduleResponse struct {
	ID          string               `json:"id"`
	Version     int64                `json:"version"`
	DealID      string               `json:"deal_id"`
	Currency    string               `json:"currency"`
	Total       decimal.Decimal      `json:"total"`
	PaidTotal   decimal.Decimal      `json:"paid_total"`
	Settled     bool                 `json:"settled"`
	Instalments []InstalmentResponse `json:"instalments"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ToResponse converts PaymentSchedule to PaymentScheduleResponse, deriving
// every instalment status against today.
func (s *PaymentSchedule) ToResponse(today Date) PaymentScheduleResponse {
	resp := PaymentScheduleResponse{
		ID:          s.ID,
		Version:     s.Version,
		DealID:      s.DealID,
		Currency:    s.Currency,
		Total:       s.Total(),
		PaidTotal:   s.PaidTotal(),
		Settled:     s.IsSettled(),
		Instalments: make([]InstalmentResponse, 0, len(s.Instalments)),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	for i := range s.Instalments {
		inst := s.Instalments[i]
		resp.Instalments = append(resp.Instalments, InstalmentResponse{
			Instalment: inst,
			Status:     inst.Status(today),
			Remaining:  inst.Remaining(),
		})
	}
	return resp
}
