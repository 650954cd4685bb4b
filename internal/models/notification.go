package models

import (
	"time"
)

// Notification represents a user notification
type Notification struct {
	Meta
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	EntityID         string     `json:"entity_id,omitempty"`
	ReadAt           *time.Time `json:"read_at"`
}

// Notification type constants
const (
	NotificationTypeOfferAccepted      = "offer_accepted"
	NotificationTypeDealFinalized      = "deal_finalized"
	NotificationTypeDealCompleted      = "deal_completed"
	NotificationTypeDealCancelled      = "deal_cancelled"
	NotificationTypeCommissionApproved = "commission_approved"
	NotificationTypeCommissionRejected = "commission_rejected"
	NotificationTypeCommissionOverride = "commission_overridden"
	NotificationTypeCommissionPaid     = "commission_paid"
	NotificationTypePaymentRecorded    = "payment_recorded"
	NotificationTypePaymentOverdue     = "payment_overdue"
)

// IsRead returns true if notification has been read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkAsRead marks the notification as read
func (n *Notification) MarkAsRead(at time.Time) {
	n.ReadAt = &at
}

// NotificationResponse is the JSON response format
type NotificationResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	EntityID         string     `json:"entity_id,omitempty"`
	Read             bool       `json:"read"`
	ReadAt           *time.Time `json:"read_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToResponse converts Notification to NotificationResponse
func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.NotificationType,
		EntityID:         n.EntityID,
		Read:             n.IsRead(),
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	}
}
