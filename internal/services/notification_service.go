package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
)

type NotificationService struct {
	repo   repository.NotificationRepository
	worker *jobs.Worker
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, worker *jobs.Worker) *NotificationService {
	return &NotificationService{repo: repo, worker: worker, now: time.Now}
}

func (s *NotificationService) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindNotification, id)
	}
	return n, nil
}

// FindByUser lists a user's notifications, newest first
func (s *NotificationService) FindByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	list, err := s.repo.List(ctx, func(n *models.Notification) bool {
		return n.UserID == userID && (!unreadOnly || !n.IsRead())
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	n, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("%w: notification belongs to another user", ErrForbidden)
	}
	if n.IsRead() {
		return n, nil
	}
	n.MarkAsRead(s.now().UTC())
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, storeError(err, repository.KindNotification, id)
	}
	return n, nil
}

// MarkAllAsRead marks every unread notification of userID and returns how many changed
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	unread, err := s.FindByUser(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, n := range unread {
		n.MarkAsRead(s.now().UTC())
		if err := s.repo.Put(ctx, n); err != nil {
			return marked, storeError(err, repository.KindNotification, n.ID)
		}
		marked++
	}
	return marked, nil
}

func (s *NotificationService) NotifyUser(ctx context.Context, userID, title, message, notifType, entityID string) error {
	notification := &models.Notification{
		Meta:             models.Meta{ID: uuid.NewString()},
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: notifType,
		EntityID:         entityID,
	}
	return s.repo.Put(ctx, notification)
}

// Handle turns domain events into user notifications. Writes run on the
// worker so the publisher never waits on them.
func (s *NotificationService) Handle(ctx context.Context, e events.Event) error {
	title, message, notifType, ok := describeEvent(e)
	if !ok {
		return nil
	}

	seen := map[string]bool{}
	for _, userID := range e.Recipients {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		recipient := userID
		s.worker.EnqueueAsync("notify:"+string(e.Type), func(jobCtx context.Context) error {
			return s.NotifyUser(jobCtx, recipient, title, message, notifType, e.EntityID)
		})
	}
	return nil
}

func describeEvent(e events.Event) (title, message, notifType string, ok bool) {
	switch e.Type {
	case events.OfferAccepted:
		return "Offer accepted",
			fmt.Sprintf("Offer %s was accepted for %s.", e.EntityID, e.Attr("amount")),
			models.NotificationTypeOfferAccepted, true
	case events.DealFinalized:
		return "Deal finalized",
			fmt.Sprintf("Deal %s was finalized at %s (%s match).", e.EntityID, e.Attr("agreed_price"), e.Attr("match_kind")),
			models.NotificationTypeDealFinalized, true
	case events.DealCompleted:
		return "Deal completed",
			fmt.Sprintf("Deal %s is fully settled.", e.EntityID),
			models.NotificationTypeDealCompleted, true
	case events.DealCancelled:
		return "Deal cancelled",
			fmt.Sprintf("Deal %s was cancelled: %s", e.EntityID, e.Attr("reason")),
			models.NotificationTypeDealCancelled, true
	case events.CommissionApproved:
		return "Commission approved",
			fmt.Sprintf("Your commission of %s on deal %s was approved.", e.Attr("amount"), e.Attr("deal_id")),
			models.NotificationTypeCommissionApproved, true
	case events.CommissionRejected:
		return "Commission needs correction",
			fmt.Sprintf("Your commission on deal %s was sent back: %s", e.Attr("deal_id"), e.Attr("reason")),
			models.NotificationTypeCommissionRejected, true
	case events.CommissionOverridden:
		return "Commission adjusted",
			fmt.Sprintf("Your commission on deal %s changed from %s to %s: %s",
				e.Attr("deal_id"), e.Attr("original_amount"), e.Attr("amount"), e.Attr("reason")),
			models.NotificationTypeCommissionOverride, true
	case events.CommissionPaid:
		return "Commission paid",
			fmt.Sprintf("Your commission of %s on deal %s was paid.", e.Attr("amount"), e.Attr("deal_id")),
			models.NotificationTypeCommissionPaid, true
	case events.PaymentRecorded:
		return "Payment recorded",
			fmt.Sprintf("A payment of %s was recorded on deal %s.", e.Attr("amount"), e.Attr("deal_id")),
			models.NotificationTypePaymentRecorded, true
	case events.PaymentOverdue:
		return "Instalment overdue",
			fmt.Sprintf("Instalment %s of deal %s was due on %s (%s outstanding).",
				e.Attr("number"), e.Attr("deal_id"), e.Attr("due_date"), e.Attr("remaining")),
			models.NotificationTypePaymentOverdue, true
	}
	return "", "", "", false
}
