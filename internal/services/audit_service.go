package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry for the actor and client found in ctx.
// A failure to write the trail is logged and does not fail the caller.
func (s *AuditService) Log(ctx context.Context, action, entity, entityID, details string) {
	actor, _ := models.ActorFromContext(ctx)
	info := models.RequestInfoFromContext(ctx)

	entry := &models.AuditLog{
		Meta:      models.Meta{ID: uuid.NewString()},
		UserID:    actor.ID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: info.IP,
		UserAgent: info.UserAgent,
	}
	if err := s.repo.Put(ctx, entry); err != nil {
		logger.Error("Failed to write audit entry", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs, newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, int64, error) {
	logs, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	return page(sortNewest(logs), limit, offset), int64(len(logs)), nil
}

// ForEntity retrieves the trail of one entity, newest first
func (s *AuditService) ForEntity(ctx context.Context, entity, entityID string) ([]*models.AuditLog, error) {
	logs, err := s.repo.List(ctx, func(l *models.AuditLog) bool {
		return l.Entity == entity && l.EntityID == entityID
	})
	if err != nil {
		return nil, err
	}
	return sortNewest(logs), nil
}

func sortNewest(logs []*models.AuditLog) []*models.AuditLog {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	return logs
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
