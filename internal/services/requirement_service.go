package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
)

// CreateRequirementInput registers a buyer's search
type CreateRequirementInput struct {
	BuyerName string
	AgentID   string
	Kind      models.CycleKind
	Budget    decimal.Decimal
	Notes     string
}

type RequirementService struct {
	repo  repository.RequirementRepository
	audit *AuditService
}

func NewRequirementService(repo repository.RequirementRepository, audit *AuditService) *RequirementService {
	return &RequirementService{repo: repo, audit: audit}
}

func (s *RequirementService) Create(ctx context.Context, in CreateRequirementInput) (*models.BuyerRequirement, error) {
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	if in.BuyerName == "" {
		return nil, validationError("buyer name is required")
	}
	if in.AgentID == "" {
		return nil, validationError("agent is required")
	}
	if in.Kind == "" {
		in.Kind = models.CycleKindSell
	}
	if !in.Kind.Valid() {
		return nil, validationError("unknown cycle kind %q", in.Kind)
	}
	if in.Budget.IsNegative() {
		return nil, validationError("budget cannot be negative")
	}

	req := &models.BuyerRequirement{
		Meta:      models.Meta{ID: uuid.NewString()},
		BuyerName: in.BuyerName,
		AgentID:   in.AgentID,
		Kind:      in.Kind,
		Budget:    in.Budget,
		Notes:     in.Notes,
		Status:    models.RequirementStatusActive,
	}
	if err := s.repo.Put(ctx, req); err != nil {
		return nil, storeError(err, repository.KindRequirement, req.ID)
	}
	s.audit.Log(ctx, models.AuditActionCreate, "BuyerRequirement", req.ID, req.BuyerName)
	return req, nil
}

func (s *RequirementService) Get(ctx context.Context, id string) (*models.BuyerRequirement, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindRequirement, id)
	}
	return r, nil
}

// List returns requirements, optionally filtered by status and agent
func (s *RequirementService) List(ctx context.Context, status models.RequirementStatus, agentID string) ([]*models.BuyerRequirement, error) {
	return s.repo.List(ctx, func(r *models.BuyerRequirement) bool {
		return (status == "" || r.Status == status) && (agentID == "" || r.AgentID == agentID)
	})
}
