package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// CreatePropertyInput registers a property in the agency's inventory
type CreatePropertyInput struct {
	Address        string
	Area           decimal.Decimal
	AreaUnit       string
	ListingAgentID string
	CommissionRate *decimal.Decimal
	Owner          string
	OwnedSince     models.Date
	Identity       models.PropertyIdentity
}

type PropertyService struct {
	repo  repository.PropertyRepository
	audit *AuditService
	now   func() time.Time
}

func NewPropertyService(repo repository.PropertyRepository, audit *AuditService, now func() time.Time) *PropertyService {
	return &PropertyService{repo: repo, audit: audit, now: now}
}

func (s *PropertyService) Create(ctx context.Context, in CreatePropertyInput) (*models.Property, error) {
	in.Address = strings.TrimSpace(in.Address)
	in.Owner = strings.TrimSpace(in.Owner)
	if in.Address == "" {
		return nil, validationError("address is required")
	}
	if !in.Area.IsPositive() {
		return nil, validationError("area must be greater than zero")
	}
	if in.AreaUnit == "" {
		in.AreaUnit = "m2"
	}
	if in.Owner == "" {
		return nil, validationError("owner is required")
	}
	if in.CommissionRate != nil && (in.CommissionRate.IsNegative() || in.CommissionRate.GreaterThan(decimal.NewFromInt(100))) {
		return nil, validationError("commission rate must be between 0 and 100")
	}
	if in.Identity == "" {
		in.Identity = models.PropertyOwned
	}
	if in.Identity != models.PropertyOwned && in.Identity != models.PropertyTracked {
		return nil, validationError("unknown property identity %q", in.Identity)
	}
	since := in.OwnedSince
	if since.IsZero() {
		since = models.NewDate(s.now())
	}

	property := &models.Property{
		Meta:           models.Meta{ID: uuid.NewString()},
		Address:        in.Address,
		Area:           in.Area,
		AreaUnit:       in.AreaUnit,
		Status:         models.PropertyStatusAvailable,
		Identity:       in.Identity,
		ListingAgentID: in.ListingAgentID,
		CommissionRate: in.CommissionRate,
		Ownership:      []models.OwnershipPeriod{{Owner: in.Owner, StartDate: since}},
	}
	if err := s.repo.Put(ctx, property); err != nil {
		return nil, storeError(err, repository.KindProperty, property.ID)
	}

	s.audit.Log(ctx, models.AuditActionCreate, "Property", property.ID, property.Address)
	logger.Info("Property registered", "property_id", property.ID, "identity", string(property.Identity))
	return property, nil
}

func (s *PropertyService) Get(ctx context.Context, id string) (*models.Property, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, repository.KindProperty, id)
	}
	return p, nil
}

// List returns properties, optionally filtered by status and identity
func (s *PropertyService) List(ctx context.Context, status models.PropertyStatus, identity models.PropertyIdentity) ([]*models.Property, error) {
	return s.repo.List(ctx, func(p *models.Property) bool {
		return (status == "" || p.Status == status) && (identity == "" || p.Identity == identity)
	})
}
