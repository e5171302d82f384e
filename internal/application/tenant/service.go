package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/averbaflow/backend/internal/domain/shared"
	"github.com/averbaflow/backend/internal/domain/tenant"
)

// Service handles tenant registration and rule configuration
type Service struct {
	repo tenant.Repository
}

// NewService creates a new tenant Service
func NewService(repo tenant.Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new tenant
func (s *Service) Create(ctx context.Context, req CreateTenantRequest) (*TenantResponse, error) {
	exists, err := s.repo.ExistsByCNPJ(ctx, req.CNPJ)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "A tenant with this CNPJ is already registered")
	}

	t, err := tenant.NewTenant(req.Name, req.CNPJ, req.ERPCompanyID, req.DocTypeFilter)
	if err != nil {
		return nil, err
	}
	if err := t.Update(req.Name, req.ERPCompanyID, req.DocTypeFilter,
		req.IgnoredRepresentatives, req.ExceptionRepresentative, req.ExceptionDocType, true); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantResponse(t), nil
}

// GetByID retrieves a tenant by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTenantResponse(t), nil
}

// List retrieves all tenants ordered by name
func (s *Service) List(ctx context.Context) ([]TenantResponse, error) {
	tenants, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TenantResponse, 0, len(tenants))
	for i := range tenants {
		out = append(out, *ToTenantResponse(&tenants[i]))
	}
	return out, nil
}

// Update changes a tenant's settings and rules
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateTenantRequest) (*TenantResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.Update(req.Name, req.ERPCompanyID, req.DocTypeFilter,
		req.IgnoredRepresentatives, req.ExceptionRepresentative, req.ExceptionDocType, req.Active); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantResponse(t), nil
}

// Delete removes a tenant
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
