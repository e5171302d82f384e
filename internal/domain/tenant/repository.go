package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for tenant persistence
type Repository interface {
	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindAll returns all tenants ordered by name
	FindAll(ctx context.Context) ([]Tenant, error)

	// FindAllActive returns the tenants the reconciliation loop processes
	FindAllActive(ctx context.Context) ([]Tenant, error)

	// ExistsByCNPJ checks whether a tenant with the given CNPJ exists
	ExistsByCNPJ(ctx context.Context, cnpj string) (bool, error)

	// Save creates or updates a tenant
	Save(ctx context.Context, t *Tenant) error

	// Delete deletes a tenant
	Delete(ctx context.Context, id uuid.UUID) error
}
