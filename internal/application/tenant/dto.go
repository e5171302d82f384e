package tenant

import (
	"time"

	"github.com/google/uuid"

	"github.com/averbaflow/backend/internal/domain/tenant"
)

// CreateTenantRequest represents a request to register a new tenant
type CreateTenantRequest struct {
	Name                    string `json:"name" binding:"required,min=1,max=200"`
	CNPJ                    string `json:"cnpj" binding:"required"`
	ERPCompanyID            string `json:"erp_company_id" binding:"required,max=50"`
	DocTypeFilter           string `json:"doc_type_filter" binding:"required,max=50"`
	IgnoredRepresentatives  string `json:"ignored_representatives" binding:"max=500"`
	ExceptionRepresentative string `json:"exception_representative" binding:"max=50"`
	ExceptionDocType        string `json:"exception_doc_type" binding:"max=50"`
}

// UpdateTenantRequest represents a request to update a tenant's settings.
// The CNPJ is immutable once registered.
type UpdateTenantRequest struct {
	Name                    string `json:"name" binding:"required,min=1,max=200"`
	ERPCompanyID            string `json:"erp_company_id" binding:"required,max=50"`
	DocTypeFilter           string `json:"doc_type_filter" binding:"required,max=50"`
	IgnoredRepresentatives  string `json:"ignored_representatives" binding:"max=500"`
	ExceptionRepresentative string `json:"exception_representative" binding:"max=50"`
	ExceptionDocType        string `json:"exception_doc_type" binding:"max=50"`
	Active                  bool   `json:"active"`
}

// TenantResponse represents a tenant in API responses
type TenantResponse struct {
	ID                      uuid.UUID `json:"id"`
	Name                    string    `json:"name"`
	CNPJ                    string    `json:"cnpj"`
	ERPCompanyID            string    `json:"erp_company_id"`
	DocTypeFilter           string    `json:"doc_type_filter"`
	IgnoredRepresentatives  string    `json:"ignored_representatives"`
	ExceptionRepresentative string    `json:"exception_representative"`
	ExceptionDocType        string    `json:"exception_doc_type"`
	Active                  bool      `json:"active"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ToTenantResponse converts a tenant to its API representation
func ToTenantResponse(t *tenant.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:                      t.ID,
		Name:                    t.Name,
		CNPJ:                    t.CNPJ,
		ERPCompanyID:            t.ERPCompanyID,
		DocTypeFilter:           t.DocTypeFilter,
		IgnoredRepresentatives:  t.IgnoredRepresentatives,
		ExceptionRepresentative: t.ExceptionRepresentative,
		ExceptionDocType:        t.ExceptionDocType,
		Active:                  t.Active,
		CreatedAt:               t.CreatedAt,
		UpdatedAt:               t.UpdatedAt,
	}
}
