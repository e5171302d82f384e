package tenant

import (
	"regexp"
	"strings"

	"github.com/averbaflow/backend/internal/domain/shared"
)

// Tenant represents a company ("empresa") whose fiscal documents are
// reconciled against the endorsement service. It carries the per-tenant
// rule configuration in its stored (text) form; the parsed form is
// obtained through Rules().
type Tenant struct {
	shared.BaseEntity
	Name string `gorm:"type:varchar(200);not null"`
	CNPJ string `gorm:"type:varchar(20);not null;uniqueIndex"`

	// ERPCompanyID is the identifier the source ERP expects in the
	// "empresa" request header.
	ERPCompanyID string `gorm:"type:varchar(50);not null"`

	// DocTypeFilter is passed verbatim as the tipoNota query filter
	// when searching the ERP.
	DocTypeFilter string `gorm:"type:varchar(50);not null"`

	// IgnoredRepresentatives is a comma-separated list of representative
	// codes whose documents are not endorsed.
	IgnoredRepresentatives string `gorm:"type:text"`

	// ExceptionRepresentative/ExceptionDocType form a pair that overrides
	// the ignore list for that exact combination.
	ExceptionRepresentative string `gorm:"type:varchar(20)"`
	ExceptionDocType        string `gorm:"type:varchar(20)"`

	Active bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

var cnpjPattern = regexp.MustCompile(`^\d{14}$`)

// NewTenant creates a new tenant with required fields
func NewTenant(name, cnpj, erpCompanyID, docTypeFilter string) (*Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	cnpj = normalizeCNPJ(cnpj)
	if !cnpjPattern.MatchString(cnpj) {
		return nil, shared.NewDomainError("INVALID_CNPJ", "CNPJ must contain exactly 14 digits")
	}
	if strings.TrimSpace(erpCompanyID) == "" {
		return nil, shared.NewDomainError("INVALID_ERP_COMPANY_ID", "ERP company identifier cannot be empty")
	}

	return &Tenant{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		CNPJ:          cnpj,
		ERPCompanyID:  erpCompanyID,
		DocTypeFilter: docTypeFilter,
		Active:        true,
	}, nil
}

// Update replaces the tenant's configurable fields
func (t *Tenant) Update(name, erpCompanyID, docTypeFilter, ignoredReps, excRep, excDocType string, active bool) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if strings.TrimSpace(erpCompanyID) == "" {
		return shared.NewDomainError("INVALID_ERP_COMPANY_ID", "ERP company identifier cannot be empty")
	}
	t.Name = name
	t.ERPCompanyID = erpCompanyID
	t.DocTypeFilter = docTypeFilter
	t.IgnoredRepresentatives = ignoredReps
	t.ExceptionRepresentative = strings.TrimSpace(excRep)
	t.ExceptionDocType = strings.TrimSpace(excDocType)
	t.Active = active
	return nil
}

// Rules returns the parsed, typed rule configuration. Downstream code
// consumes only this form, never the stored text fields.
func (t *Tenant) Rules() RuleConfig {
	return ParseRuleConfig(t.IgnoredRepresentatives, t.ExceptionRepresentative, t.ExceptionDocType)
}

func normalizeCNPJ(cnpj string) string {
	var b strings.Builder
	for _, r := range cnpj {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
