package endorsement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averbaflow/backend/internal/domain/shared"
	"github.com/averbaflow/backend/internal/domain/tenant"
)

// Status represents a document's position in the endorsement lifecycle
type Status string

const (
	// StatusPending indicates the document was ingested from the ERP and
	// has not been rule-evaluated yet
	StatusPending Status = "PENDING"
	// StatusIgnored indicates a tenant rule decided the document must not
	// be endorsed (terminal for the automated loop)
	StatusIgnored Status = "IGNORED"
	// StatusAwaitingSubmit indicates the document passed the rule filter
	// and is queued for submission to the partner
	StatusAwaitingSubmit Status = "AWAITING_SUBMIT"
	// StatusSubmitted indicates the partner accepted the endorsement
	// (terminal)
	StatusSubmitted Status = "SUBMITTED"
	// StatusSubmitError indicates submission failed; the record may be
	// resubmitted manually
	StatusSubmitError Status = "SUBMIT_ERROR"
)

// IsValid returns true if the status is a known lifecycle state
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusIgnored, StatusAwaitingSubmit, StatusSubmitted, StatusSubmitError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the automated loop is done with this record.
func (s Status) Terminal() bool {
	return s == StatusSubmitted || s == StatusIgnored
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// the target status.
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusIgnored || to == StatusAwaitingSubmit
	case StatusAwaitingSubmit:
		return to == StatusSubmitted || to == StatusSubmitError
	case StatusSubmitError:
		return to == StatusAwaitingSubmit
	default:
		return false
	}
}

// ReprocessableStatuses returns the set of statuses the dispatch phase
// accepts as transition sources.
func ReprocessableStatuses() []Status {
	return []Status{StatusPending, StatusAwaitingSubmit, StatusSubmitError}
}

// DocumentRecord is the ledger's unit of work: one fiscal document seen
// at the source ERP for one tenant. (tenant_id, document_number) is
// unique; ingestion never creates the same document twice.
type DocumentRecord struct {
	shared.BaseEntity
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_documents_tenant_number,priority:1"`
	DocumentNumber string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_tenant_number,priority:2"`
	Representative string          `gorm:"type:varchar(20);not null"`
	DocType        string          `gorm:"type:varchar(20);not null"`
	IssueDate      time.Time       `gorm:"not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status         Status          `gorm:"type:varchar(30);not null;index"`
	ResultMessage  string          `gorm:"type:text"`

	// ProcessedAt is stamped on every status transition.
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentRecord) TableName() string {
	return "documents"
}

// NewDocumentRecord creates a pending ledger entry for a document just
// discovered at the source ERP.
func NewDocumentRecord(tenantID uuid.UUID, number, representative, docType string, issueDate time.Time, totalAmount decimal.Decimal) (*DocumentRecord, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT_ID", "Tenant ID cannot be empty")
	}

	return &DocumentRecord{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		DocumentNumber: number,
		Representative: representative,
		DocType:        docType,
		IssueDate:      issueDate,
		TotalAmount:    totalAmount,
		Status:         StatusPending,
		ResultMessage:  "Document received from the ERP.",
		ProcessedAt:    time.Now(),
	}, nil
}

// DocumentWithRules is a ledger row joined with the owning tenant's
// parsed rule configuration. Every dispatch decision needs both.
type DocumentWithRules struct {
	DocumentRecord
	TenantName   string
	TenantCNPJ   string
	ERPCompanyID string
	Rules        tenant.RuleConfig
}
