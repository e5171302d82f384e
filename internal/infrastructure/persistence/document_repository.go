package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/domain/shared"
	"github.com/averbaflow/backend/internal/domain/tenant"
)

// GormDocumentLedger implements endorsement.DocumentLedger using GORM
type GormDocumentLedger struct {
	db *gorm.DB
}

// NewGormDocumentLedger creates a new GormDocumentLedger
func NewGormDocumentLedger(db *gorm.DB) *GormDocumentLedger {
	return &GormDocumentLedger{db: db}
}

// documentRuleRow is the scan target for ledger queries joined with the
// owning tenant. The tenant's rule columns come back raw and are parsed
// into a RuleConfig before leaving this package.
type documentRuleRow struct {
	endorsement.DocumentRecord
	TenantName                    string
	TenantCNPJ                    string
	TenantERPCompanyID            string
	TenantIgnoredRepresentatives  string
	TenantExceptionRepresentative string
	TenantExceptionDocType        string
}

const tenantJoinColumns = `documents.*, tenants.name AS tenant_name, tenants.cnpj AS tenant_cnpj, ` +
	`tenants.erp_company_id AS tenant_erp_company_id, tenants.ignored_representatives AS tenant_ignored_representatives, ` +
	`tenants.exception_representative AS tenant_exception_representative, tenants.exception_doc_type AS tenant_exception_doc_type`

func (row *documentRuleRow) toDomain() endorsement.DocumentWithRules {
	return endorsement.DocumentWithRules{
		DocumentRecord: row.DocumentRecord,
		TenantName:     row.TenantName,
		TenantCNPJ:     row.TenantCNPJ,
		ERPCompanyID:   row.TenantERPCompanyID,
		Rules: tenant.ParseRuleConfig(
			row.TenantIgnoredRepresentatives,
			row.TenantExceptionRepresentative,
			row.TenantExceptionDocType,
		),
	}
}

func toDomainSlice(rows []documentRuleRow) []endorsement.DocumentWithRules {
	docs := make([]endorsement.DocumentWithRules, len(rows))
	for i := range rows {
		docs[i] = rows[i].toDomain()
	}
	return docs
}

// joinedQuery starts a documents query joined with the owning tenant
func (r *GormDocumentLedger) joinedQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("documents").
		Select(tenantJoinColumns).
		Joins("INNER JOIN tenants ON tenants.id = documents.tenant_id")
}

// Exists reports whether the (tenant, document number) pair is already on the ledger
func (r *GormDocumentLedger) Exists(ctx context.Context, tenantID uuid.UUID, documentNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&endorsement.DocumentRecord{}).
		Where("tenant_id = ? AND document_number = ?", tenantID, documentNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertPending creates a new pending record. A duplicate (tenant,
// document number) pair surfaces as shared.ErrAlreadyExists.
func (r *GormDocumentLedger) InsertPending(ctx context.Context, rec *endorsement.DocumentRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID finds a single record joined with its tenant's rules
func (r *GormDocumentLedger) FindByID(ctx context.Context, id uuid.UUID) (*endorsement.DocumentWithRules, error) {
	var row documentRuleRow
	err := r.joinedQuery(ctx).
		Where("documents.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	doc := row.toDomain()
	return &doc, nil
}

// ListByStatus returns all records in any of the given statuses
func (r *GormDocumentLedger) ListByStatus(ctx context.Context, statuses []endorsement.Status) ([]endorsement.DocumentWithRules, error) {
	if len(statuses) == 0 {
		return []endorsement.DocumentWithRules{}, nil
	}

	var rows []documentRuleRow
	err := r.joinedQuery(ctx).
		Where("documents.status IN ?", statuses).
		Order("documents.issue_date ASC, documents.document_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

// ListByIDsAndStatus returns the subset of ids currently in any of the
// given statuses. IDs in other statuses are silently absent.
func (r *GormDocumentLedger) ListByIDsAndStatus(ctx context.Context, ids []uuid.UUID, statuses []endorsement.Status) ([]endorsement.DocumentWithRules, error) {
	if len(ids) == 0 || len(statuses) == 0 {
		return []endorsement.DocumentWithRules{}, nil
	}

	var rows []documentRuleRow
	err := r.joinedQuery(ctx).
		Where("documents.id IN ? AND documents.status IN ?", ids, statuses).
		Order("documents.issue_date ASC, documents.document_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

// UpdateStatus transitions a record guarded by its current status. The
// guard makes concurrent transitions race-safe: only one caller wins,
// the other sees ErrInvalidTransition.
func (r *GormDocumentLedger) UpdateStatus(ctx context.Context, id uuid.UUID, from []endorsement.Status, to endorsement.Status, message string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&endorsement.DocumentRecord{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":         to,
			"result_message": message,
			"processed_at":   now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return endorsement.ErrInvalidTransition
	}
	return nil
}

// Search returns records matching the filter, newest first
func (r *GormDocumentLedger) Search(ctx context.Context, filter endorsement.SearchFilter) ([]endorsement.DocumentWithRules, error) {
	query := r.joinedQuery(ctx)

	if filter.TenantID != nil {
		query = query.Where("documents.tenant_id = ?", *filter.TenantID)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("documents.issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("documents.issue_date <= ?", *filter.IssuedTo)
	}
	if filter.Status != nil {
		query = query.Where("documents.status = ?", *filter.Status)
	}
	if filter.NumberContains != "" {
		query = query.Where("documents.document_number ILIKE ?", "%"+filter.NumberContains+"%")
	}

	var rows []documentRuleRow
	err := query.
		Order("documents.issue_date DESC, documents.document_number DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

// ListProcessedSince returns records processed at or after the cutoff, newest first
func (r *GormDocumentLedger) ListProcessedSince(ctx context.Context, cutoff time.Time) ([]endorsement.DocumentWithRules, error) {
	var rows []documentRuleRow
	err := r.joinedQuery(ctx).
		Where("documents.processed_at >= ?", cutoff).
		Order("documents.processed_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

// Ensure GormDocumentLedger implements endorsement.DocumentLedger
var _ endorsement.DocumentLedger = (*GormDocumentLedger)(nil)
