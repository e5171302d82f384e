package endorsement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchFilter narrows ledger queries for the consultation screen.
// A zero filter matches nothing by convention at the application layer;
// the repository applies only the fields that are set.
type SearchFilter struct {
	TenantID   *uuid.UUID
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	Status     *Status

	// NumberContains is matched case-insensitively against the document
	// number (ILIKE).
	NumberContains string
}

// IsEmpty reports whether no filter field is set
func (f SearchFilter) IsEmpty() bool {
	return f.TenantID == nil && f.IssuedFrom == nil && f.IssuedTo == nil &&
		f.Status == nil && f.NumberContains == ""
}

// DocumentLedger defines the persistence port for document records.
// Reads that feed the dispatch phase return rows joined with the owning
// tenant's rule configuration.
type DocumentLedger interface {
	// Exists reports whether the (tenant, document number) pair is
	// already on the ledger.
	Exists(ctx context.Context, tenantID uuid.UUID, documentNumber string) (bool, error)

	// InsertPending creates a new pending record. A concurrent duplicate
	// insert is rejected by the unique constraint and surfaces as
	// shared.ErrAlreadyExists.
	InsertPending(ctx context.Context, rec *DocumentRecord) error

	// FindByID finds a single record joined with its tenant's rules
	FindByID(ctx context.Context, id uuid.UUID) (*DocumentWithRules, error)

	// ListByStatus returns all records in any of the given statuses,
	// joined with their tenant's rules.
	ListByStatus(ctx context.Context, statuses []Status) ([]DocumentWithRules, error)

	// ListByIDsAndStatus returns the subset of ids currently in any of
	// the given statuses, joined with their tenant's rules. IDs in other
	// statuses are silently absent from the result.
	ListByIDsAndStatus(ctx context.Context, ids []uuid.UUID, statuses []Status) ([]DocumentWithRules, error)

	// UpdateStatus transitions a record to a new status and stamps the
	// processing timestamp. The update only applies when the record's
	// current status is one of from; otherwise ErrInvalidTransition is
	// returned and the row is untouched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, message string) error

	// Search returns records matching the filter, newest first, joined
	// with the tenant name for display.
	Search(ctx context.Context, filter SearchFilter) ([]DocumentWithRules, error)

	// ListProcessedSince returns records whose processing timestamp is at
	// or after the cutoff, newest first. The dashboard uses it with the
	// start of the current day.
	ListProcessedSince(ctx context.Context, cutoff time.Time) ([]DocumentWithRules, error)
}
