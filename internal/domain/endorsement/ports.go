package endorsement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averbaflow/backend/internal/domain/tenant"
)

// DocumentSummary is one entry of the ERP's document search result:
// enough to decide ingestion, not the full fiscal payload.
type DocumentSummary struct {
	Number         string
	Representative string
	DocType        string
	IssueDate      time.Time
	TotalAmount    decimal.Decimal
}

// SourceClient is the port for the ERP the documents originate from.
type SourceClient interface {
	// ListDocuments returns every document the ERP issued for the tenant
	// on the given date, following the search endpoint's continuation
	// token across all pages. Any page failure aborts the whole listing
	// with ErrSourceQuery; partial pages are never returned.
	ListDocuments(ctx context.Context, t *tenant.Tenant, date time.Time) ([]DocumentSummary, error)

	// FetchPayload retrieves the canonical protocolled payload for one
	// document. The payload is opaque to the core and passed through
	// verbatim. A missing payload (HTTP 404/204 or absent content)
	// returns ErrPayloadNotFound, distinct from transport errors.
	FetchPayload(ctx context.Context, erpCompanyID string, issueDate time.Time, documentNumber string) ([]byte, error)
}

// SubmitResult carries the partner's acknowledgement of a successful
// endorsement.
type SubmitResult struct {
	Protocol          string
	EndorsementNumber string
}

// EndorserClient is the port for the partner endorsement service.
// Implementations own the bearer session internally; the caller only
// re-authenticates explicitly when a submit reports ErrSessionExpired.
type EndorserClient interface {
	// Authenticate obtains a fresh bearer session. ErrAuthFailed when
	// credentials are rejected or the response lacks a token.
	Authenticate(ctx context.Context) error

	// Submit posts the document payload. Outcomes: (*SubmitResult, nil)
	// on success; *BusinessRejection when the partner rejected the
	// document; ErrSessionExpired when the session token expired (the
	// session is invalidated before returning); ErrEndorsementFailed
	// wrapped around anything else.
	Submit(ctx context.Context, payload []byte) (*SubmitResult, error)
}

// Notifier is the alerting port. The reconciliation loop invokes it only
// for cycles that produced errors; a clean cycle is silent.
type Notifier interface {
	Notify(ctx context.Context, summary *CycleSummary) error
}
