package endorsement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

// SearchRequest represents a document ledger query. All criteria are
// optional, but at least one must be present.
type SearchRequest struct {
	TenantID *uuid.UUID `form:"tenant_id"`
	From     string     `form:"from"`   // YYYY-MM-DD, inclusive
	To       string     `form:"to"`     // YYYY-MM-DD, inclusive
	Status   string     `form:"status"` // lifecycle status name
	Number   string     `form:"number"` // document number substring
}

// ResubmitRequest represents a request to queue documents for another
// submission attempt
type ResubmitRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// ResubmitResponse reports the outcome of a manual resubmission
type ResubmitResponse struct {
	Queued    int `json:"queued"`
	Submitted int `json:"submitted"`
	Errored   int `json:"errored"`
}

// DocumentResponse represents a ledger entry in API responses
type DocumentResponse struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	TenantName     string          `json:"tenant_name"`
	DocumentNumber string          `json:"document_number"`
	Representative string          `json:"representative"`
	DocType        string          `json:"doc_type"`
	IssueDate      time.Time       `json:"issue_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	ResultMessage  string          `json:"result_message"`
	ProcessedAt    time.Time       `json:"processed_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DashboardResponse summarizes today's processing for the overview screen
type DashboardResponse struct {
	Date       string             `json:"date"`
	Total      int                `json:"total"`
	Submitted  int                `json:"submitted"`
	Ignored    int                `json:"ignored"`
	Errored    int                `json:"errored"`
	InProgress int                `json:"in_progress"`
	Documents  []DocumentResponse `json:"documents"`
}

// ToDocumentResponse converts a ledger record to its API representation
func ToDocumentResponse(rec *endorsement.DocumentWithRules) DocumentResponse {
	return DocumentResponse{
		ID:             rec.ID,
		TenantID:       rec.TenantID,
		TenantName:     rec.TenantName,
		DocumentNumber: rec.DocumentNumber,
		Representative: rec.Representative,
		DocType:        rec.DocType,
		IssueDate:      rec.IssueDate,
		TotalAmount:    rec.TotalAmount,
		Status:         rec.Status.String(),
		ResultMessage:  rec.ResultMessage,
		ProcessedAt:    rec.ProcessedAt,
		CreatedAt:      rec.CreatedAt,
	}
}
