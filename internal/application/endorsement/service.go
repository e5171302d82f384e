package endorsement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/domain/shared"
)

// statusFilterLayout is the date format accepted by the search screen.
const statusFilterLayout = "2006-01-02"

// Dispatcher runs the dispatch phase for an explicit set of documents.
// Implemented by the reconciler.
type Dispatcher interface {
	DispatchByID(ctx context.Context, ids []uuid.UUID) (*endorsement.CycleSummary, error)
}

// DocumentService handles ledger queries and manual resubmission
type DocumentService struct {
	ledger     endorsement.DocumentLedger
	dispatcher Dispatcher
	now        func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(ledger endorsement.DocumentLedger, dispatcher Dispatcher) *DocumentService {
	return &DocumentService{
		ledger:     ledger,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Resubmit runs the dispatch phase for exactly the given documents.
// Every document must exist and be in a reprocessable status; terminal
// documents fail the whole request so an operator never silently
// resubmits an already endorsed batch.
func (s *DocumentService) Resubmit(ctx context.Context, req ResubmitRequest) (*ResubmitResponse, error) {
	if len(req.IDs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one document ID is required")
	}

	for _, id := range req.IDs {
		rec, err := s.ledger.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.Status.Terminal() {
			return nil, endorsement.ErrNotReprocessable
		}
	}

	summary, err := s.dispatcher.DispatchByID(ctx, req.IDs)
	if err != nil {
		return nil, err
	}

	return &ResubmitResponse{
		Queued:    len(req.IDs),
		Submitted: len(summary.Submitted),
		Errored:   len(summary.Errored),
	}, nil
}

// Search queries the ledger. An empty filter returns an empty list, not
// the whole table.
func (s *DocumentService) Search(ctx context.Context, req SearchRequest) ([]DocumentResponse, error) {
	filter, err := s.buildFilter(req)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return []DocumentResponse{}, nil
	}

	records, err := s.ledger.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]DocumentResponse, 0, len(records))
	for i := range records {
		out = append(out, ToDocumentResponse(&records[i]))
	}
	return out, nil
}

// Dashboard summarizes every document processed since the start of today.
func (s *DocumentService) Dashboard(ctx context.Context) (*DashboardResponse, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	records, err := s.ledger.ListProcessedSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	resp := &DashboardResponse{
		Date:      startOfDay.Format(statusFilterLayout),
		Total:     len(records),
		Documents: make([]DocumentResponse, 0, len(records)),
	}
	for i := range records {
		switch records[i].Status {
		case endorsement.StatusSubmitted:
			resp.Submitted++
		case endorsement.StatusIgnored:
			resp.Ignored++
		case endorsement.StatusSubmitError:
			resp.Errored++
		default:
			resp.InProgress++
		}
		resp.Documents = append(resp.Documents, ToDocumentResponse(&records[i]))
	}
	return resp, nil
}

func (s *DocumentService) buildFilter(req SearchRequest) (endorsement.SearchFilter, error) {
	filter := endorsement.SearchFilter{
		TenantID:       req.TenantID,
		NumberContains: req.Number,
	}

	if req.From != "" {
		from, err := time.Parse(statusFilterLayout, req.From)
		if err != nil {
			return filter, shared.NewDomainError("INVALID_DATE", "From date must be in YYYY-MM-DD format")
		}
		filter.IssuedFrom = &from
	}
	if req.To != "" {
		to, err := time.Parse(statusFilterLayout, req.To)
		if err != nil {
			return filter, shared.NewDomainError("INVALID_DATE", "To date must be in YYYY-MM-DD format")
		}
		// Inclusive upper bound: move to the end of the day
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.IssuedTo = &end
	}
	if req.Status != "" {
		status := endorsement.Status(req.Status)
		if !status.IsValid() {
			return filter, shared.NewDomainError("INVALID_STATUS", "Unknown document status")
		}
		filter.Status = &status
	}

	return filter, nil
}
