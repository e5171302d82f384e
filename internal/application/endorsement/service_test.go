package endorsement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeLedger struct {
	records     map[uuid.UUID]*endorsement.DocumentWithRules
	searchCalls int
	searchOut   []endorsement.DocumentWithRules
	searchGot   endorsement.SearchFilter
	processed   []endorsement.DocumentWithRules
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[uuid.UUID]*endorsement.DocumentWithRules)}
}

func (f *fakeLedger) Exists(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return false, nil
}

func (f *fakeLedger) InsertPending(_ context.Context, rec *endorsement.DocumentRecord) error {
	f.records[rec.ID] = &endorsement.DocumentWithRules{DocumentRecord: *rec}
	return nil
}

func (f *fakeLedger) FindByID(_ context.Context, id uuid.UUID) (*endorsement.DocumentWithRules, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeLedger) ListByStatus(_ context.Context, _ []endorsement.Status) ([]endorsement.DocumentWithRules, error) {
	return nil, nil
}

func (f *fakeLedger) ListByIDsAndStatus(_ context.Context, _ []uuid.UUID, _ []endorsement.Status) ([]endorsement.DocumentWithRules, error) {
	return nil, nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, id uuid.UUID, from []endorsement.Status, to endorsement.Status, message string) error {
	rec, ok := f.records[id]
	if !ok {
		return endorsement.ErrInvalidTransition
	}
	for _, s := range from {
		if rec.Status == s {
			rec.Status = to
			rec.ResultMessage = message
			return nil
		}
	}
	return endorsement.ErrInvalidTransition
}

func (f *fakeLedger) Search(_ context.Context, filter endorsement.SearchFilter) ([]endorsement.DocumentWithRules, error) {
	f.searchCalls++
	f.searchGot = filter
	return f.searchOut, nil
}

func (f *fakeLedger) ListProcessedSince(_ context.Context, _ time.Time) ([]endorsement.DocumentWithRules, error) {
	return f.processed, nil
}

type fakeDispatcher struct {
	calls   int
	gotIDs  []uuid.UUID
	summary *endorsement.CycleSummary
	err     error
}

func (f *fakeDispatcher) DispatchByID(_ context.Context, ids []uuid.UUID) (*endorsement.CycleSummary, error) {
	f.calls++
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &endorsement.CycleSummary{}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seedDocument(t *testing.T, ledger *fakeLedger, status endorsement.Status) *endorsement.DocumentWithRules {
	t.Helper()
	rec, err := endorsement.NewDocumentRecord(uuid.New(), uuid.NewString()[:8], "10", "1",
		time.Now().Add(-24*time.Hour), decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, ledger.InsertPending(context.Background(), rec))
	stored := ledger.records[rec.ID]
	stored.Status = status
	stored.TenantName = "Litoral"
	return stored
}

// ---------------------------------------------------------------------------
// Resubmit Tests
// ---------------------------------------------------------------------------

func TestDocumentService_Resubmit(t *testing.T) {
	ledger := newFakeLedger()
	dispatcher := &fakeDispatcher{}
	service := NewDocumentService(ledger, dispatcher)

	errored := seedDocument(t, ledger, endorsement.StatusSubmitError)
	dispatcher.summary = &endorsement.CycleSummary{
		Submitted: []endorsement.DocumentOutcome{{DocumentNumber: errored.DocumentNumber}},
	}

	resp, err := service.Resubmit(context.Background(), ResubmitRequest{IDs: []uuid.UUID{errored.ID}})
	require.NoError(t, err)

	// The dispatch phase runs for exactly the requested documents
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, []uuid.UUID{errored.ID}, dispatcher.gotIDs)
	assert.Equal(t, 1, resp.Queued)
	assert.Equal(t, 1, resp.Submitted)
	assert.Equal(t, 0, resp.Errored)
}

func TestDocumentService_Resubmit_ReportsDispatchErrors(t *testing.T) {
	ledger := newFakeLedger()
	dispatcher := &fakeDispatcher{}
	service := NewDocumentService(ledger, dispatcher)

	errored := seedDocument(t, ledger, endorsement.StatusSubmitError)
	dispatcher.summary = &endorsement.CycleSummary{
		Errored: []endorsement.DocumentOutcome{{DocumentNumber: errored.DocumentNumber}},
	}

	resp, err := service.Resubmit(context.Background(), ResubmitRequest{IDs: []uuid.UUID{errored.ID}})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Submitted)
	assert.Equal(t, 1, resp.Errored)
}

func TestDocumentService_Resubmit_TerminalDocumentFailsBatch(t *testing.T) {
	ledger := newFakeLedger()
	service := NewDocumentService(ledger, nil)

	errored := seedDocument(t, ledger, endorsement.StatusSubmitError)
	submitted := seedDocument(t, ledger, endorsement.StatusSubmitted)

	_, err := service.Resubmit(context.Background(), ResubmitRequest{
		IDs: []uuid.UUID{errored.ID, submitted.ID},
	})

	assert.ErrorIs(t, err, endorsement.ErrNotReprocessable)
	// Nothing was queued
	assert.Equal(t, endorsement.StatusSubmitError, ledger.records[errored.ID].Status)
	assert.Equal(t, endorsement.StatusSubmitted, ledger.records[submitted.ID].Status)
}

func TestDocumentService_Resubmit_UnknownDocument(t *testing.T) {
	service := NewDocumentService(newFakeLedger(), nil)

	_, err := service.Resubmit(context.Background(), ResubmitRequest{IDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDocumentService_Resubmit_EmptyRequest(t *testing.T) {
	service := NewDocumentService(newFakeLedger(), nil)

	_, err := service.Resubmit(context.Background(), ResubmitRequest{})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_INPUT", domainErr.Code)
}

// ---------------------------------------------------------------------------
// Search Tests
// ---------------------------------------------------------------------------

func TestDocumentService_Search_EmptyFilterReturnsEmptyList(t *testing.T) {
	ledger := newFakeLedger()
	service := NewDocumentService(ledger, nil)

	out, err := service.Search(context.Background(), SearchRequest{})
	require.NoError(t, err)

	assert.Empty(t, out)
	// The ledger is never hit for an unconstrained query
	assert.Equal(t, 0, ledger.searchCalls)
}

func TestDocumentService_Search_BuildsFilter(t *testing.T) {
	ledger := newFakeLedger()
	rec := seedDocument(t, ledger, endorsement.StatusSubmitted)
	ledger.searchOut = []endorsement.DocumentWithRules{*rec}
	service := NewDocumentService(ledger, nil)

	tenantID := uuid.New()
	out, err := service.Search(context.Background(), SearchRequest{
		TenantID: &tenantID,
		From:     "2026-08-01",
		To:       "2026-08-31",
		Status:   "SUBMITTED",
		Number:   "123",
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := ledger.searchGot
	require.NotNil(t, got.TenantID)
	assert.Equal(t, tenantID, *got.TenantID)
	require.NotNil(t, got.IssuedFrom)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *got.IssuedFrom)
	require.NotNil(t, got.IssuedTo)
	// Upper bound is inclusive of the whole day
	assert.Equal(t, 31, got.IssuedTo.Day())
	assert.Equal(t, 23, got.IssuedTo.Hour())
	require.NotNil(t, got.Status)
	assert.Equal(t, endorsement.StatusSubmitted, *got.Status)
	assert.Equal(t, "123", got.NumberContains)
}

func TestDocumentService_Search_InvalidInput(t *testing.T) {
	service := NewDocumentService(newFakeLedger(), nil)

	tests := []struct {
		name     string
		req      SearchRequest
		wantCode string
	}{
		{"bad from date", SearchRequest{From: "31/08/2026"}, "INVALID_DATE"},
		{"bad to date", SearchRequest{To: "soon"}, "INVALID_DATE"},
		{"unknown status", SearchRequest{Status: "DONE"}, "INVALID_STATUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Search(context.Background(), tt.req)
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.wantCode, domainErr.Code)
		})
	}
}

// ---------------------------------------------------------------------------
// Dashboard Tests
// ---------------------------------------------------------------------------

func TestDocumentService_Dashboard(t *testing.T) {
	ledger := newFakeLedger()
	submitted := seedDocument(t, ledger, endorsement.StatusSubmitted)
	ignored := seedDocument(t, ledger, endorsement.StatusIgnored)
	errored := seedDocument(t, ledger, endorsement.StatusSubmitError)
	pending := seedDocument(t, ledger, endorsement.StatusPending)
	ledger.processed = []endorsement.DocumentWithRules{*submitted, *ignored, *errored, *pending}

	service := NewDocumentService(ledger, nil)
	service.now = func() time.Time {
		return time.Date(2026, 8, 31, 16, 45, 0, 0, time.UTC)
	}

	resp, err := service.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-08-31", resp.Date)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 1, resp.Submitted)
	assert.Equal(t, 1, resp.Ignored)
	assert.Equal(t, 1, resp.Errored)
	assert.Equal(t, 1, resp.InProgress)
	assert.Len(t, resp.Documents, 4)
}
