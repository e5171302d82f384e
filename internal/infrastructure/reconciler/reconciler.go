package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/domain/shared"
	"github.com/averbaflow/backend/internal/domain/tenant"
	"github.com/averbaflow/backend/internal/infrastructure/logger"
)

// maxAuthRetries bounds how many times a submission is retried after the
// partner reports an expired session. One retry covers the normal token
// rollover; a second expiry in a row means something else is wrong.
const maxAuthRetries = 1

// ruleFilterAcceptedMessage is recorded when a document passes the rule
// filter without matching an exception.
const ruleFilterAcceptedMessage = "Accepted by the rule filter."

// searchDateLayout is the format of the fixed backfill date override.
const searchDateLayout = "2006-01-02"

// Config holds reconciliation cycle settings.
type Config struct {
	// LookbackDays is how many days back from today the ingest window
	// starts. Documents the ERP issued while the service was down are
	// picked up as long as they fall inside the window.
	LookbackDays int

	// SearchDate, when set (YYYY-MM-DD), replaces the rolling window
	// with a single fixed ingest date. Used for backfills.
	SearchDate string
}

// Reconciler runs the ingest-and-dispatch cycle that keeps the document
// ledger converged with the ERP and the endorsement partner.
type Reconciler struct {
	config   Config
	tenants  tenant.Repository
	ledger   endorsement.DocumentLedger
	source   endorsement.SourceClient
	endorser endorsement.EndorserClient
	notifier endorsement.Notifier
	logger   *zap.Logger

	now func() time.Time
}

// New creates a reconciler. The notifier may be nil when alerting is
// disabled.
func New(
	config Config,
	tenants tenant.Repository,
	ledger endorsement.DocumentLedger,
	source endorsement.SourceClient,
	endorser endorsement.EndorserClient,
	notifier endorsement.Notifier,
	log *zap.Logger,
) (*Reconciler, error) {
	if config.SearchDate != "" {
		if _, err := time.Parse(searchDateLayout, config.SearchDate); err != nil {
			return nil, fmt.Errorf("reconciler: invalid search date %q: %w", config.SearchDate, err)
		}
	}
	if config.LookbackDays < 0 {
		return nil, fmt.Errorf("reconciler: lookback days cannot be negative")
	}
	return &Reconciler{
		config:   config,
		tenants:  tenants,
		ledger:   ledger,
		source:   source,
		endorser: endorser,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}, nil
}

// RunCycle executes one full ingest and dispatch pass. Per-tenant and
// per-document failures are collected in the summary and alerted; only
// failures that prevent the cycle from running at all are returned as an
// error.
func (r *Reconciler) RunCycle(ctx context.Context) (*endorsement.CycleSummary, error) {
	cycleID := uuid.NewString()
	ctx, log := logger.WithCycleID(ctx, r.logger, cycleID)

	summary := &endorsement.CycleSummary{StartedAt: r.now()}
	log.Info("Reconciliation cycle started")

	if err := r.ingest(ctx, log, summary); err != nil {
		return nil, err
	}
	if err := r.dispatch(ctx, log, summary); err != nil {
		return nil, err
	}

	summary.FinishedAt = r.now()

	if summary.HasErrors() && r.notifier != nil {
		if err := r.notifier.Notify(ctx, summary); err != nil {
			log.Error("Failed to send cycle alert", zap.Error(err))
		}
	}

	log.Info("Reconciliation cycle finished",
		zap.Int("tenants_checked", summary.TenantsChecked),
		zap.Int("new_documents", summary.NewDocuments),
		zap.Int("submitted", len(summary.Submitted)),
		zap.Int("ignored", len(summary.Ignored)),
		zap.Int("errored", len(summary.Errored)),
		zap.Int("ingest_failures", len(summary.IngestFailures)),
		zap.Duration("duration", summary.Duration()),
	)

	return summary, nil
}

// ---------------------------------------------------------------------------
// Ingestion
// ---------------------------------------------------------------------------

// ingest pulls document summaries from the ERP for every active tenant
// and records the unseen ones as pending. A tenant failure is isolated:
// it goes into the summary and the remaining tenants still run.
func (r *Reconciler) ingest(ctx context.Context, log *zap.Logger, summary *endorsement.CycleSummary) error {
	tenants, err := r.tenants.FindAllActive(ctx)
	if err != nil {
		return fmt.Errorf("reconciler: failed to list active tenants: %w", err)
	}
	summary.TenantsChecked = len(tenants)

	dates := r.searchDates()
	for i := range tenants {
		t := &tenants[i]
		if err := r.ingestTenant(ctx, log, t, dates, summary); err != nil {
			log.Error("Document ingestion failed for tenant",
				zap.String("tenant", t.Name),
				zap.Error(err),
			)
			summary.IngestFailures = append(summary.IngestFailures, endorsement.IngestFailure{
				TenantName: t.Name,
				Err:        err,
			})
		}
	}
	return nil
}

func (r *Reconciler) ingestTenant(ctx context.Context, log *zap.Logger, t *tenant.Tenant, dates []time.Time, summary *endorsement.CycleSummary) error {
	for _, date := range dates {
		docs, err := r.source.ListDocuments(ctx, t, date)
		if err != nil {
			return err
		}

		for i := range docs {
			doc := docs[i]

			exists, err := r.ledger.Exists(ctx, t.ID, doc.Number)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			rec, err := endorsement.NewDocumentRecord(t.ID, doc.Number, doc.Representative, doc.DocType, doc.IssueDate, doc.TotalAmount)
			if err != nil {
				log.Warn("Skipping malformed document from the ERP",
					zap.String("tenant", t.Name),
					zap.String("document_number", doc.Number),
					zap.Error(err),
				)
				continue
			}

			if err := r.ledger.InsertPending(ctx, rec); err != nil {
				// A concurrent cycle won the insert
				if errors.Is(err, shared.ErrAlreadyExists) {
					continue
				}
				return err
			}
			summary.NewDocuments++
		}
	}
	return nil
}

// searchDates resolves the ingest dates for this cycle, oldest first.
func (r *Reconciler) searchDates() []time.Time {
	if r.config.SearchDate != "" {
		// Validated at construction time
		d, _ := time.Parse(searchDateLayout, r.config.SearchDate)
		return []time.Time{d}
	}

	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	dates := make([]time.Time, 0, r.config.LookbackDays+1)
	for offset := r.config.LookbackDays; offset >= 0; offset-- {
		dates = append(dates, today.AddDate(0, 0, -offset))
	}
	return dates
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// dispatch runs every pending document through the rule filter and, when
// accepted, submits it to the partner. Errored documents stay put until
// an operator resubmits them.
func (r *Reconciler) dispatch(ctx context.Context, log *zap.Logger, summary *endorsement.CycleSummary) error {
	records, err := r.ledger.ListByStatus(ctx, []endorsement.Status{endorsement.StatusPending})
	if err != nil {
		return fmt.Errorf("reconciler: failed to list pending documents: %w", err)
	}

	for i := range records {
		r.processDocument(ctx, log, &records[i], summary)
	}
	return nil
}

// DispatchByID runs the dispatch phase for specific documents only, used
// for manual resubmission. Documents not in a reprocessable status are
// silently absent from the listing.
func (r *Reconciler) DispatchByID(ctx context.Context, ids []uuid.UUID) (*endorsement.CycleSummary, error) {
	cycleID := uuid.NewString()
	ctx, log := logger.WithCycleID(ctx, r.logger, cycleID)

	summary := &endorsement.CycleSummary{StartedAt: r.now()}

	records, err := r.ledger.ListByIDsAndStatus(ctx, ids, endorsement.ReprocessableStatuses())
	if err != nil {
		return nil, fmt.Errorf("reconciler: failed to list documents for resubmission: %w", err)
	}
	for i := range records {
		r.processDocument(ctx, log, &records[i], summary)
	}

	summary.FinishedAt = r.now()
	return summary, nil
}

func (r *Reconciler) processDocument(ctx context.Context, log *zap.Logger, rec *endorsement.DocumentWithRules, summary *endorsement.CycleSummary) {
	log = log.With(
		zap.String("tenant", rec.TenantName),
		zap.String("document_number", rec.DocumentNumber),
	)

	switch rec.Status {
	case endorsement.StatusPending:
		// Only fresh documents go through the rule filter. A document
		// resubmitted after an error was already accepted once.
		decision := endorsement.Evaluate(rec, r.now())
		if !decision.Accept {
			if !r.transition(ctx, log, rec, endorsement.StatusIgnored, decision.Reason) {
				return
			}
			log.Info("Document ignored by rule filter", zap.String("reason", decision.Reason))
			summary.Ignored = append(summary.Ignored, outcome(rec, endorsement.StatusIgnored, decision.Reason))
			return
		}

		message := decision.Reason
		if message == "" {
			message = ruleFilterAcceptedMessage
		}
		if !r.transition(ctx, log, rec, endorsement.StatusAwaitingSubmit, message) {
			return
		}
		rec.Status = endorsement.StatusAwaitingSubmit

	case endorsement.StatusSubmitError:
		if !r.transition(ctx, log, rec, endorsement.StatusAwaitingSubmit, "Re-queued for submission.") {
			return
		}
		rec.Status = endorsement.StatusAwaitingSubmit

	case endorsement.StatusAwaitingSubmit:
		// Already queued, go straight to submission.

	default:
		log.Warn("Skipping document in a terminal status", zap.String("status", rec.Status.String()))
		return
	}

	payload, err := r.source.FetchPayload(ctx, rec.ERPCompanyID, rec.IssueDate, rec.DocumentNumber)
	if err != nil {
		message := fmt.Sprintf("Could not retrieve the document payload: %v", err)
		if errors.Is(err, endorsement.ErrPayloadNotFound) {
			message = "Document payload not found at the ERP."
		}
		log.Error("Payload retrieval failed", zap.Error(err))
		if r.transition(ctx, log, rec, endorsement.StatusSubmitError, message) {
			summary.Errored = append(summary.Errored, outcome(rec, endorsement.StatusSubmitError, message))
		}
		return
	}

	result, err := r.submitWithRetry(ctx, payload)
	if err != nil {
		message := fmt.Sprintf("Submission failed: %v", err)
		if rejection, ok := endorsement.IsBusinessRejection(err); ok {
			message = fmt.Sprintf("Rejected by the partner: %s", rejectionText(rejection))
		}
		log.Error("Document submission failed", zap.Error(err))
		if r.transition(ctx, log, rec, endorsement.StatusSubmitError, message) {
			summary.Errored = append(summary.Errored, outcome(rec, endorsement.StatusSubmitError, message))
		}
		return
	}

	message := fmt.Sprintf("Endorsed. Protocol %s, endorsement number %s.", result.Protocol, result.EndorsementNumber)
	if !r.transition(ctx, log, rec, endorsement.StatusSubmitted, message) {
		return
	}
	log.Info("Document endorsed",
		zap.String("protocol", result.Protocol),
		zap.String("endorsement_number", result.EndorsementNumber),
	)
	summary.Submitted = append(summary.Submitted, outcome(rec, endorsement.StatusSubmitted, message))
}

// submitWithRetry submits the payload and, when the partner reports an
// expired session, re-authenticates and retries once.
func (r *Reconciler) submitWithRetry(ctx context.Context, payload []byte) (*endorsement.SubmitResult, error) {
	result, err := r.endorser.Submit(ctx, payload)

	for attempt := 0; attempt < maxAuthRetries && errors.Is(err, endorsement.ErrSessionExpired); attempt++ {
		if authErr := r.endorser.Authenticate(ctx); authErr != nil {
			return nil, authErr
		}
		result, err = r.endorser.Submit(ctx, payload)
	}

	return result, err
}

// transition moves the record with a compare-and-set on its observed
// status. Returns false when the lifecycle forbids the move or another
// runner got there first.
func (r *Reconciler) transition(ctx context.Context, log *zap.Logger, rec *endorsement.DocumentWithRules, to endorsement.Status, message string) bool {
	if !rec.Status.CanTransitionTo(to) {
		log.Warn("Transition not permitted by the document lifecycle",
			zap.String("from", rec.Status.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	err := r.ledger.UpdateStatus(ctx, rec.ID, []endorsement.Status{rec.Status}, to, message)
	if err == nil {
		return true
	}
	if errors.Is(err, endorsement.ErrInvalidTransition) {
		log.Debug("Document was handled by a concurrent runner",
			zap.String("from", rec.Status.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	log.Error("Failed to update document status",
		zap.String("to", to.String()),
		zap.Error(err),
	)
	return false
}

func outcome(rec *endorsement.DocumentWithRules, status endorsement.Status, message string) endorsement.DocumentOutcome {
	return endorsement.DocumentOutcome{
		TenantName:     rec.TenantName,
		DocumentNumber: rec.DocumentNumber,
		Status:         status,
		Message:        message,
	}
}

func rejectionText(rejection *endorsement.BusinessRejection) string {
	if len(rejection.Reasons) == 0 {
		return "no reason given"
	}
	text := ""
	for i, reason := range rejection.Reasons {
		if i > 0 {
			text += "; "
		}
		text += fmt.Sprintf("%s: %s", reason.Code, reason.Description)
	}
	return text
}
