package endorsement

import "time"

// DocumentOutcome records what happened to one document during a cycle
type DocumentOutcome struct {
	TenantName     string
	DocumentNumber string
	Status         Status
	Message        string
}

// IngestFailure records a tenant whose source query failed during ingest.
// A failure here never blocks the other tenants in the same cycle.
type IngestFailure struct {
	TenantName string
	Err        error
}

// CycleSummary aggregates the results of one reconciliation cycle. It is
// handed to the Notifier when the cycle produced at least one error.
type CycleSummary struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	TenantsChecked int
	NewDocuments   int
	Submitted      []DocumentOutcome
	Ignored        []DocumentOutcome
	Errored        []DocumentOutcome
	IngestFailures []IngestFailure
}

// HasErrors reports whether any document errored or any tenant failed to
// ingest. A clean cycle, even an empty one, must not raise an alert.
func (s *CycleSummary) HasErrors() bool {
	return len(s.Errored) > 0 || len(s.IngestFailures) > 0
}

// Duration returns how long the cycle ran
func (s *CycleSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
