package endorsement

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Source system errors
	ErrSourceQuery     = errors.New("endorsement: source document query failed")
	ErrPayloadNotFound = errors.New("endorsement: document payload not found at source")

	// Partner system errors
	ErrAuthFailed         = errors.New("endorsement: partner authentication failed")
	ErrSessionExpired     = errors.New("endorsement: partner session token expired")
	ErrEndorsementFailed  = errors.New("endorsement: partner submission failed")
	ErrInvalidResponse    = errors.New("endorsement: invalid partner response")
	ErrPartnerUnavailable = errors.New("endorsement: partner service unavailable")

	// Ledger errors
	ErrInvalidTransition = errors.New("endorsement: document not in an allowed status for this transition")
	ErrNotReprocessable  = errors.New("endorsement: document status is terminal and cannot be resubmitted")
)

// RejectionReason is one business-level error returned by the partner
type RejectionReason struct {
	Code        string
	Description string
}

// BusinessRejection is returned when the partner accepted the request at
// transport level but rejected the document for business reasons. It is
// distinct from transport failures so callers can record the reasons on
// the ledger without retrying.
type BusinessRejection struct {
	Reasons []RejectionReason
}

// Error implements the error interface
func (e *BusinessRejection) Error() string {
	if len(e.Reasons) == 0 {
		return "endorsement: document rejected by partner"
	}
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = fmt.Sprintf("%s: %s", r.Code, r.Description)
	}
	return "endorsement: document rejected by partner: " + strings.Join(parts, "; ")
}

// IsBusinessRejection reports whether err is a partner business rejection
// and returns it when so.
func IsBusinessRejection(err error) (*BusinessRejection, bool) {
	var rejection *BusinessRejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
