package endorsement

import (
	"fmt"
	"time"
)

// maxDocumentAge is the retention window for endorsement: documents
// issued longer ago than this are never submitted, whatever the tenant
// rules say.
const maxDocumentAge = 15 * 24 * time.Hour

// alwaysIgnoredByCNPJ pins representative codes that are ignored for one
// designated tenant regardless of its configured rules. This override is
// deliberately not tenant-configurable.
var alwaysIgnoredByCNPJ = map[string][]string{
	"05194398000168": {"90", "99"},
}

// Decision is the outcome of rule evaluation for one document
type Decision struct {
	Accept bool
	Reason string
}

// Evaluate applies the tenant rules to a document and decides whether it
// must be submitted for endorsement. It is pure: the same inputs always
// produce the same decision, and exactly one of accept/ignore results.
//
// Rule order (later rules override earlier ones):
//  1. representative on the tenant's ignore list -> ignore
//  2. exact match of the configured exception pair -> accept (undoes 1)
//  3. fixed per-tenant representative override -> ignore (beats 1-2)
//  4. issue date older than the retention window -> ignore (beats all)
func Evaluate(doc *DocumentWithRules, now time.Time) Decision {
	decision := Decision{Accept: true, Reason: "Approved by rule filter."}

	if doc.Rules.IgnoresRepresentative(doc.Representative) {
		decision = Decision{
			Accept: false,
			Reason: fmt.Sprintf("Representative %s is on the ignore list.", doc.Representative),
		}
		if doc.Rules.ExceptionMatches(doc.Representative, doc.DocType) {
			decision = Decision{
				Accept: true,
				Reason: fmt.Sprintf("Exception for representative %s with document type %s.", doc.Representative, doc.DocType),
			}
		}
	}

	if codes, ok := alwaysIgnoredByCNPJ[doc.TenantCNPJ]; ok {
		for _, code := range codes {
			if code == doc.Representative {
				decision = Decision{
					Accept: false,
					Reason: fmt.Sprintf("Representative %s is permanently ignored for this tenant.", doc.Representative),
				}
				break
			}
		}
	}

	if now.Sub(doc.IssueDate) > maxDocumentAge {
		decision = Decision{
			Accept: false,
			Reason: fmt.Sprintf("Document issued on %s is older than the %d-day endorsement window.",
				doc.IssueDate.Format("2006-01-02"), int(maxDocumentAge.Hours()/24)),
		}
	}

	return decision
}
