package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

// documentSearchResponse is one page of the ERP outbound invoice search.
// The continuation token is opaque; an empty token means the last page.
type documentSearchResponse struct {
	Data              []erpDocument `json:"data"`
	ContinuationToken string        `json:"continuationToken"`
}

// erpDocument is a single invoice entry as the ERP returns it. Numeric
// codes arrive as JSON numbers but are treated as strings everywhere
// downstream.
type erpDocument struct {
	Number         json.Number `json:"codNumNota"`
	Representative json.Number `json:"codRepresentante"`
	DocType        json.Number `json:"codTipoDeNota"`
	IssueDate      string      `json:"dataEmissao"`
	TotalAmount    json.Number `json:"valorNota"`
}

// issueDateLayouts are the timestamp shapes the ERP has been seen to emit.
var issueDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseIssueDate(value string) (time.Time, error) {
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized issue date %q", value)
}

func (d *erpDocument) toSummary() (endorsement.DocumentSummary, error) {
	issued, err := parseIssueDate(d.IssueDate)
	if err != nil {
		return endorsement.DocumentSummary{}, fmt.Errorf("document %s: %w", d.Number.String(), err)
	}

	amount := decimal.Zero
	if d.TotalAmount.String() != "" {
		amount, err = decimal.NewFromString(d.TotalAmount.String())
		if err != nil {
			return endorsement.DocumentSummary{}, fmt.Errorf("document %s: invalid total amount %q", d.Number.String(), d.TotalAmount.String())
		}
	}

	return endorsement.DocumentSummary{
		Number:         d.Number.String(),
		Representative: d.Representative.String(),
		DocType:        d.DocType.String(),
		IssueDate:      issued,
		TotalAmount:    amount,
	}, nil
}

// payloadResponse wraps the fiscal XML the ERP returns as JSON. Some ERP
// versions nest the content under "data".
type payloadResponse struct {
	XMLContent string `json:"xmlContent"`
	Data       *struct {
		XMLContent string `json:"xmlContent"`
	} `json:"data"`
}

func (r *payloadResponse) content() string {
	if r.XMLContent != "" {
		return r.XMLContent
	}
	if r.Data != nil {
		return r.Data.XMLContent
	}
	return ""
}
