package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/averbaflow/backend/internal/domain/endorsement"
	"github.com/averbaflow/backend/internal/domain/tenant"
)

// maxResponseSize is the maximum allowed response size from the ERP API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// searchDateLayout is the date format the ERP query parameters expect.
const searchDateLayout = "2006-01-02"

// Errors for ERP client configuration
var (
	ErrERPConfigMissingBaseURL = errors.New("source: ERP base URL is required")
	ErrERPConfigMissingToken   = errors.New("source: ERP API token is required")
)

// Config holds connection settings for the ERP document API.
type Config struct {
	// BaseURL is the root of the ERP REST API, without a trailing slash.
	BaseURL string
	// Token is sent verbatim in the Authorization header.
	Token string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// PageWait is an optional pause between paginated search requests,
	// to stay under the ERP's rate limits.
	PageWait time.Duration
	// InsecureSkipVerify disables TLS certificate verification for
	// homologation endpoints with self-signed certificates. Rejected in
	// production by the config validation.
	InsecureSkipVerify bool
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrERPConfigMissingBaseURL
	}
	if c.Token == "" {
		return ErrERPConfigMissingToken
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// ERPClient implements the SourceClient port against the ERP's REST API.
type ERPClient struct {
	config     *Config
	httpClient *http.Client
}

// NewERPClient creates a new ERP client with the given configuration.
func NewERPClient(config *Config) (*ERPClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: config.Timeout}
	if config.InsecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &ERPClient{
		config:     config,
		httpClient: client,
	}, nil
}

// ListDocuments pages through the ERP's outbound invoice search for the
// tenant on the given date. It follows the continuation token until the
// ERP stops returning one and concatenates all pages. A failure on any
// page aborts the whole listing; partial results are never returned.
func (c *ERPClient) ListDocuments(ctx context.Context, t *tenant.Tenant, date time.Time) ([]endorsement.DocumentSummary, error) {
	day := date.Format(searchDateLayout)
	documents := make([]endorsement.DocumentSummary, 0)

	token := ""
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("situacao", "2")
		query.Set("tipoNota", t.DocTypeFilter)
		query.Set("dataEmissaoInicio", day)
		query.Set("dataEmissaoFim", day)
		if token != "" {
			query.Set("continuationToken", token)
		}

		body, status, err := c.get(ctx, "/notaFiscalSaida", query, t.ERPCompanyID)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d for tenant %s: %v", endorsement.ErrSourceQuery, page, t.Name, err)
		}
		if status >= 400 {
			return nil, fmt.Errorf("%w: page %d for tenant %s: HTTP %d", endorsement.ErrSourceQuery, page, t.Name, status)
		}

		var resp documentSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: page %d for tenant %s: failed to parse response: %v", endorsement.ErrSourceQuery, page, t.Name, err)
		}

		for i := range resp.Data {
			summary, err := resp.Data[i].toSummary()
			if err != nil {
				return nil, fmt.Errorf("%w: page %d for tenant %s: %v", endorsement.ErrSourceQuery, page, t.Name, err)
			}
			documents = append(documents, summary)
		}

		token = resp.ContinuationToken
		if token == "" {
			break
		}

		if c.config.PageWait > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", endorsement.ErrSourceQuery, ctx.Err())
			case <-time.After(c.config.PageWait):
			}
		}
	}

	return documents, nil
}

// FetchPayload retrieves the protocolled fiscal XML for one document.
// The ERP wraps the XML string in a JSON envelope; a 404/204 status or
// an envelope without content maps to ErrPayloadNotFound.
func (c *ERPClient) FetchPayload(ctx context.Context, erpCompanyID string, issueDate time.Time, documentNumber string) ([]byte, error) {
	query := url.Values{}
	query.Set("dataEmissao", issueDate.Format(searchDateLayout))
	query.Set("codNota", documentNumber)

	body, status, err := c.get(ctx, "/notaFiscalXML", query, erpCompanyID)
	if err != nil {
		return nil, fmt.Errorf("source: failed to fetch payload for document %s: %w", documentNumber, err)
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, fmt.Errorf("%w: document %s", endorsement.ErrPayloadNotFound, documentNumber)
	}
	if status >= 400 {
		return nil, fmt.Errorf("source: failed to fetch payload for document %s: HTTP %d", documentNumber, status)
	}

	var resp payloadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("source: failed to parse payload response for document %s: %w", documentNumber, err)
	}

	content := resp.content()
	if content == "" {
		return nil, fmt.Errorf("%w: document %s: response carried no XML content", endorsement.ErrPayloadNotFound, documentNumber)
	}

	return []byte(content), nil
}

// get performs a GET against the ERP API with the tenant identification
// headers and returns the body and HTTP status.
func (c *ERPClient) get(ctx context.Context, path string, query url.Values, erpCompanyID string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.config.Token)
	req.Header.Set("empresa", erpCompanyID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// Ensure ERPClient implements the SourceClient port
var _ endorsement.SourceClient = (*ERPClient)(nil)
