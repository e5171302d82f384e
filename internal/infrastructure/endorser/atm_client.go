package endorser

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

// maxResponseSize is the maximum allowed response size from the partner API (5MB)
const maxResponseSize = 5 * 1024 * 1024

// tokenExpiredCode is the partner's body-level code on an HTTP 401 that
// means the bearer session expired, as opposed to bad credentials.
const tokenExpiredCode = "915"

// DefaultBaseURL is the partner's production REST endpoint.
const DefaultBaseURL = "https://webserver.averba.com.br/rest"

// Errors for partner client configuration
var (
	ErrATMConfigMissingUser        = errors.New("endorser: partner user is required")
	ErrATMConfigMissingPassword    = errors.New("endorser: partner password is required")
	ErrATMConfigMissingPartnerCode = errors.New("endorser: partner code is required")
)

// Config holds connection and credential settings for the partner API.
type Config struct {
	BaseURL     string
	User        string
	Password    string
	PartnerCode string
	Timeout     time.Duration

	// InsecureSkipVerify disables TLS certificate verification for the
	// partner's homologation environment. Rejected in production by the
	// config validation.
	InsecureSkipVerify bool
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.User == "" {
		return ErrATMConfigMissingUser
	}
	if c.Password == "" {
		return ErrATMConfigMissingPassword
	}
	if c.PartnerCode == "" {
		return ErrATMConfigMissingPartnerCode
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// ATMClient implements the EndorserClient port against the AT&M cargo
// insurance endorsement REST API. The bearer session is cached on the
// client and shared across submissions until the partner reports it
// expired.
type ATMClient struct {
	config     *Config
	httpClient *http.Client

	mu    sync.Mutex // Protects token
	token string
}

// NewATMClient creates a new partner client with the given configuration.
func NewATMClient(config *Config) (*ATMClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: config.Timeout}
	if config.InsecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &ATMClient{
		config:     config,
		httpClient: client,
	}, nil
}

// Authenticate obtains a fresh bearer session from the partner and caches
// it, replacing any previous one.
func (c *ATMClient) Authenticate(ctx context.Context) error {
	reqBody, err := json.Marshal(authRequest{
		Usuario:   c.config.User,
		Senha:     c.config.Password,
		CodigoATM: c.config.PartnerCode,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to encode credentials: %v", endorsement.ErrAuthFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/Auth", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", endorsement.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", endorsement.ErrPartnerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", endorsement.ErrAuthFailed, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d", endorsement.ErrAuthFailed, resp.StatusCode)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", endorsement.ErrAuthFailed, err)
	}
	if auth.Bearer == "" {
		return fmt.Errorf("%w: response carried no bearer token", endorsement.ErrAuthFailed)
	}

	c.mu.Lock()
	c.token = auth.Bearer
	c.mu.Unlock()
	return nil
}

// Submit posts the raw fiscal XML to the partner for endorsement,
// authenticating first when no session is cached. Business rejections
// are reported in the response body even on HTTP 200; an HTTP 401 with
// the expiry code invalidates the cached session so the caller can
// re-authenticate and retry.
func (c *ATMClient) Submit(ctx context.Context, payload []byte) (*endorsement.SubmitResult, error) {
	token := c.currentToken()
	if token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		token = c.currentToken()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/NFe", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", endorsement.ErrEndorsementFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", endorsement.ErrPartnerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", endorsement.ErrEndorsementFailed, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var unauthorized unauthorizedResponse
		_ = json.Unmarshal(body, &unauthorized)
		if unauthorized.Codigo == tokenExpiredCode {
			c.invalidateSession()
			return nil, endorsement.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: HTTP 401: %s", endorsement.ErrEndorsementFailed, unauthorized.Descricao)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", endorsement.ErrEndorsementFailed, resp.StatusCode)
	}

	var endorsed endorseResponse
	if err := json.Unmarshal(body, &endorsed); err != nil {
		return nil, fmt.Errorf("%w: %v", endorsement.ErrInvalidResponse, err)
	}

	if endorsed.Erros != nil && len(endorsed.Erros.Erro) > 0 {
		rejection := &endorsement.BusinessRejection{
			Reasons: make([]endorsement.RejectionReason, 0, len(endorsed.Erros.Erro)),
		}
		for _, e := range endorsed.Erros.Erro {
			rejection.Reasons = append(rejection.Reasons, endorsement.RejectionReason{
				Code:        e.Codigo,
				Description: e.Descricao,
			})
		}
		return nil, rejection
	}

	if endorsed.Averbado == nil {
		return nil, fmt.Errorf("%w: response carried neither errors nor endorsement data", endorsement.ErrInvalidResponse)
	}

	result := &endorsement.SubmitResult{
		Protocol: endorsed.Averbado.Protocolo,
	}
	if len(endorsed.Averbado.DadosSeguro) > 0 {
		result.EndorsementNumber = endorsed.Averbado.DadosSeguro[0].NumeroAverbacao
	}
	return result, nil
}

func (c *ATMClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *ATMClient) invalidateSession() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Ensure ATMClient implements the EndorserClient port
var _ endorsement.EndorserClient = (*ATMClient)(nil)
