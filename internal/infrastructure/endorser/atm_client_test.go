package endorser

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &Config{User: "user", Password: "pass", PartnerCode: "0042"},
			wantErr: nil,
		},
		{
			name:    "missing user",
			config:  &Config{Password: "pass", PartnerCode: "0042"},
			wantErr: ErrATMConfigMissingUser,
		},
		{
			name:    "missing password",
			config:  &Config{User: "user", PartnerCode: "0042"},
			wantErr: ErrATMConfigMissingPassword,
		},
		{
			name:    "missing partner code",
			config:  &Config{User: "user", Password: "pass"},
			wantErr: ErrATMConfigMissingPartnerCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				// Check defaults are set
				assert.Equal(t, DefaultBaseURL, tt.config.BaseURL)
				assert.True(t, tt.config.Timeout > 0)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, serverURL string) *ATMClient {
	t.Helper()
	client, err := NewATMClient(&Config{
		BaseURL:     serverURL,
		User:        "user",
		Password:    "pass",
		PartnerCode: "0042",
	})
	require.NoError(t, err)
	return client
}

// partnerStub answers /Auth with a fixed token and delegates /NFe to submit.
func partnerStub(t *testing.T, token string, submit http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var authCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Auth":
			atomic.AddInt32(&authCalls, 1)

			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "user", creds["usuario"])
			assert.Equal(t, "pass", creds["senha"])
			assert.Equal(t, "0042", creds["codigoatm"])

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"Bearer": token})
		case "/NFe":
			submit(w, r)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	return server, &authCalls
}

// ---------------------------------------------------------------------------
// Authenticate Tests
// ---------------------------------------------------------------------------

func TestATMClient_Authenticate(t *testing.T) {
	server, authCalls := partnerStub(t, "token-abc", nil)
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Authenticate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(authCalls))
	assert.Equal(t, "token-abc", client.currentToken())
}

func TestATMClient_Authenticate_InsecureSkipVerify(t *testing.T) {
	// Self-signed certificate, like the partner's homologation environment
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"Bearer": "token-tls"})
	}))
	defer server.Close()

	strict := newTestClient(t, server.URL)
	require.Error(t, strict.Authenticate(context.Background()))

	relaxed, err := NewATMClient(&Config{
		BaseURL:            server.URL,
		User:               "user",
		Password:           "pass",
		PartnerCode:        "0042",
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)
	require.NoError(t, relaxed.Authenticate(context.Background()))
	assert.Equal(t, "token-tls", relaxed.currentToken())
}

func TestATMClient_Authenticate_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Authenticate(context.Background())

	assert.ErrorIs(t, err, endorsement.ErrAuthFailed)
	assert.Empty(t, client.currentToken())
}

func TestATMClient_Authenticate_NoBearerInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Authenticate(context.Background())
	assert.ErrorIs(t, err, endorsement.ErrAuthFailed)
}

func TestATMClient_Authenticate_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	err := client.Authenticate(context.Background())
	assert.ErrorIs(t, err, endorsement.ErrPartnerUnavailable)
}

// ---------------------------------------------------------------------------
// Submit Tests
// ---------------------------------------------------------------------------

func TestATMClient_Submit_Success(t *testing.T) {
	xml := "<nfeProc>conteudo</nfeProc>"

	server, authCalls := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, xml, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Averbado": {
				"Protocolo": "2026083112345",
				"DadosSeguro": [{"NumeroAverbacao": "AVB-778899"}]
			}
		}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), []byte(xml))

	require.NoError(t, err)
	assert.Equal(t, "2026083112345", result.Protocol)
	assert.Equal(t, "AVB-778899", result.EndorsementNumber)
	// Session obtained lazily on first submit
	assert.Equal(t, int32(1), atomic.LoadInt32(authCalls))
}

func TestATMClient_Submit_ReusesSession(t *testing.T) {
	server, authCalls := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Averbado": {"Protocolo": "1"}}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.Submit(context.Background(), []byte("<nfeProc/>"))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(authCalls))
}

func TestATMClient_Submit_BusinessRejection(t *testing.T) {
	server, _ := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Business errors arrive with HTTP 200
		_, _ = w.Write([]byte(`{
			"Erros": {
				"Erro": [
					{"Codigo": "101", "Descricao": "CNPJ do emitente nao cadastrado"},
					{"Codigo": "205", "Descricao": "XML sem protocolo de autorizacao"}
				]
			}
		}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), []byte("<nfeProc/>"))

	assert.Nil(t, result)
	rejection, ok := endorsement.IsBusinessRejection(err)
	require.True(t, ok)
	require.Len(t, rejection.Reasons, 2)
	assert.Equal(t, "101", rejection.Reasons[0].Code)
	assert.Equal(t, "CNPJ do emitente nao cadastrado", rejection.Reasons[0].Description)
	assert.Contains(t, err.Error(), "205")
}

func TestATMClient_Submit_SessionExpired(t *testing.T) {
	server, _ := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Codigo": "915", "Descricao": "Token expirado"}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), []byte("<nfeProc/>"))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, endorsement.ErrSessionExpired)
	// Session must be invalidated so the next submit re-authenticates
	assert.Empty(t, client.currentToken())
}

func TestATMClient_Submit_UnauthorizedWithoutExpiryCode(t *testing.T) {
	server, _ := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Codigo": "900", "Descricao": "Acesso negado"}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), []byte("<nfeProc/>"))

	assert.ErrorIs(t, err, endorsement.ErrEndorsementFailed)
	assert.NotErrorIs(t, err, endorsement.ErrSessionExpired)
	assert.Contains(t, err.Error(), "Acesso negado")
}

func TestATMClient_Submit_ServerError(t *testing.T) {
	server, _ := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), []byte("<nfeProc/>"))

	assert.ErrorIs(t, err, endorsement.ErrEndorsementFailed)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestATMClient_Submit_EmptyResponseBody(t *testing.T) {
	server, _ := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), []byte("<nfeProc/>"))
	assert.ErrorIs(t, err, endorsement.ErrInvalidResponse)
}

func TestATMClient_Submit_ReauthenticateAfterExpiry(t *testing.T) {
	var submits int32
	server, authCalls := partnerStub(t, "token-abc", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&submits, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"Codigo": "915"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Averbado": {"Protocolo": "2"}}`))
	})
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Submit(context.Background(), []byte("<nfeProc/>"))
	assert.ErrorIs(t, err, endorsement.ErrSessionExpired)

	// Next submit re-authenticates because the session was dropped
	result, err := client.Submit(context.Background(), []byte("<nfeProc/>"))
	require.NoError(t, err)
	assert.Equal(t, "2", result.Protocol)
	assert.Equal(t, int32(2), atomic.LoadInt32(authCalls))
}
