package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func validConfig() *Config {
	return &Config{
		Host: "smtp.example.com",
		From: "alerts@example.com",
		To:   []string{"ops@example.com"},
	}
}

func erroredSummary() *endorsement.CycleSummary {
	started := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	return &endorsement.CycleSummary{
		StartedAt:      started,
		FinishedAt:     started.Add(42 * time.Second),
		TenantsChecked: 2,
		NewDocuments:   5,
		Submitted: []endorsement.DocumentOutcome{
			{TenantName: "Litoral", DocumentNumber: "1001", Status: endorsement.StatusSubmitted},
		},
		Errored: []endorsement.DocumentOutcome{
			{TenantName: "Litoral", DocumentNumber: "1002", Status: endorsement.StatusSubmitError, Message: "101: CNPJ do emitente nao cadastrado"},
		},
		IngestFailures: []endorsement.IngestFailure{
			{TenantName: "Serrana", Err: errors.New("page 2 for tenant Serrana: HTTP 500")},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"missing host", func(c *Config) { c.Host = "" }, ErrEmailConfigMissingHost},
		{"missing sender", func(c *Config) { c.From = "" }, ErrEmailConfigMissingFrom},
		{"missing recipients", func(c *Config) { c.To = nil }, ErrEmailConfigMissingRecipients},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 587, cfg.Port)
			}
		})
	}
}

func TestEmailNotifier_Notify(t *testing.T) {
	notifier, err := NewEmailNotifier(validConfig())
	require.NoError(t, err)

	sender := &fakeSender{}
	notifier.sender = sender

	err = notifier.Notify(context.Background(), erroredSummary())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"alerts@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "2 error(s)")
}

func TestEmailNotifier_Notify_SendFailure(t *testing.T) {
	notifier, err := NewEmailNotifier(validConfig())
	require.NoError(t, err)

	notifier.sender = &fakeSender{err: errors.New("dial tcp: connection refused")}

	err = notifier.Notify(context.Background(), erroredSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send alert email")
}

func TestRenderSummary(t *testing.T) {
	body := renderSummary(erroredSummary())

	assert.Contains(t, body, "Tenants checked: 2")
	assert.Contains(t, body, "new documents: 5")
	assert.Contains(t, body, "submitted: 1")
	assert.Contains(t, body, "Serrana: page 2 for tenant Serrana: HTTP 500")
	assert.Contains(t, body, "Litoral / document 1002: 101: CNPJ do emitente nao cadastrado")
}
