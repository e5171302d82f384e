package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/averbaflow/backend/internal/domain/endorsement"
)

// Errors for notifier configuration
var (
	ErrEmailConfigMissingHost       = errors.New("notify: SMTP host is required")
	ErrEmailConfigMissingFrom       = errors.New("notify: sender address is required")
	ErrEmailConfigMissingRecipients = errors.New("notify: at least one recipient is required")
)

// Config holds SMTP settings for operator alerts.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrEmailConfigMissingHost
	}
	if c.From == "" {
		return ErrEmailConfigMissingFrom
	}
	if len(c.To) == 0 {
		return ErrEmailConfigMissingRecipients
	}
	if c.Port <= 0 {
		c.Port = 587
	}
	return nil
}

// mailSender is the slice of gomail.Dialer the notifier needs.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends cycle error reports to operators over SMTP. The
// reconciliation loop only invokes it for cycles that produced errors.
type EmailNotifier struct {
	config *Config
	sender mailSender
}

// NewEmailNotifier creates a notifier with the given SMTP configuration.
func NewEmailNotifier(config *Config) (*EmailNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EmailNotifier{
		config: config,
		sender: gomail.NewDialer(config.Host, config.Port, config.User, config.Password),
	}, nil
}

// Notify renders the cycle summary and mails it to the configured
// recipients.
func (n *EmailNotifier) Notify(_ context.Context, summary *endorsement.CycleSummary) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.config.From)
	m.SetHeader("To", n.config.To...)
	m.SetHeader("Subject", subject(summary))
	m.SetBody("text/plain", renderSummary(summary))

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("notify: failed to send alert email: %w", err)
	}
	return nil
}

func subject(summary *endorsement.CycleSummary) string {
	problems := len(summary.Errored) + len(summary.IngestFailures)
	return fmt.Sprintf("[AverbaFlow] Endorsement cycle finished with %d error(s)", problems)
}

func renderSummary(summary *endorsement.CycleSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Endorsement cycle report\n")
	fmt.Fprintf(&b, "Started:  %s\n", summary.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Finished: %s (%s)\n", summary.FinishedAt.Format("2006-01-02 15:04:05"), summary.Duration().Round(100*time.Millisecond))
	fmt.Fprintf(&b, "Tenants checked: %d, new documents: %d, submitted: %d, ignored: %d\n",
		summary.TenantsChecked, summary.NewDocuments, len(summary.Submitted), len(summary.Ignored))

	if len(summary.IngestFailures) > 0 {
		b.WriteString("\nERP ingestion failures:\n")
		for _, f := range summary.IngestFailures {
			fmt.Fprintf(&b, "  - %s: %v\n", f.TenantName, f.Err)
		}
	}

	if len(summary.Errored) > 0 {
		b.WriteString("\nDocuments in error:\n")
		for _, d := range summary.Errored {
			fmt.Fprintf(&b, "  - %s / document %s: %s\n", d.TenantName, d.DocumentNumber, d.Message)
		}
	}

	return b.String()
}

// Ensure EmailNotifier implements the Notifier port
var _ endorsement.Notifier = (*EmailNotifier)(nil)
