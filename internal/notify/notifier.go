// Package notify delivers approval prompts to the configured messenger.
// Each variant formats the same Notification for its platform and, where
// the platform supports it, attaches approve/reject controls that call
// back into the webhook service.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
)

// Notification is one approval prompt. Command arrives already masked;
// notifiers never see raw secrets.
type Notification struct {
	RequestID string
	Command   string
	Reason    string
	Severity  string
	Cwd       string
	CreatedAt time.Time
}

// Notifier is the messenger port. ProbeConnection returns a short
// human-readable identity string ("bot @cmdgate_bot") for doctor output.
type Notifier interface {
	Name() string
	SendNotification(ctx context.Context, n Notification) error
	SendTest(ctx context.Context) error
	ProbeConnection(ctx context.Context) (string, error)
	ValidateConfig() error
}

// New builds the notifier selected by messenger.type.
func New(cfg config.MessengerConfig) (Notifier, error) {
	switch strings.ToLower(cfg.Type) {
	case "slack":
		return NewSlackNotifier(cfg.Slack), nil
	case "telegram":
		return NewTelegramNotifier(cfg.Telegram)
	case "twilio":
		return NewTwilioNotifier(cfg.Twilio), nil
	case "discord":
		return NewDiscordNotifier(cfg.Discord)
	default:
		return nil, fmt.Errorf("unknown messenger type %q", cfg.Type)
	}
}

// severityLabel maps severities to the marker prefixed to prompts.
func severityLabel(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴 CRITICAL"
	case "high":
		return "🟠 HIGH"
	case "medium":
		return "🟡 MEDIUM"
	case "low":
		return "🔵 LOW"
	default:
		return "⚪ UNKNOWN"
	}
}

// truncateCommand caps command display length; chat platforms reject or
// mangle very long messages.
func truncateCommand(cmd string, max int) string {
	if len(cmd) <= max {
		return cmd
	}
	return cmd[:max] + "..."
}
