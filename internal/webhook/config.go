// Package webhook is the service-side half of the gate: it terminates the
// messenger callbacks (Slack interactions, Telegram callback queries,
// Twilio SMS replies, Discord interactions), authenticates them, and
// applies the human verdict to the pending row.
package webhook

import (
	"fmt"
	"os"
	"strconv"
)

// Config is read from the environment only. The service runs on
// infrastructure the end user cannot touch; nothing here belongs in the
// per-machine config file.
type Config struct {
	Port        int
	PostgresDSN string
	// SQLitePath activates the single-instance rate-limit store when no
	// shared counting table is wanted.
	SQLitePath string

	SlackSigningSecret    string
	TelegramWebhookSecret string
	TwilioAuthToken       string
	// TwilioURL is the public URL Twilio posts to, needed to recompute
	// the request signature.
	TwilioURL        string
	DiscordPublicKey string

	MachineIDSecret string
	CleanupSchedule string
}

// FromEnv builds the service config. Only the DSN is mandatory; each
// provider route is active only when its credential is present.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                  8080,
		PostgresDSN:           os.Getenv("CMDGATE_POSTGRES_DSN"),
		SQLitePath:            os.Getenv("CMDGATE_SQLITE_PATH"),
		SlackSigningSecret:    os.Getenv("SLACK_SIGNING_SECRET"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioURL:             os.Getenv("TWILIO_WEBHOOK_URL"),
		DiscordPublicKey:      os.Getenv("DISCORD_PUBLIC_KEY"),
		MachineIDSecret:       os.Getenv("MACHINE_ID_SECRET"),
		CleanupSchedule:       os.Getenv("CMDGATE_CLEANUP_SCHEDULE"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT %q is not numeric: %w", v, err)
		}
		cfg.Port = port
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "*/10 * * * *"
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("CMDGATE_POSTGRES_DSN environment variable is not set")
	}
	return cfg, nil
}
