package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, overlays env vars, then clamps.
// A missing file yields defaults — the hook still fails closed later when
// the store is unreachable.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.clamp()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Credentials take
// precedence over file values; policy overrides are one-way — the
// environment can harden the gate but never weaken it.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("CMDGATE_MESSENGER_TYPE", &c.Messenger.Type)
	envStr("CMDGATE_SLACK_WEBHOOK_URL", &c.Messenger.Slack.WebhookURL)
	envStr("CMDGATE_SLACK_BOT_TOKEN", &c.Messenger.Slack.BotToken)
	envStr("CMDGATE_TELEGRAM_BOT_TOKEN", &c.Messenger.Telegram.BotToken)
	envStr("CMDGATE_TELEGRAM_CHAT_ID", &c.Messenger.Telegram.ChatID)
	envStr("CMDGATE_TWILIO_ACCOUNT_SID", &c.Messenger.Twilio.AccountSID)
	envStr("CMDGATE_TWILIO_AUTH_TOKEN", &c.Messenger.Twilio.AuthToken)
	envStr("CMDGATE_TWILIO_FROM_NUMBER", &c.Messenger.Twilio.FromNumber)
	envStr("CMDGATE_TWILIO_TO_NUMBER", &c.Messenger.Twilio.ToNumber)
	envStr("CMDGATE_DISCORD_BOT_TOKEN", &c.Messenger.Discord.BotToken)
	envStr("CMDGATE_DISCORD_CHANNEL_ID", &c.Messenger.Discord.ChannelID)
	envStr("CMDGATE_STORE_URL", &c.Store.URL)
	envStr("CMDGATE_STORE_ANON_KEY", &c.Store.AnonKey)
	envStr("CMDGATE_MACHINE_ID_SECRET", &c.MachineIDSecret)

	// Timeout from env is clamped to a higher floor so a hostile
	// environment cannot shrink the approval window below 60s.
	if v := os.Getenv("CMDGATE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			if secs < MinEnvTimeoutSeconds {
				slog.Warn("env timeout below floor, clamping",
					"requested", secs, "floor", MinEnvTimeoutSeconds)
				secs = MinEnvTimeoutSeconds
			}
			c.Rules.TimeoutSeconds = secs
		}
	}

	// Weakening the default action from env is refused outright.
	if v := os.Getenv("CMDGATE_DEFAULT_ACTION"); v != "" {
		switch {
		case v == ActionDeny:
			c.Rules.DefaultAction = ActionDeny
		case v == ActionAllow && c.Rules.DefaultAction == ActionAllow:
			// already allow, nothing to do
		default:
			slog.Warn("refusing env override that weakens defaultAction",
				"requested", v, "configured", c.Rules.DefaultAction)
		}
	}
}

// clamp enforces the configuration floors after file + env merge.
func (c *Config) clamp() {
	if c.Rules.TimeoutSeconds < MinTimeoutSeconds {
		c.Rules.TimeoutSeconds = MinTimeoutSeconds
	}
	if c.Rules.DefaultAction == "" {
		c.Rules.DefaultAction = ActionDeny
	}
}
