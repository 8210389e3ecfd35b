// Package config loads the cmdgate configuration document: a JSON5 file at
// ~/.cmdgate/config.json overlaid with environment variables. Env overrides
// may harden the gate but never weaken it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/cmdgate/internal/rules"
)

const (
	// MinTimeoutSeconds is the floor applied to any configured deadline.
	MinTimeoutSeconds = 10
	// MinEnvTimeoutSeconds is the floor for env-overridden deadlines; a
	// hostile environment must not be able to shrink the approval window.
	MinEnvTimeoutSeconds = 60
)

// Default actions when no verdict arrives or notification fails.
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Config is the root configuration document.
type Config struct {
	Messenger       MessengerConfig `json:"messenger"`
	Store           StoreConfig     `json:"store"`
	Rules           RulesConfig     `json:"rules"`
	MachineIDSecret string          `json:"machineIdSecret,omitempty"`
}

// MessengerConfig selects and configures the notifier variant.
type MessengerConfig struct {
	Type     string         `json:"type"` // "slack", "telegram", "twilio", "discord"
	Slack    SlackConfig    `json:"slack,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Twilio   TwilioConfig   `json:"twilio,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

// SlackConfig carries incoming-webhook credentials. BotToken is optional
// and only used to probe the bot identity.
type SlackConfig struct {
	WebhookURL string `json:"webhookUrl"`
	BotToken   string `json:"botToken,omitempty"`
}

// TelegramConfig carries Bot API credentials.
type TelegramConfig struct {
	BotToken string `json:"botToken"`
	ChatID   string `json:"chatId"`
}

// TwilioConfig carries SMS credentials.
type TwilioConfig struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
	ToNumber   string `json:"toNumber"`
}

// DiscordConfig carries bot credentials and the target channel.
type DiscordConfig struct {
	BotToken  string `json:"botToken"`
	ChannelID string `json:"channelId"`
}

// StoreConfig points at the shared row store.
type StoreConfig struct {
	URL     string `json:"url"`
	AnonKey string `json:"anonKey"`
}

// RulesConfig tunes the rule engine and the coordinator policy.
type RulesConfig struct {
	TimeoutSeconds int                   `json:"timeoutSeconds"`
	DefaultAction  string                `json:"defaultAction"` // "allow" or "deny"
	CustomPatterns []rules.CustomPattern `json:"customPatterns,omitempty"`
	Whitelist      []string              `json:"whitelist,omitempty"`
}

// Default returns a Config with safe defaults: 5 minute deadline, deny on
// timeout or notification failure.
func Default() *Config {
	return &Config{
		Messenger: MessengerConfig{Type: "telegram"},
		Rules: RulesConfig{
			TimeoutSeconds: 300,
			DefaultAction:  ActionDeny,
		},
	}
}

// DefaultPath returns the config file location: $CMDGATE_CONFIG or
// ~/.cmdgate/config.json.
func DefaultPath() string {
	if v := os.Getenv("CMDGATE_CONFIG"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cmdgate", "config.json")
}

// Save writes the config as indented JSON with owner-only permissions.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate performs the structural checks shared by all commands.
func (c *Config) Validate() error {
	switch c.Rules.DefaultAction {
	case ActionAllow, ActionDeny:
	default:
		return fmt.Errorf("rules.defaultAction must be %q or %q, got %q", ActionAllow, ActionDeny, c.Rules.DefaultAction)
	}
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Store.AnonKey == "" {
		return fmt.Errorf("store.anonKey is required")
	}
	return nil
}
