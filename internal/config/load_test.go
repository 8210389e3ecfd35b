package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoad_JSON5 verifies the config file tolerates comments and trailing
// commas.
func TestLoad_JSON5(t *testing.T) {
	path := writeConfig(t, `{
		// approval channel
		messenger: { type: "slack", slack: { webhookUrl: "https://hooks.slack.com/services/T/B/x" } },
		store: { url: "https://proj.supabase.co", anonKey: "anon" },
		rules: { timeoutSeconds: 120, defaultAction: "deny", },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Messenger.Type != "slack" {
		t.Errorf("messenger.type = %q", cfg.Messenger.Type)
	}
	if cfg.Rules.TimeoutSeconds != 120 {
		t.Errorf("timeoutSeconds = %d", cfg.Rules.TimeoutSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// TestLoad_TimeoutClampedAtTen verifies the config-file floor.
func TestLoad_TimeoutClampedAtTen(t *testing.T) {
	path := writeConfig(t, `{rules: {timeoutSeconds: 3}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.TimeoutSeconds != MinTimeoutSeconds {
		t.Errorf("timeoutSeconds = %d, want %d", cfg.Rules.TimeoutSeconds, MinTimeoutSeconds)
	}
}

// TestLoad_EnvTimeoutClampedAtSixty verifies env overrides cannot shrink
// the window below 60s.
func TestLoad_EnvTimeoutClampedAtSixty(t *testing.T) {
	t.Setenv("CMDGATE_TIMEOUT_SECONDS", "15")
	path := writeConfig(t, `{rules: {timeoutSeconds: 300}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.TimeoutSeconds != MinEnvTimeoutSeconds {
		t.Errorf("timeoutSeconds = %d, want %d", cfg.Rules.TimeoutSeconds, MinEnvTimeoutSeconds)
	}
}

// TestLoad_EnvCannotWeakenDefaultAction verifies deny→allow from the
// environment is refused while allow→deny is accepted.
func TestLoad_EnvCannotWeakenDefaultAction(t *testing.T) {
	t.Setenv("CMDGATE_DEFAULT_ACTION", "allow")
	path := writeConfig(t, `{rules: {defaultAction: "deny"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.DefaultAction != ActionDeny {
		t.Errorf("defaultAction = %q, env weakened the gate", cfg.Rules.DefaultAction)
	}

	t.Setenv("CMDGATE_DEFAULT_ACTION", "deny")
	path = writeConfig(t, `{rules: {defaultAction: "allow"}}`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.DefaultAction != ActionDeny {
		t.Errorf("defaultAction = %q, hardening override ignored", cfg.Rules.DefaultAction)
	}
}

// TestLoad_MissingFileYieldsDefaults verifies a missing config file is not
// an error.
func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rules.DefaultAction != ActionDeny {
		t.Errorf("defaultAction = %q", cfg.Rules.DefaultAction)
	}
	if cfg.Rules.TimeoutSeconds != 300 {
		t.Errorf("timeoutSeconds = %d", cfg.Rules.TimeoutSeconds)
	}
}

// TestValidate_BadDefaultAction verifies structural validation.
func TestValidate_BadDefaultAction(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{URL: "https://x", AnonKey: "k"}
	cfg.Rules.DefaultAction = "maybe"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted defaultAction=maybe")
	}
}
