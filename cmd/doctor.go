package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/identity"
	"github.com/nextlevelbuilder/cmdgate/internal/notify"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity health",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("cmdgate doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Printf("  Machine:  %s\n", identity.Fingerprint())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND — using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Policy:")
	fmt.Printf("    %-16s %ds\n", "Timeout:", cfg.Rules.TimeoutSeconds)
	fmt.Printf("    %-16s %s\n", "Default action:", cfg.Rules.DefaultAction)
	fmt.Printf("    %-16s %d custom, %d whitelisted\n", "Patterns:", len(cfg.Rules.CustomPatterns), len(cfg.Rules.Whitelist))
	if cfg.MachineIDSecret == "" {
		fmt.Printf("    %-16s NOT SET (webhook will only format-check machine ids)\n", "Machine secret:")
	} else {
		fmt.Printf("    %-16s set\n", "Machine secret:")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println()
	fmt.Println("  Store:")
	if err := cfg.Validate(); err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", err)
	} else if err := probeStore(ctx, cfg); err != nil {
		fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s OK (%s)\n", "Status:", cfg.Store.URL)
	}

	fmt.Println()
	fmt.Printf("  Messenger (%s):\n", cfg.Messenger.Type)
	notifier, err := notify.New(cfg.Messenger)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", err)
		return
	}
	if err := notifier.ValidateConfig(); err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", err)
		return
	}
	ident, err := notifier.ProbeConnection(ctx)
	if err != nil {
		fmt.Printf("    %-12s PROBE FAILED (%s)\n", "Status:", err)
		return
	}
	fmt.Printf("    %-12s OK (%s)\n", "Status:", ident)
}

// probeStore hits the REST root with the anon key; any authenticated
// response means the store is reachable.
func probeStore(ctx context.Context, cfg *config.Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Store.URL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", cfg.Store.AnonKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
