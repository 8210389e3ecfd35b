package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/notify"
)

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test message through the configured messenger",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			notifier, err := notify.New(cfg.Messenger)
			if err != nil {
				return err
			}
			if err := notifier.ValidateConfig(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := notifier.SendTest(ctx); err != nil {
				return err
			}
			fmt.Printf("Test message sent via %s.\n", notifier.Name())
			return nil
		},
	}
}
