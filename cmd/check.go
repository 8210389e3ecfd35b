package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
	"github.com/nextlevelbuilder/cmdgate/internal/rules"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <command>",
		Short: "Classify a command offline, without sending any notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			engine := rules.NewEngine(cfg.Rules.CustomPatterns, cfg.Rules.Whitelist)

			v := engine.Classify(args[0])
			if !v.Dangerous {
				fmt.Printf("allow: %s\n", v.Reason)
				return nil
			}
			fmt.Printf("needs approval: %s (severity %s)\n", v.Reason, v.Severity)
			fmt.Printf("stored as: %s\n", masker.Mask(args[0]))
			return nil
		},
	}
}
