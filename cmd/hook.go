package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/hook"
	"github.com/nextlevelbuilder/cmdgate/internal/identity"
	"github.com/nextlevelbuilder/cmdgate/internal/notify"
	"github.com/nextlevelbuilder/cmdgate/internal/rules"
	"github.com/nextlevelbuilder/cmdgate/internal/store/rest"
)

func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Run as a pre-tool hook: read an event from stdin, write a decision to stdout",
		Long: "Reads one tool event JSON from stdin, gates shell commands through risk classification " +
			"and human approval, and writes {\"decision\": \"allow\"|\"deny\"} to stdout. " +
			"Register it as the assistant's pre-tool-use hook.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			runHook()
			return nil
		},
	}
}

// runHook never returns a non-zero exit for gate decisions: the decision
// JSON is the contract, the exit code is not.
func runHook() {
	out := os.Stdout

	ev, err := hook.ParseEvent(os.Stdin)
	if err != nil {
		// An event we cannot read is an event we cannot classify.
		hook.WriteDecision(out, hook.Decision{Decision: hook.DecisionDeny, Reason: "unreadable hook event"})
		return
	}

	if !hook.IsCommandTool(ev.ToolName) || ev.ToolInput.Command == "" {
		hook.WriteDecision(out, hook.Decision{Decision: hook.DecisionAllow})
		return
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		hook.WriteDecision(out, hook.Decision{Decision: hook.DecisionDeny, Reason: "unreadable configuration"})
		return
	}

	engine := rules.NewEngine(cfg.Rules.CustomPatterns, cfg.Rules.Whitelist)

	// Cheap classification first: most commands are not dangerous, and
	// they must not pay for config validation or network setup.
	if v := engine.Classify(ev.ToolInput.Command); !v.Dangerous {
		hook.WriteDecision(out, hook.Decision{Decision: hook.DecisionAllow, Reason: v.Reason})
		return
	}

	fallback := func(reason string) hook.Decision {
		if cfg.Rules.DefaultAction == config.ActionAllow {
			return hook.Decision{Decision: hook.DecisionAllow, Reason: reason}
		}
		return hook.Decision{Decision: hook.DecisionDeny, Reason: reason}
	}

	if err := cfg.Validate(); err != nil {
		hook.WriteDecision(out, fallback("approval system not configured: "+err.Error()))
		return
	}

	notifier, err := notify.New(cfg.Messenger)
	if err != nil {
		hook.WriteDecision(out, fallback("messenger not configured: "+err.Error()))
		return
	}

	signed := identity.Sign(cfg.MachineIDSecret, identity.Fingerprint(), time.Now())
	writer := rest.New(cfg.Store, signed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := hook.Run(ctx, ev.ToolInput.Command, ev.Cwd, hook.Options{
		Config:    cfg,
		Store:     writer,
		Notifier:  notifier,
		Engine:    engine,
		MachineID: signed,
	})
	hook.WriteDecision(out, d)
}
