package hook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
	"github.com/nextlevelbuilder/cmdgate/internal/notify"
	"github.com/nextlevelbuilder/cmdgate/internal/rules"
	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// verdict sources, in no priority order: first answer wins.
type verdictSource int

const (
	sourceRemote verdictSource = iota
	sourceTTY
)

type verdict struct {
	source   verdictSource
	approved bool
	timedOut bool // remote row landed in timeout state
}

// Options wires the coordinator. Now is overridable for tests.
type Options struct {
	Config   *config.Config
	Store    store.RequestWriter
	Notifier notify.Notifier
	Engine   *rules.Engine
	// MachineID is the signed identifier stamped on the row so the
	// webhook side can verify provenance.
	MachineID string
	TTYPath   string
	Now       func() time.Time

	// Test seams: when ttyIn is set the prompt loop runs on these
	// readers instead of opening a terminal.
	ttyIn  io.Reader
	ttyOut io.Writer
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run gates one command: classify, and for dangerous commands persist a
// request, notify the human, and race the remote verdict against the
// local terminal and the deadline. Every failure path lands on the
// configured default action.
func Run(ctx context.Context, command, cwd string, opts Options) Decision {
	v := opts.Engine.Classify(command)
	if !v.Dangerous {
		return Decision{Decision: DecisionAllow, Reason: v.Reason}
	}

	timeout := time.Duration(opts.Config.Rules.TimeoutSeconds) * time.Second
	masked := masker.Mask(command)
	id := uuid.NewString()

	slog.Info("command needs approval",
		"request_id", id, "severity", v.Severity, "reason", v.Reason)

	row := store.ApprovalRequest{
		ID:           id,
		Command:      masked,
		DangerReason: v.Reason,
		Severity:     string(v.Severity),
		Cwd:          cwd,
		Status:       store.StatusPending,
		MachineID:    opts.MachineID,
	}
	if err := opts.Store.Insert(ctx, row); err != nil {
		slog.Error("could not persist approval request", "error", err)
		return opts.defaultDecision("approval system unreachable")
	}

	// Subscribe before notifying so the verdict update cannot slip past
	// us. A failed subscription degrades to terminal + deadline only.
	sub, err := opts.Store.Subscribe(ctx, id)
	if err != nil {
		slog.Warn("realtime subscription unavailable", "error", err)
		sub = nil
	}
	if sub != nil {
		defer sub.Close()
	}

	notif := notify.Notification{
		RequestID: id,
		Command:   masked,
		Reason:    v.Reason,
		Severity:  string(v.Severity),
		Cwd:       cwd,
		CreatedAt: opts.now(),
	}
	if err := opts.Notifier.SendNotification(ctx, notif); err != nil {
		slog.Error("could not deliver approval notification", "error", err)
		return opts.defaultDecision("approval notification failed")
	}

	verdicts := make(chan verdict, 3)

	if sub != nil {
		go func() {
			for row := range sub.Updates() {
				if !row.Resolved() {
					continue
				}
				verdicts <- verdict{
					source:   sourceRemote,
					approved: row.Status == store.StatusApproved,
					timedOut: row.Status == store.StatusTimeout,
				}
				return
			}
		}()
	}

	if opts.ttyIn != nil {
		go promptLoop(ctx, opts.ttyIn, opts.ttyOut, masked, v.Reason, verdicts)
	} else {
		cancelTTY, ttyErr := promptTTY(ctx, opts.TTYPath, masked, v.Reason, verdicts)
		if ttyErr != nil {
			slog.Debug("no local terminal, remote approval only", "error", ttyErr)
		}
		if cancelTTY != nil {
			defer cancelTTY()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case got := <-verdicts:
		return opts.decisionFor(ctx, id, got)
	case <-timer.C:
		opts.closeOut(id, store.StatusTimeout, "timeout")
		return opts.defaultDecision(fmt.Sprintf("approval timed out after %s", timeout))
	case <-ctx.Done():
		opts.closeOut(id, store.StatusTimeout, "timeout")
		return opts.defaultDecision("approval interrupted")
	}
}

func (o Options) decisionFor(ctx context.Context, id string, got verdict) Decision {
	switch {
	case got.source == sourceTTY && got.approved:
		// Record the local answer under its real status so the remote
		// prompt goes dead and the audit row tells the truth.
		o.closeOut(id, store.StatusApproved, "local")
		return Decision{Decision: DecisionAllow, Reason: "Approved at local terminal"}
	case got.source == sourceTTY:
		o.closeOut(id, store.StatusRejected, "local")
		return Decision{Decision: DecisionDeny, Reason: "Rejected at local terminal"}
	case got.timedOut:
		return o.defaultDecision("approval timed out")
	case got.approved:
		return Decision{Decision: DecisionAllow, Reason: "Approved via " + o.Notifier.Name()}
	default:
		return Decision{Decision: DecisionDeny, Reason: "Rejected via " + o.Notifier.Name()}
	}
}

// defaultDecision applies rules.defaultAction when no affirmative human
// verdict arrived.
func (o Options) defaultDecision(cause string) Decision {
	if o.Config.Rules.DefaultAction == config.ActionAllow {
		return Decision{Decision: DecisionAllow, Reason: fmt.Sprintf("Allowed by default action (%s)", cause)}
	}
	return Decision{Decision: DecisionDeny, Reason: fmt.Sprintf("Denied by default action (%s)", cause)}
}

// closeOut resolves the pending row best-effort. A fresh context:
// the hook's own context may already be cancelled.
func (o Options) closeOut(id string, status store.Status, resolvedBy string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Store.CloseOut(ctx, id, status, resolvedBy); err != nil {
		slog.Debug("could not close out request", "request_id", id, "error", err)
	}
}
