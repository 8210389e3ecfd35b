package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/cmdgate/internal/notify"
	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// handleSlack terminates Block Kit button presses. Slack signs the raw
// body (v0 scheme, ±5 minute timestamp skew) and the verifier checks
// both before the payload is trusted.
func (s *Server) handleSlack(w http.ResponseWriter, r *http.Request) {
	verifier, err := slack.NewSecretsVerifier(r.Header, s.cfg.SlackSigningSecret)
	if err != nil {
		http.Error(w, "missing signature headers", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		http.Error(w, "verifier error", http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		slog.Warn("slack signature rejected", "ip", callerIP(r))
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	// Interactions arrive form-encoded with the JSON in `payload`.
	values, err := parseForm(body)
	if err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var ic slack.InteractionCallback
	if err := json.Unmarshal([]byte(values.Get("payload")), &ic); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if ic.Type != slack.InteractionTypeBlockActions || len(ic.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := ic.ActionCallback.BlockActions[0]
	var approve bool
	switch action.ActionID {
	case notify.SlackActionApprove:
		approve = true
	case notify.SlackActionReject:
		approve = false
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	resolvedBy := ic.User.Name
	if resolvedBy == "" {
		resolvedBy = ic.User.ID
	}

	row, out := s.apply(r.Context(), humanVerdict{
		requestID:  action.Value,
		approve:    approve,
		resolvedBy: "slack:" + resolvedBy,
	})

	// Replying to the interaction POST replaces the original message, so
	// the buttons disappear once someone answers.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"replace_original": true,
		"text":             ackText(row, out, approve) + slackDetail(row, out),
	})
}

// slackDetail appends the command to resolution acks so the channel keeps
// a record of what was decided.
func slackDetail(row store.ApprovalRequest, out outcome) string {
	if out != outcomeResolved || row.Command == "" {
		return ""
	}
	return ":\n```" + row.Command + "```"
}

// parseForm decodes an already-read form body.
func parseForm(body []byte) (url.Values, error) {
	return url.ParseQuery(string(body))
}
