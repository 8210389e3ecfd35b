package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

// handleTelegram terminates inline-keyboard callback queries. Telegram
// echoes the secret token configured at setWebhook time in a header;
// that is the whole authentication story.
func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.TelegramWebhookSecret)) != 1 {
		slog.Warn("telegram secret token rejected", "ip", callerIP(r))
		http.Error(w, "bad secret token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var update telego.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	cq := update.CallbackQuery
	if cq == nil {
		// Not a button press; ack so Telegram stops redelivering.
		w.WriteHeader(http.StatusOK)
		return
	}

	verb, requestID, ok := strings.Cut(cq.Data, ":")
	if !ok || (verb != "approve" && verb != "reject") {
		w.WriteHeader(http.StatusOK)
		return
	}
	approve := verb == "approve"

	// Handle derivation: username, then display name, then the opaque id.
	resolvedBy := cq.From.Username
	if resolvedBy == "" {
		resolvedBy = cq.From.FirstName
	}
	if resolvedBy == "" {
		resolvedBy = strconv.FormatInt(cq.From.ID, 10)
	}

	row, out := s.apply(r.Context(), humanVerdict{
		requestID:  requestID,
		approve:    approve,
		resolvedBy: "telegram:" + resolvedBy,
	})

	// Webhook-reply form of answerCallbackQuery: no bot token needed on
	// this side, Telegram executes the method from the response body.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"method":            "answerCallbackQuery",
		"callback_query_id": cq.ID,
		"text":              ackText(row, out, approve),
		"show_alert":        out == outcomeForbidden || out == outcomeExpired,
	})
}
