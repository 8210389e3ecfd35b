package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// handleDiscord terminates interaction posts. Discord signs every post
// with the application's Ed25519 key and requires an exact PING/PONG
// handshake before it will deliver real interactions.
func (s *Server) handleDiscord(w http.ResponseWriter, r *http.Request) {
	pubKey, err := hex.DecodeString(s.cfg.DiscordPublicKey)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		slog.Error("discord public key misconfigured")
		http.Error(w, "server misconfigured", http.StatusInternalServerError)
		return
	}
	if !discordgo.VerifyInteraction(r, ed25519.PublicKey(pubKey)) {
		slog.Warn("discord signature rejected", "ip", callerIP(r))
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	var interaction discordgo.Interaction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		http.Error(w, "bad interaction", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch interaction.Type {
	case discordgo.InteractionPing:
		json.NewEncoder(w).Encode(discordgo.InteractionResponse{
			Type: discordgo.InteractionResponsePong,
		})
		return
	case discordgo.InteractionMessageComponent:
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	verb, requestID, ok := strings.Cut(interaction.MessageComponentData().CustomID, ":")
	if !ok || (verb != "approve" && verb != "reject") {
		w.WriteHeader(http.StatusOK)
		return
	}
	approve := verb == "approve"

	var user *discordgo.User
	if interaction.Member != nil && interaction.Member.User != nil {
		user = interaction.Member.User
	} else if interaction.User != nil {
		user = interaction.User
	}
	// Handle derivation: username, then display name, then the opaque id.
	resolvedBy := "unknown"
	if user != nil {
		switch {
		case user.Username != "":
			resolvedBy = user.Username
		case user.GlobalName != "":
			resolvedBy = user.GlobalName
		default:
			resolvedBy = user.ID
		}
	}

	row, out := s.apply(r.Context(), humanVerdict{
		requestID:  requestID,
		approve:    approve,
		resolvedBy: "discord:" + resolvedBy,
	})

	// UPDATE_MESSAGE replaces the prompt in place, dropping the buttons.
	json.NewEncoder(w).Encode(discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    ackText(row, out, approve),
			Components: []discordgo.MessageComponent{},
		},
	})
}
