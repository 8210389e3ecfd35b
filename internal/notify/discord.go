package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
)

// DiscordNotifier posts approval prompts to a channel with message
// component buttons. REST-only: no gateway session is opened, button
// presses arrive at the webhook service as signed interaction posts.
type DiscordNotifier struct {
	session   *discordgo.Session
	token     string
	channelID string
}

var _ Notifier = (*DiscordNotifier)(nil)

func NewDiscordNotifier(cfg config.DiscordConfig) (*DiscordNotifier, error) {
	n := &DiscordNotifier{token: cfg.BotToken, channelID: cfg.ChannelID}
	if cfg.BotToken != "" {
		session, err := discordgo.New("Bot " + cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord session: %w", err)
		}
		n.session = session
	}
	return n, nil
}

func (n *DiscordNotifier) Name() string { return "Discord" }

func (n *DiscordNotifier) ValidateConfig() error {
	if n.session == nil {
		return fmt.Errorf("discord.botToken is required")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord.channelId is required")
	}
	return nil
}

func (n *DiscordNotifier) SendNotification(ctx context.Context, notif Notification) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}

	content := fmt.Sprintf("**%s command approval needed**\n```%s```\nReason: %s\nDirectory: %s\nRequest: `%s`",
		severityLabel(notif.Severity),
		truncateCommand(notif.Command, 1000),
		notif.Reason, notif.Cwd, notif.RequestID)

	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Content: content,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: "approve:" + notif.RequestID,
				},
				discordgo.Button{
					Label:    "Reject",
					Style:    discordgo.DangerButton,
					CustomID: "reject:" + notif.RequestID,
				},
			}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return nil
}

func (n *DiscordNotifier) SendTest(ctx context.Context) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}
	_, err := n.session.ChannelMessageSend(n.channelID,
		"cmdgate test message — your approval channel is working.",
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return nil
}

func (n *DiscordNotifier) ProbeConnection(ctx context.Context) (string, error) {
	if n.session == nil {
		return "", fmt.Errorf("discord.botToken is required")
	}
	user, err := n.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord identity: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return "bot " + user.Username, nil
}
