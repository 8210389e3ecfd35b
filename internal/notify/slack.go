package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
)

// Button action ids the webhook service matches on when Slack posts the
// interaction payload back.
const (
	SlackActionApprove = "approve_command"
	SlackActionReject  = "reject_command"
)

// SlackNotifier posts approval prompts to a Slack incoming webhook as
// Block Kit messages with approve/reject buttons. The optional bot token
// is only used to probe the workspace identity.
type SlackNotifier struct {
	webhookURL string
	botToken   string
}

var _ Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{webhookURL: cfg.WebhookURL, botToken: cfg.BotToken}
}

func (n *SlackNotifier) Name() string { return "Slack" }

func (n *SlackNotifier) ValidateConfig() error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack.webhookUrl is required")
	}
	return nil
}

func (n *SlackNotifier) SendNotification(ctx context.Context, notif Notification) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}

	header := fmt.Sprintf("%s command approval needed", severityLabel(notif.Severity))
	body := fmt.Sprintf("```%s```\n*Reason:* %s\n*Directory:* %s\n*Request:* `%s`",
		truncateCommand(notif.Command, 1000), notif.Reason, notif.Cwd, notif.RequestID)

	msg := &slack.WebhookMessage{
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, "*"+header+"*\n"+body, false, false),
				nil, nil),
			slack.NewActionBlock("approval_actions",
				slack.NewButtonBlockElement(SlackActionApprove, notif.RequestID,
					slack.NewTextBlockObject(slack.PlainTextType, "Approve", true, false)).
					WithStyle(slack.StylePrimary),
				slack.NewButtonBlockElement(SlackActionReject, notif.RequestID,
					slack.NewTextBlockObject(slack.PlainTextType, "Reject", true, false)).
					WithStyle(slack.StyleDanger),
			),
		}},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		// The webhook URL path is itself the credential; scrub it before
		// the error reaches a log line.
		return fmt.Errorf("slack webhook post: %s", masker.MaskSecret(err.Error(), n.webhookURL, n.botToken))
	}
	return nil
}

func (n *SlackNotifier) SendTest(ctx context.Context) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}
	msg := &slack.WebhookMessage{Text: "cmdgate test message — your approval channel is working."}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook post: %s", masker.MaskSecret(err.Error(), n.webhookURL, n.botToken))
	}
	return nil
}

// ProbeConnection calls auth.test when a bot token is configured;
// otherwise it only reports that the webhook URL is set. Incoming
// webhooks have no identity endpoint.
func (n *SlackNotifier) ProbeConnection(ctx context.Context) (string, error) {
	if err := n.ValidateConfig(); err != nil {
		return "", err
	}
	if n.botToken == "" {
		return "incoming webhook configured (no bot token to probe)", nil
	}
	resp, err := slack.New(n.botToken).AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack auth.test: %s", masker.MaskSecret(err.Error(), n.botToken))
	}
	return fmt.Sprintf("bot %s in workspace %s", resp.User, resp.Team), nil
}
