package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioNotifier sends approval prompts as SMS. SMS has no buttons, so
// the message instructs the human to reply with a keyword; the reply
// lands on the webhook service as a Twilio form post.
type TwilioNotifier struct {
	cfg     config.TwilioConfig
	apiBase string
	http    *http.Client
}

var _ Notifier = (*TwilioNotifier)(nil)

func NewTwilioNotifier(cfg config.TwilioConfig) *TwilioNotifier {
	return &TwilioNotifier{
		cfg:     cfg,
		apiBase: twilioAPIBase,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *TwilioNotifier) Name() string { return "Twilio SMS" }

func (n *TwilioNotifier) ValidateConfig() error {
	switch {
	case n.cfg.AccountSID == "":
		return fmt.Errorf("twilio.accountSid is required")
	case n.cfg.AuthToken == "":
		return fmt.Errorf("twilio.authToken is required")
	case n.cfg.FromNumber == "":
		return fmt.Errorf("twilio.fromNumber is required")
	case n.cfg.ToNumber == "":
		return fmt.Errorf("twilio.toNumber is required")
	}
	return nil
}

// sendSMS posts to the Messages endpoint with HTTP basic auth.
func (n *TwilioNotifier) sendSMS(ctx context.Context, body string) error {
	form := url.Values{}
	form.Set("From", n.cfg.FromNumber)
	form.Set("To", n.cfg.ToNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", n.apiBase, n.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(n.cfg.AccountSID, n.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %s", masker.MaskSecret(err.Error(), n.cfg.AuthToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := masker.MaskSecret(strings.TrimSpace(string(data)), n.cfg.AuthToken)
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func (n *TwilioNotifier) SendNotification(ctx context.Context, notif Notification) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}
	// SMS segments are 160 chars; keep the command short and the reply
	// instructions intact.
	body := fmt.Sprintf("[%s] Command approval needed: %s (%s). Reply APPROVE %s or REJECT %s",
		severityLabel(notif.Severity),
		truncateCommand(notif.Command, 120),
		notif.Reason,
		notif.RequestID, notif.RequestID)
	return n.sendSMS(ctx, body)
}

func (n *TwilioNotifier) SendTest(ctx context.Context) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}
	return n.sendSMS(ctx, "cmdgate test message - your approval channel is working.")
}

// ProbeConnection fetches the account resource to confirm the credentials
// authenticate.
func (n *TwilioNotifier) ProbeConnection(ctx context.Context) (string, error) {
	if err := n.ValidateConfig(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s.json", n.apiBase, n.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(n.cfg.AccountSID, n.cfg.AuthToken)

	resp, err := n.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio probe: %s", masker.MaskSecret(err.Error(), n.cfg.AuthToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twilio probe: status %d", resp.StatusCode)
	}

	var account struct {
		FriendlyName string `json:"friendly_name"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return "", fmt.Errorf("twilio probe: %w", err)
	}
	return fmt.Sprintf("account %q (%s)", account.FriendlyName, account.Status), nil
}
