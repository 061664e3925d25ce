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

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/sirupsen/logrus"
)

// SMSConfig configures SMSGateway.
type SMSConfig struct {
	Endpoint string
	APIKey   string
	Sender   string
	// Template is a fmt format with one %s for the code.
	Template string
	DryRun   bool
	Timeout  time.Duration
}

// SMSGateway posts codes to an HTTP SMS provider as a form and expects a
// JSON reply with code 0 on success.
type SMSGateway struct {
	cfg    SMSConfig
	client *http.Client
	log    logrus.FieldLogger
}

type gatewayReply struct {
	Code int `json:"code"`
	Data struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
	Message string `json:"message"`
}

// NewSMSGateway builds a gateway. An empty or "dry-run" API key forces
// dry-run mode.
func NewSMSGateway(cfg SMSConfig, log logrus.FieldLogger) *SMSGateway {
	if cfg.Template == "" {
		cfg.Template = "Your verification code is %s"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIKey == "" || cfg.APIKey == "dry-run" {
		cfg.DryRun = true
	}
	return &SMSGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    internal.LoggerOrDiscard(log),
	}
}

// SendCode texts code to phone.
func (g *SMSGateway) SendCode(ctx context.Context, phone, code string, _ time.Duration) error {
	text := fmt.Sprintf(g.cfg.Template, code)
	if g.cfg.DryRun {
		g.log.WithFields(logrus.Fields{"to": phone, "sender": g.cfg.Sender, "text": text}).Debug("dry-run sms")
		return nil
	}

	form := url.Values{
		"apiKey":    {g.cfg.APIKey},
		"recipient": {phone},
		"text":      {text},
	}
	if g.cfg.Sender != "" {
		form.Set("from", g.cfg.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read sms response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var reply gatewayReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("parse sms response: %w", err)
	}
	if reply.Code != 0 {
		return fmt.Errorf("sms gateway returned error code %d: %s", reply.Code, reply.Message)
	}

	g.log.WithFields(logrus.Fields{"to": phone, "message_id": reply.Data.MessageID}).Debug("sms sent")
	return nil
}
