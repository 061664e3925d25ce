package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Dialer sends prepared messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailConfig configures Mailer.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Subject  string
	DryRun   bool
}

// Mailer sends verification codes over SMTP.
type Mailer struct {
	dialer  Dialer
	from    string
	subject string
	dryRun  bool
	log     logrus.FieldLogger
}

// NewMailer dials cfg.Host on every send.
func NewMailer(cfg MailConfig, log logrus.FieldLogger) *Mailer {
	return NewMailerWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg, log)
}

// NewMailerWithDialer uses d instead of an SMTP dialer.
func NewMailerWithDialer(d Dialer, cfg MailConfig, log logrus.FieldLogger) *Mailer {
	subject := cfg.Subject
	if subject == "" {
		subject = "Your verification code"
	}
	return &Mailer{
		dialer:  d,
		from:    cfg.From,
		subject: subject,
		dryRun:  cfg.DryRun,
		log:     internal.LoggerOrDiscard(log),
	}
}

var codeTemplate = template.Must(template.New("code").Parse(`<h3>Verification code</h3>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minute(s). If you did not request it, ignore this email.</p>
`))

// SendCode mails code to the address.
func (m *Mailer) SendCode(ctx context.Context, to, code string, expiry time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dryRun {
		m.log.WithFields(logrus.Fields{"to": to, "code": code}).Debug("dry-run email")
		return nil
	}

	var body strings.Builder
	minutes := int((expiry + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if err := codeTemplate.Execute(&body, struct {
		Code    string
		Minutes int
	}{code, minutes}); err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
