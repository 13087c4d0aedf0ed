package smtp

import (
	"bytes"
	"context"
	"fmt"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/pkg/mailmsg"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// Config holds the submission server account
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Sender is an SMTP mail transport
type Sender struct {
	cfg  Config
	from *mail.Address
}

func NewSender(cfg Config, from *mail.Address) *Sender {
	return &Sender{cfg: cfg, from: from}
}

// Send submits one message. STARTTLS is used when the server offers it.
func (s *Sender) Send(ctx context.Context, to, subject, body string, attachments []maildomain.Attachment) error {
	raw, err := mailmsg.Compose(s.from, to, subject, body, attachments)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	rcpt := maildomain.AddressOf(to)
	if err := gosmtp.SendMail(addr, auth, s.from.Address, []string{rcpt}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("unable to send message via %s: %w", addr, err)
	}
	return nil
}
