package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/bobmcallan/stacker/internal/common"
)

type deliverFunc func(ctx context.Context, msg *mail.Msg) error

// EmailSender delivers plain-text mail through an SMTP relay.
type EmailSender struct {
	from    string
	deliver deliverFunc
}

// NewEmailSender returns nil when no SMTP host is configured.
func NewEmailSender(cfg common.NotifyConfig) *EmailSender {
	if cfg.SMTPHost == "" {
		return nil
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &EmailSender{
		from: cfg.From,
		deliver: func(ctx context.Context, msg *mail.Msg) error {
			client, err := mail.NewClient(cfg.SMTPHost, opts...)
			if err != nil {
				return fmt.Errorf("smtp client: %w", err)
			}
			return client.DialAndSendWithContext(ctx, msg)
		},
	}
}

// newMessage builds a UTF-8 text message; the subject is MIME-encoded.
func (s *EmailSender) newMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Send writes one message. ctx bounds dialing and the SMTP exchange.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.newMessage(to, subject, body)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
