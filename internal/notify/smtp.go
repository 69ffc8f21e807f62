package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/taskhub/apiserver/config"
)

// SMTPNotifier sends each message over a fresh SMTP connection.
type SMTPNotifier struct {
	from   string
	client *mail.Client
	send   func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	n := &SMTPNotifier{from: cfg.From, client: client}
	n.send = func(ctx context.Context, msg *mail.Msg) error {
		return n.client.DialAndSendWithContext(ctx, msg)
	}
	return n, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(n.from, msg)
	if err != nil {
		return err
	}
	if err := n.send(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
