// Package mailer sends escalation email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultTimeout bounds the relay dial when none is configured.
const DefaultTimeout = 10 * time.Second

// SendFunc delivers a built message through a configured client.
type SendFunc func(ctx context.Context, client *mail.Client, msg *mail.Msg) error

// SMTPMailer delivers plain-text mail through a relay.
type SMTPMailer struct {
	addr     string
	username string
	password string
	from     string
	timeout  time.Duration
	send     SendFunc
}

// NewSMTPMailer creates a mailer for the relay at addr ("host:port").
func NewSMTPMailer(addr, username, password, from string, timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SMTPMailer{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		timeout:  timeout,
		send: func(ctx context.Context, client *mail.Client, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}
}

// WithSendFunc replaces the transport, used by tests.
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

// Send delivers one message. The whole exchange is bounded by ctx and the
// mailer timeout, whichever ends first.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.addr == "" {
		return fmt.Errorf("smtp relay is not configured")
	}
	if strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return err
	}
	client, err := m.newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.send(ctx, client, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *SMTPMailer) newClient() (*mail.Client, error) {
	host, portStr, err := net.SplitHostPort(m.addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", m.addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp port %q: %w", portStr, err)
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password))
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client, nil
}
