package mailer

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestSMTPMailerSend(t *testing.T) {
	var gotAddr string
	var gotTo, gotSubject []string
	var gotBody bytes.Buffer
	var hasDeadline bool

	m := NewSMTPMailer("mail.example.com:587", "bot", "pw", "nudge@example.com", time.Second).
		WithSendFunc(func(ctx context.Context, c *mail.Client, msg *mail.Msg) error {
			_, hasDeadline = ctx.Deadline()
			gotAddr = c.ServerAddr()
			gotTo = msg.GetToString()
			gotSubject = msg.GetGenHeader(mail.HeaderSubject)
			_, err := msg.WriteTo(&gotBody)
			return err
		})

	err := m.Send(context.Background(), "ta@example.com", "Escalation", "line one\nline two")
	require.NoError(t, err)

	assert.True(t, hasDeadline)
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, []string{"<ta@example.com>"}, gotTo)
	assert.Equal(t, []string{"Escalation"}, gotSubject)
	assert.Contains(t, gotBody.String(), "line one")
}

func TestSMTPMailerErrors(t *testing.T) {
	ctx := context.Background()

	err := NewSMTPMailer("", "", "", "x@example.com", 0).Send(ctx, "ta@example.com", "s", "b")
	assert.Error(t, err)

	err = NewSMTPMailer("no-port", "", "", "x@example.com", 0).Send(ctx, "ta@example.com", "s", "b")
	assert.Error(t, err)

	m := NewSMTPMailer("localhost:25", "", "", "x@example.com", 0).
		WithSendFunc(func(context.Context, *mail.Client, *mail.Msg) error {
			return errors.New("relay down")
		})
	err = m.Send(ctx, "ta@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")

	err = m.Send(ctx, "ta@example.com\r\nBcc: x@evil", "s", "b")
	assert.Error(t, err)
	err = m.Send(ctx, "ta@example.com", "s\r\nBcc: x@evil", "b")
	assert.Error(t, err)
}

func TestSMTPMailerRelayUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	start := time.Now()
	err = NewSMTPMailer(addr, "", "", "x@example.com", time.Second).
		Send(context.Background(), "ta@example.com", "s", "b")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
