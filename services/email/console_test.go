package emailsvc

import (
	"bytes"
	"context"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/malalamiko/core"
)

func TestConsoleService_Send(t *testing.T) {
	out := new(bytes.Buffer)
	svc := NewConsoleService(core.NewTestConfig(), log.New(out, "", 0))
	to := []mail.Address{{Name: "Amani", Address: "amani@test.cd"}, {Address: "neema@test.cd"}}

	require.NoError(t, svc.Send(context.Background(), &core.EmailMessage{To: to, Subject: "Hello", BodyStr: "plain body"}))

	assert.Contains(t, out.String(), "Subject: [Malalamiko] Hello")
	assert.Contains(t, out.String(), `To: "Amani" <amani@test.cd>, <neema@test.cd>`)
	assert.Contains(t, out.String(), "multipart/alternative")
	assert.Contains(t, out.String(), "plain body")

	sent := svc.Outbox()
	require.Len(t, sent, 1)
	assert.Equal(t, "plain body", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.Outbox())
}

func TestConsoleService_Send_skipped(t *testing.T) {
	svc := NewSilentConsoleService(core.NewTestConfig())
	to := []mail.Address{{Address: "amani@test.cd"}}

	tests := []struct {
		name string
		msg  *core.EmailMessage
	}{
		{name: "no recipients", msg: &core.EmailMessage{Subject: "Hello", BodyStr: "body"}},
		{name: "no content", msg: &core.EmailMessage{To: to, Subject: "Hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, svc.Send(context.Background(), tt.msg))
		})
	}
	assert.Empty(t, svc.Outbox())
}

func TestConsoleService_Send_errors(t *testing.T) {
	svc := NewSilentConsoleService(core.NewTestConfig())
	to := []mail.Address{{Address: "amani@test.cd"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, &core.EmailMessage{To: to, BodyStr: "body"}), context.Canceled)

	err := svc.Send(context.Background(), &core.EmailMessage{To: to, TemplateName: "nope"})
	assert.ErrorContains(t, err, `email template "nope" not found`)
	assert.Empty(t, svc.Outbox())
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig())
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Amani", Address: "amani@test.cd"}},
		Subject:     "Complaint resolved",
		TextContent: "done",
	})

	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Malalamiko] Complaint resolved", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "amani@test.cd", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "done", m.Content[0].Value)
}
