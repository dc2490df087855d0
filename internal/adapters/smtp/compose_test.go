package smtp

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

var composeTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestComposePlain(t *testing.T) {
	raw, err := Compose("bridge@example.org", core.OutboundMail{
		To:      "alice@example.org",
		Subject: "Radler / 2024-05-01 12:00:00 / Jörg",
		Body:    "Grüße\n",
	}, composeTime)
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Radler / 2024-05-01 12:00:00 / Jörg", subject)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.org", to[0].Address)

	date, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, composeTime.Equal(date))
	assert.Contains(t, r.Header.Get("Message-Id"), "@example.org>")

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Grüße\n", string(body))
}

func TestComposeWithAttachments(t *testing.T) {
	raw, err := Compose("bridge@example.org", core.OutboundMail{
		To:      "alice@example.org",
		Subject: "photos",
		Body:    "see attached",
		Attachments: []core.MailAttachment{
			{Filename: "a.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			{Filename: "b.bin", Data: []byte{0, 1, 2}},
		},
	}, composeTime)
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	var texts []string
	files := map[string][]byte{}
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part.Body)
		require.NoError(t, err)

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			texts = append(texts, string(data))
		case *mail.AttachmentHeader:
			name, err := h.Filename()
			require.NoError(t, err)
			files[name] = data
		}
	}

	assert.Equal(t, []string{"see attached"}, texts)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, files["a.png"])
	assert.Equal(t, []byte{0, 1, 2}, files["b.bin"])
}

func TestNewSenderValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewSender(Options{Port: 465}, logger)
	assert.Error(t, err)

	s, err := NewSender(Options{Host: "smtp.example.org", Port: 465, Username: "bridge@example.org"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "bridge@example.org", s.opts.From)
}
