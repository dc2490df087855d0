package alert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

type recordingChat struct {
	posts []core.ChatPost
	err   error
}

func (r *recordingChat) Send(_ context.Context, post core.ChatPost) error {
	r.posts = append(r.posts, post)
	return r.err
}

type recordingMail struct {
	mails []core.OutboundMail
	err   error
}

func (r *recordingMail) Send(_ context.Context, mail core.OutboundMail) error {
	r.mails = append(r.mails, mail)
	return r.err
}

func newTestAlerter(t *testing.T, chat *recordingChat, mail *recordingMail, number string) *Alerter {
	logger := zaptest.NewLogger(t)
	return NewAlerter(chat, mail, number, []string{"ops@example.org", "admin@example.org"}, utils.NewTextProcessor(logger), logger)
}

func TestAlert(t *testing.T) {
	chat := &recordingChat{}
	a := newTestAlerter(t, chat, &recordingMail{}, "+490000")

	a.Alert(context.Background(), "unknown pattern")
	require.Len(t, chat.posts, 1)
	assert.Equal(t, "+490000", chat.posts[0].Recipient.Number)
	assert.Empty(t, chat.posts[0].Recipient.GroupID)
	assert.Equal(t, "unknown pattern", chat.posts[0].Text)

	a.Alert(context.Background(), strings.Repeat("x", MaxAlertSize+10))
	require.Len(t, chat.posts, 2)
	assert.True(t, strings.HasPrefix(chat.posts[1].Text, strings.Repeat("x", MaxAlertSize)))
	assert.Contains(t, chat.posts[1].Text, "truncated")
}

func TestAlertWithoutAdminNumber(t *testing.T) {
	chat := &recordingChat{}
	newTestAlerter(t, chat, nil, "").Alert(context.Background(), "x")
	assert.Empty(t, chat.posts)
}

func TestAlertByMailContinuesOnFailure(t *testing.T) {
	mail := &recordingMail{err: errors.New("smtp down")}
	a := newTestAlerter(t, &recordingChat{}, mail, "")

	a.AlertByMail(context.Background(), "bridge ERROR", "stderr output")
	require.Len(t, mail.mails, 2)
	assert.Equal(t, "ops@example.org", mail.mails[0].To)
	assert.Equal(t, "admin@example.org", mail.mails[1].To)
	assert.Equal(t, "bridge ERROR", mail.mails[1].Subject)
}
