// Package alert notifies the operator about processing anomalies.
package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

// MaxAlertSize caps the text of a single alert in bytes
const MaxAlertSize = 4000

// Alerter sends alerts to the admin chat number and, for transport
// failures, to the admin mail addresses
type Alerter struct {
	chat        ports.ChatSender
	mail        ports.MailSender
	adminNumber string
	adminMails  []string
	text        *utils.TextProcessor
	logger      *zap.Logger
}

// NewAlerter creates a new Alerter. Either transport may be nil.
func NewAlerter(chat ports.ChatSender, mail ports.MailSender, adminNumber string, adminMails []string, text *utils.TextProcessor, logger *zap.Logger) *Alerter {
	return &Alerter{
		chat:        chat,
		mail:        mail,
		adminNumber: adminNumber,
		adminMails:  adminMails,
		text:        text,
		logger:      logger,
	}
}

// Alert logs text and posts it to the admin number. Delivery failures are
// logged only.
func (a *Alerter) Alert(ctx context.Context, text string) {
	a.logger.Error("Administrative alert", zap.String("alert", text))
	if a.chat == nil || a.adminNumber == "" {
		return
	}

	post := core.ChatPost{
		Recipient: core.ChatRecipient{Number: a.adminNumber},
		Text:      a.text.TruncateText(text, MaxAlertSize),
	}
	if err := a.chat.Send(ctx, post); err != nil {
		a.logger.Error("Failed to send alert to admin number", zap.Error(err))
	}
}

// AlertByMail sends subject and body to every admin mail address
func (a *Alerter) AlertByMail(ctx context.Context, subject, body string) {
	a.logger.Error("Administrative mail alert",
		zap.String("subject", subject),
		zap.Int("recipients", len(a.adminMails)))
	if a.mail == nil {
		return
	}

	for _, addr := range a.adminMails {
		mail := core.OutboundMail{
			To:      addr,
			Subject: subject,
			Body:    body,
		}
		if err := a.mail.Send(ctx, mail); err != nil {
			a.logger.Error("Failed to send alert mail",
				zap.String("to", addr),
				zap.Error(err))
		}
	}
}
