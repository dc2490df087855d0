// Package format renders envelopes and messages into the literal layout of
// the opposite transport.
package format

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// Separator frames the message text in both directions
const Separator = "===================="

// NoText replaces the text of envelopes that carry none
const NoText = "[no text]"

const subjectTimeLayout = "2006-01-02 15:04:05"

// MailFormatter renders chat envelopes as mails
type MailFormatter struct {
	label  string
	loc    *time.Location
	logger *zap.Logger
}

// NewMailFormatter creates a new MailFormatter. label names the chat group
// in subjects and bodies.
func NewMailFormatter(label string, loc *time.Location, logger *zap.Logger) *MailFormatter {
	if loc == nil {
		loc = time.Local
	}
	return &MailFormatter{
		label:  label,
		loc:    loc,
		logger: logger,
	}
}

// Subject renders the mail subject of env
func (f *MailFormatter) Subject(env core.Envelope) string {
	ts := time.UnixMilli(env.Timestamp).In(f.loc).Format(subjectTimeLayout)
	return f.label + " / " + ts + " / " + env.Source
}

// Render turns an enriched envelope into a mail without recipient
func (f *MailFormatter) Render(env core.Envelope) core.OutboundMail {
	var body strings.Builder
	body.WriteString("Date: " + core.FormatMillis(env.Timestamp, f.loc) + "\n")
	body.WriteString("From: " + env.Source + "\n")
	body.WriteString("To: " + f.label + " signal chat\n\n")
	body.WriteString(Separator + "\n\n")

	if env.Text != nil {
		body.WriteString(*env.Text + "\n")
	} else {
		body.WriteString(NoText + "\n")
	}
	body.WriteString("\n" + Separator)

	var files []core.MailAttachment
	for _, a := range env.Attachments {
		name := a.Name()
		switch {
		case a.Oversized:
			body.WriteString("\n[Attachment " + name + " larger than 10MB, not sent]\n")
		case a.Base64 == nil:
			body.WriteString("\n[Attachment " + name + " unavailable, not sent]\n")
		default:
			data, err := base64.StdEncoding.DecodeString(*a.Base64)
			if err != nil {
				f.logger.Error("Invalid attachment payload",
					zap.String("id", a.ID),
					zap.Error(err))
				body.WriteString("\n[Attachment " + name + " unavailable, not sent]\n")
				continue
			}
			body.WriteString("\n[Attachment: " + name + "]\n")
			files = append(files, core.MailAttachment{
				Filename:    name,
				ContentType: attachmentType(a),
				Data:        data,
			})
		}
	}

	return core.OutboundMail{
		Subject:     f.Subject(env),
		Body:        body.String(),
		Attachments: files,
	}
}

func attachmentType(a core.ChatAttachment) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if t := mime.TypeByExtension(filepath.Ext(a.Name())); t != "" {
		return t
	}
	return "application/octet-stream"
}
