package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

const attachmentsMarker = "\nAttachments:\n<"

var headerLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// ChatFormatter renders mail messages as chat texts
type ChatFormatter struct{}

// NewChatFormatter creates a new ChatFormatter
func NewChatFormatter() *ChatFormatter {
	return &ChatFormatter{}
}

// Render builds the chat text of msg. Every attachment is returned for a
// separate follow-up post.
func (f *ChatFormatter) Render(msg *core.Message) core.ChatText {
	var b strings.Builder
	b.WriteString("Subject: " + oneLine(msg.Subject) + "\n")
	b.WriteString("Date: " + msg.Date.Format(core.MailDateLayout) + "\n")
	b.WriteString("From: " + oneLine(msg.From) + "\n")
	if msg.Cc != nil {
		b.WriteString("Cc: " + oneLine(strings.Join(msg.Cc, ", ")) + "\n")
	}
	if msg.Bcc != nil {
		b.WriteString("Bcc: " + oneLine(strings.Join(msg.Bcc, ", ")) + "\n")
	}
	b.WriteString("To: " + oneLine(msg.To) + "\n")
	b.WriteString(Separator + "\n\n")
	b.WriteString(strings.Join(msg.Body, "\n\n") + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, len(msg.Attachments))
		for i, a := range msg.Attachments {
			names[i] = a.Filename
		}
		b.WriteString("Attachments:\n<" + strings.Join(names, ">\n<") + ">")
	}

	return core.ChatText{
		Text:        b.String(),
		Attachments: msg.Attachments,
	}
}

// FollowUpText is the text posted together with an attachment
func FollowUpText(a core.MailAttachment) string {
	return "<" + a.Filename + ">"
}

// oneLine keeps a header value on its line
func oneLine(s string) string {
	return headerLineBreaks.Replace(s)
}

// ForwardedMail is the header block and body recovered from a chat text
type ForwardedMail struct {
	Subject     string
	Date        time.Time
	From        string
	To          string
	Cc          []string
	Bcc         []string
	Body        string
	Attachments []string
}

// ParseChatText reverses ChatFormatter.Render
func ParseChatText(text string) (*ForwardedMail, error) {
	header, rest, ok := strings.Cut(text, Separator+"\n\n")
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", core.ErrParse)
	}

	fm := &ForwardedMail{}
	seen := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSuffix(header, "\n"), "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			key, value = strings.TrimSuffix(line, ":"), ""
		}
		seen[key] = true
		switch key {
		case "Subject":
			fm.Subject = value
		case "Date":
			date, err := time.Parse(core.MailDateParseLayout, value)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid date %q: %v", core.ErrParse, value, err)
			}
			fm.Date = date
		case "From":
			fm.From = value
		case "To":
			fm.To = value
		case "Cc":
			fm.Cc = splitList(value)
		case "Bcc":
			fm.Bcc = splitList(value)
		default:
			return nil, fmt.Errorf("%w: unexpected header line %q", core.ErrParse, line)
		}
	}
	for _, required := range []string{"Subject", "Date", "From", "To"} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: missing %s line", core.ErrParse, required)
		}
	}

	if idx := strings.LastIndex(rest, attachmentsMarker); idx >= 0 && strings.HasSuffix(rest, ">") {
		list := rest[idx+len(attachmentsMarker) : len(rest)-1]
		fm.Attachments = strings.Split(list, ">\n<")
		rest = rest[:idx+1]
	}
	fm.Body = strings.TrimSuffix(rest, "\n")

	return fm, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ", ")
}
