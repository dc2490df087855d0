package core

import (
	"time"
)

// Message represents a decoded mail message
type Message struct {
	ID          string
	Subject     string
	From        string
	To          string
	Cc          []string
	Bcc         []string
	Date        time.Time
	Body        []string
	Attachments []MailAttachment
}

// MailAttachment is a named file carried by a mail message
type MailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RawMail is an undecoded RFC822 message as returned by the mail transport
type RawMail struct {
	UID    uint32
	Sender string
	Raw    []byte
}

// Pattern classifies the shape of a chat envelope
type Pattern int

const (
	PatternUnknown Pattern = iota
	PatternReceipt
	PatternPlain
	PatternQuoteReply
	PatternEmojiReaction
)

// String returns the pattern name used in logs and reports
func (p Pattern) String() string {
	switch p {
	case PatternReceipt:
		return "receipt"
	case PatternPlain:
		return "plain"
	case PatternQuoteReply:
		return "quote_reply"
	case PatternEmojiReaction:
		return "emoji_reaction"
	default:
		return "unknown"
	}
}

// UnknownSource is the source marker for senders missing from the address directory
const UnknownSource = "UNKNOWN"

// Envelope represents a decoded chat event
type Envelope struct {
	Account      string
	Source       string
	SourceNumber string
	SourceUUID   string
	Timestamp    int64
	GroupID      string
	Pattern      Pattern
	Text         *string
	Attachments  []ChatAttachment
	Quote        *Quote
	Reaction     *Reaction
}

// Key identifies the envelope across runs
func (e Envelope) Key() string {
	author := e.SourceUUID
	if author == "" {
		author = e.SourceNumber
	}
	return "chat:" + e.Account + ":" + author + ":" + time.UnixMilli(e.Timestamp).UTC().Format("20060102T150405.000")
}

// Clone returns a copy that shares no slices or pointers with e
func (e Envelope) Clone() Envelope {
	c := e
	if e.Text != nil {
		text := *e.Text
		c.Text = &text
	}
	if e.Attachments != nil {
		c.Attachments = make([]ChatAttachment, len(e.Attachments))
		for i, a := range e.Attachments {
			if a.Base64 != nil {
				payload := *a.Base64
				a.Base64 = &payload
			}
			c.Attachments[i] = a
		}
	}
	if e.Quote != nil {
		q := *e.Quote
		c.Quote = &q
	}
	if e.Reaction != nil {
		r := *e.Reaction
		c.Reaction = &r
	}
	return c
}

// ChatAttachment is an attachment reference inside a chat envelope
type ChatAttachment struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	Base64      *string
	Oversized   bool
}

// Name returns the transport-visible attachment name
func (a ChatAttachment) Name() string {
	if a.Filename != "" {
		return a.Filename
	}
	return a.ID
}

// Quote references the message a quote-reply answers
type Quote struct {
	ID           int64
	AuthorNumber string
	AuthorUUID   string
	Text         string
}

// Reaction references the message an emoji reaction targets
type Reaction struct {
	Emoji               string
	TargetAuthorNumber  string
	TargetAuthorUUID    string
	TargetSentTimestamp int64
}

// Batch maps an account identifier to its envelopes in ascending timestamp order
type Batch map[string][]Envelope

// OutboundMail is a rendered mail ready for delivery to one recipient
type OutboundMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []MailAttachment
}

// ChatRecipient addresses either a group or a single user
type ChatRecipient struct {
	GroupID string
	Number  string
}

// ChatPost is a rendered chat message
type ChatPost struct {
	Recipient      ChatRecipient
	Text           string
	AttachmentPath string
}

// ReceiveResult is the raw outcome of a chat receive call
type ReceiveResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// LedgerEntry records an item that has already been forwarded
type LedgerEntry struct {
	Key         string
	Origin      string
	ForwardedAt time.Time
	ExpiresAt   time.Time
}

// MailDateLayout is the layout of the date lines rendered into forwarded
// texts and alerts
const MailDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// MailDateParseLayout parses mail Date headers. The day may have one or two digits.
const MailDateParseLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// ChatText is a mail message rendered for the chat side: the main text and
// the attachments that follow it as separate posts
type ChatText struct {
	Text        string
	Attachments []MailAttachment
}

// FormatMillis renders epoch milliseconds in MailDateLayout
func FormatMillis(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(MailDateLayout)
}
