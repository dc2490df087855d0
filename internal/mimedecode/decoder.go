// Package mimedecode turns raw RFC822 mail into core.Message values.
package mimedecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

type bucket int

const (
	bucketUnknown bucket = iota
	bucketText
	bucketBinary
	bucketIgnored
	bucketContainer
)

var textTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
}

// binaryTypes maps the accepted attachment content types to the extension
// used when a part carries no usable filename
var binaryTypes = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.oasis.opendocument.text":                                 ".odt",
	"application/pdf": ".pdf",
	"image/gif":       ".gif",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
}

var ignoredTypes = map[string]bool{
	"text/html": true,
}

func classify(contentType string) bucket {
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		return bucketContainer
	case textTypes[contentType]:
		return bucketText
	case ignoredTypes[contentType]:
		return bucketIgnored
	}
	if _, ok := binaryTypes[contentType]; ok {
		return bucketBinary
	}
	return bucketUnknown
}

// Decoder parses raw mail bytes
type Decoder struct {
	logger *zap.Logger
	text   *utils.TextProcessor
}

// NewDecoder creates a new mail decoder
func NewDecoder(logger *zap.Logger, text *utils.TextProcessor) *Decoder {
	return &Decoder{
		logger: logger,
		text:   text,
	}
}

// Decode parses raw into a Message. Missing or malformed From, To and Date
// headers fail the message with core.ErrParse. Dropped parts of unknown
// content type are returned as issues.
func (d *Decoder) Decode(raw []byte) (*core.Message, []core.ItemError, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, nil, fmt.Errorf("%w: failed to read message: %v", core.ErrParse, err)
	}
	if err != nil {
		d.logger.Warn("Message read with degraded decoding", zap.Error(err))
	}

	header := mail.Header{Header: entity.Header}
	msg := &core.Message{
		ID: messageID(header, raw),
	}

	msg.From = strings.TrimSpace(header.Get("From"))
	if msg.From == "" {
		return nil, nil, fmt.Errorf("%w: missing From header", core.ErrParse)
	}
	msg.To = strings.TrimSpace(header.Get("To"))
	if msg.To == "" {
		return nil, nil, fmt.Errorf("%w: missing To header", core.ErrParse)
	}

	date := strings.TrimSpace(header.Get("Date"))
	if date == "" {
		return nil, nil, fmt.Errorf("%w: missing Date header", core.ErrParse)
	}
	msg.Date, err = time.Parse(core.MailDateParseLayout, date)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid Date header %q: %v", core.ErrParse, date, err)
	}

	msg.Subject = d.subject(header)
	msg.Cc = splitAddressList(header, "Cc")
	msg.Bcc = splitAddressList(header, "Bcc")

	if !strings.HasPrefix(contentType(entity.Header), "multipart/") {
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to read body: %v", core.ErrParse, err)
		}
		msg.Body = []string{d.text.SanitizeUTF8(string(body))}
		return msg, nil, nil
	}

	issues, err := d.walk(entity, msg)
	if err != nil {
		return nil, issues, err
	}
	return msg, issues, nil
}

func (d *Decoder) walk(entity *message.Entity, msg *core.Message) ([]core.ItemError, error) {
	var issues []core.ItemError

	err := entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}

		ct := contentType(part.Header)
		if message.IsUnknownEncoding(err) {
			d.logger.Error("Unknown transfer encoding",
				zap.String("message_id", msg.ID),
				zap.String("content_type", ct),
				zap.Error(err))
			issues = append(issues, core.NewItemError(msg.ID,
				fmt.Errorf("%w: %v at part %v", core.ErrUnknownShape, err, path)))
			return nil
		}
		b := classify(ct)
		switch b {
		case bucketContainer, bucketIgnored:
			return nil
		case bucketUnknown:
			d.logger.Error("Unknown content type",
				zap.String("message_id", msg.ID),
				zap.String("content_type", ct))
			issues = append(issues, core.NewItemError(msg.ID,
				fmt.Errorf("%w: unknown content type %q at part %v", core.ErrUnknownShape, ct, path)))
			return nil
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return fmt.Errorf("failed to read part %v: %w", path, err)
		}

		filename, ok := d.filename(part.Header, msg.ID)
		if b == bucketText && !ok {
			msg.Body = append(msg.Body, d.text.SanitizeUTF8(string(data)))
			return nil
		}
		if !ok {
			filename = fallbackFilename(part.Header, ct, len(msg.Attachments)+1)
		}
		msg.Attachments = append(msg.Attachments, core.MailAttachment{
			Filename:    filename,
			ContentType: ct,
			Data:        data,
		})
		return nil
	})
	if err != nil {
		return issues, fmt.Errorf("%w: failed to walk message parts: %v", core.ErrParse, err)
	}

	return issues, nil
}

func (d *Decoder) subject(header mail.Header) string {
	subject, err := header.Subject()
	if err != nil {
		raw := header.Get("Subject")
		d.logger.Warn("Failed to decode subject, using raw value",
			zap.String("subject", raw),
			zap.Error(err))
		return raw
	}
	return subject
}

// filename reads the filename="..." token from Content-Disposition. Zero or
// several matching tokens leave the filename absent.
func (d *Decoder) filename(h message.Header, messageID string) (string, bool) {
	disposition := h.Get("Content-Disposition")
	if disposition == "" {
		return "", false
	}

	var matches []string
	for _, token := range strings.Split(disposition, ";") {
		token = strings.TrimSpace(token)
		if strings.HasPrefix(token, `filename="`) {
			matches = append(matches, token)
		}
	}

	switch len(matches) {
	case 0:
		d.logger.Debug("No filename token in Content-Disposition",
			zap.String("message_id", messageID),
			zap.String("disposition", disposition))
		return "", false
	case 1:
		name := strings.TrimSuffix(strings.TrimPrefix(matches[0], `filename="`), `"`)
		return name, name != ""
	default:
		d.logger.Warn("Ambiguous filename in Content-Disposition",
			zap.String("message_id", messageID),
			zap.Strings("tokens", matches))
		return "", false
	}
}

func fallbackFilename(h message.Header, ct string, n int) string {
	if _, params, err := h.ContentType(); err == nil && params["name"] != "" {
		return params["name"]
	}
	ext, ok := binaryTypes[ct]
	if !ok {
		ext = ".txt"
	}
	return fmt.Sprintf("attachment-%d%s", n, ext)
}

func contentType(h message.Header) string {
	if h.Get("Content-Type") == "" {
		return "text/plain"
	}
	t, _, err := h.ContentType()
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(h.Get("Content-Type"), ";")[0]))
	}
	return strings.ToLower(t)
}

func splitAddressList(h mail.Header, key string) []string {
	if !h.Has(key) {
		return nil
	}
	parts := strings.Split(h.Get(key), ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		list = append(list, strings.TrimSpace(p))
	}
	return list
}

func messageID(h mail.Header, raw []byte) string {
	id := strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	if id != "" {
		return id
	}
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}
