// Package chatevent decodes the newline-delimited JSON stream produced by the
// chat transport into classified envelopes.
package chatevent

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// flags is the presence tuple used to classify an envelope
type flags struct {
	receipt       bool
	data          bool
	reaction      bool
	reactionEmoji bool
	quote         bool
}

func (f flags) String() string {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("(%d,%d,%d,%d,%d)", b(f.receipt), b(f.data), b(f.reaction), b(f.reactionEmoji), b(f.quote))
}

// Classify maps a flag tuple onto its envelope pattern
func (f flags) Classify() core.Pattern {
	switch f {
	case flags{receipt: true}:
		return core.PatternReceipt
	case flags{data: true}:
		return core.PatternPlain
	case flags{data: true, quote: true}:
		return core.PatternQuoteReply
	case flags{data: true, reaction: true, reactionEmoji: true}:
		return core.PatternEmojiReaction
	default:
		return core.PatternUnknown
	}
}

// Decoder parses chat receive output
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a new chat event decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{
		logger: logger,
	}
}

// Decode splits raw into lines and returns the accepted envelopes grouped by
// account, each list in ascending timestamp order. Malformed lines, exception
// lines and unknown patterns are returned as issues and skipped.
func (d *Decoder) Decode(raw []byte) (core.Batch, []core.ItemError) {
	batch := make(core.Batch)
	var issues []core.ItemError

	for n, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.Contains(line, []byte("envelope")) {
			continue
		}

		item := fmt.Sprintf("line %d", n+1)
		env, err := d.decodeLine(line)
		if err != nil {
			d.logger.Error("Failed to decode chat event", zap.String("item", item), zap.Error(err))
			issues = append(issues, core.NewItemError(item, err))
			continue
		}

		switch env.Pattern {
		case core.PatternReceipt:
			d.logger.Debug("Skipping delivery receipt", zap.String("item", item))
			continue
		case core.PatternPlain, core.PatternQuoteReply, core.PatternEmojiReaction:
			batch[env.Account] = append(batch[env.Account], *env)
		}
	}

	for account := range batch {
		slices.SortStableFunc(batch[account], func(a, b core.Envelope) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		})
	}

	d.logger.Debug("Decoded chat events",
		zap.Int("accounts", len(batch)),
		zap.Int("issues", len(issues)))

	return batch, issues
}

func (d *Decoder) decodeLine(line []byte) (*core.Envelope, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(line, &keys); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", core.ErrParse, err)
	}
	if exc, ok := keys["exception"]; ok {
		return nil, fmt.Errorf("%w: chat transport reported exception: %s", core.ErrUnknownShape, exc)
	}
	rawEnvelope, ok := keys["envelope"]
	if !ok {
		return nil, fmt.Errorf("%w: missing envelope object", core.ErrParse)
	}

	f, err := presence(rawEnvelope)
	if err != nil {
		return nil, err
	}

	var wire wireLine
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, fmt.Errorf("%w: invalid envelope: %v", core.ErrParse, err)
	}

	pattern := f.Classify()
	if pattern == core.PatternUnknown {
		return nil, fmt.Errorf("%w: unknown pattern %s: %s", core.ErrUnknownShape, f, rawEnvelope)
	}
	if pattern == core.PatternReceipt {
		return &core.Envelope{Pattern: pattern}, nil
	}
	if wire.Account == "" {
		return nil, fmt.Errorf("%w: missing account", core.ErrParse)
	}

	return toEnvelope(wire, pattern), nil
}

// presence computes the classification flags from key presence. A key that
// is present with a null value still counts.
func presence(rawEnvelope json.RawMessage) (flags, error) {
	var f flags

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rawEnvelope, &envelope); err != nil {
		return f, fmt.Errorf("%w: envelope is not an object: %v", core.ErrParse, err)
	}
	_, f.receipt = envelope["receiptMessage"]

	rawData, ok := envelope["dataMessage"]
	if !ok {
		return f, nil
	}
	f.data = true

	var data map[string]json.RawMessage
	if err := json.Unmarshal(rawData, &data); err != nil {
		return f, fmt.Errorf("%w: dataMessage is not an object: %v", core.ErrParse, err)
	}
	_, f.quote = data["quote"]

	rawReaction, ok := data["reaction"]
	if !ok {
		return f, nil
	}
	f.reaction = true

	var reaction map[string]json.RawMessage
	if err := json.Unmarshal(rawReaction, &reaction); err != nil {
		return f, fmt.Errorf("%w: reaction is not an object: %v", core.ErrParse, err)
	}
	_, f.reactionEmoji = reaction["emoji"]

	return f, nil
}

func toEnvelope(wire wireLine, pattern core.Pattern) *core.Envelope {
	env := &core.Envelope{
		Account:      wire.Account,
		Source:       wire.Envelope.Source,
		SourceNumber: wire.Envelope.SourceNumber,
		SourceUUID:   wire.Envelope.SourceUUID,
		Timestamp:    wire.Envelope.Timestamp,
		Pattern:      pattern,
	}

	data := wire.Envelope.DataMessage
	if data == nil {
		return env
	}

	env.Text = data.Message
	if data.GroupInfo != nil {
		env.GroupID = data.GroupInfo.GroupID
	}

	for _, a := range data.Attachments {
		att := core.ChatAttachment{
			ID:          a.ID,
			ContentType: a.ContentType,
			Size:        a.Size,
		}
		if a.Filename != nil {
			att.Filename = *a.Filename
		}
		env.Attachments = append(env.Attachments, att)
	}

	switch pattern {
	case core.PatternQuoteReply:
		if data.Quote != nil {
			env.Quote = &core.Quote{
				ID:           data.Quote.ID,
				AuthorNumber: data.Quote.AuthorNumber,
				AuthorUUID:   data.Quote.AuthorUUID,
			}
			if data.Quote.Text != nil {
				env.Quote.Text = *data.Quote.Text
			}
		}
	case core.PatternEmojiReaction:
		env.Reaction = &core.Reaction{
			Emoji:               data.Reaction.Emoji,
			TargetAuthorNumber:  data.Reaction.TargetAuthorNumber,
			TargetAuthorUUID:    data.Reaction.TargetAuthorUUID,
			TargetSentTimestamp: data.Reaction.TargetSentTimestamp,
		}
	}

	return env
}
