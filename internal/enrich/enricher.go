// Package enrich completes decoded chat envelopes before they are routed:
// sender names, attachment payloads and quote or reaction annotations.
package enrich

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/directory"
)

// UnknownSender is used in quote and reaction annotations when the original
// author cannot be resolved
const UnknownSender = "[unknown sender]"

// AttachmentStore gives access to attachment files by id
type AttachmentStore interface {
	Stat(id string) (int64, error)
	Read(id string) ([]byte, error)
}

// Enricher threads an envelope through the enrichment steps
type Enricher struct {
	directory *directory.AddressDirectory
	store     AttachmentStore
	maxSize   int64
	loc       *time.Location
	logger    *zap.Logger
}

// NewEnricher creates a new Enricher. Attachments of maxSize bytes or more
// are not materialized.
func NewEnricher(dir *directory.AddressDirectory, store AttachmentStore, maxSize int64, loc *time.Location, logger *zap.Logger) *Enricher {
	if loc == nil {
		loc = time.Local
	}
	return &Enricher{
		directory: dir,
		store:     store,
		maxSize:   maxSize,
		loc:       loc,
		logger:    logger,
	}
}

// Enrich returns an enriched copy of env together with the issues found on
// the way. A missing attachment file stops enrichment and the partially
// enriched copy is returned.
func (e *Enricher) Enrich(env core.Envelope) (core.Envelope, []core.ItemError) {
	item := env.Key()
	var issues []core.ItemError

	out, errs := e.ResolveSender(env)
	for _, err := range errs {
		issues = append(issues, core.NewItemError(item, err))
	}

	out, err := e.MaterializeAttachments(out)
	if err != nil {
		e.logger.Error("Attachment materialization failed",
			zap.String("item", item),
			zap.Error(err))
		return out, append(issues, core.NewItemError(item, err))
	}

	out = e.SynthesizeQuote(out)
	out = e.SynthesizeReaction(out)

	return out, issues
}

// ResolveSender replaces the source with the directory name of the sender
func (e *Enricher) ResolveSender(env core.Envelope) (core.Envelope, []error) {
	out := env.Clone()
	var errs []error

	res := e.directory.Resolve(env.SourceNumber, env.SourceUUID)
	if res.Conflict {
		e.logger.Warn("Sender identifiers resolve to different names",
			zap.String("number", env.SourceNumber),
			zap.String("uuid", env.SourceUUID),
			zap.String("by_number", res.FromNumber),
			zap.String("by_uuid", res.FromID))
		errs = append(errs, fmt.Errorf("%w: number %s is %q but uuid %s is %q",
			core.ErrResolutionConflict, env.SourceNumber, res.FromNumber, env.SourceUUID, res.FromID))
	}

	if !res.Resolved {
		e.logger.Error("Unknown user",
			zap.String("source", env.Source),
			zap.String("number", env.SourceNumber),
			zap.String("uuid", env.SourceUUID))
		errs = append(errs, fmt.Errorf("%w: unknown user %q (number %q, uuid %q)",
			core.ErrResolutionConflict, env.Source, env.SourceNumber, env.SourceUUID))
		out.Source = core.UnknownSource
		return out, errs
	}

	out.Source = res.Name
	return out, errs
}

// MaterializeAttachments loads the payload of every attachment below the
// size limit. Larger ones are marked oversized. The first missing file
// aborts the step and is returned as a core.ErrPrecondition.
func (e *Enricher) MaterializeAttachments(env core.Envelope) (core.Envelope, error) {
	out := env.Clone()
	if len(out.Attachments) == 0 {
		return out, nil
	}

	for i := range out.Attachments {
		a := &out.Attachments[i]

		size, err := e.store.Stat(a.ID)
		if err != nil {
			return out, fmt.Errorf("failed to stat attachment %s: %w", a.ID, err)
		}

		if size >= e.maxSize {
			e.logger.Error("Attachment too large, not forwarded",
				zap.String("id", a.ID),
				zap.Int64("size", size),
				zap.Int64("max_size", e.maxSize))
			a.Base64 = nil
			a.Oversized = true
			continue
		}

		data, err := e.store.Read(a.ID)
		if err != nil {
			return out, fmt.Errorf("failed to read attachment %s: %w", a.ID, err)
		}
		payload := base64.StdEncoding.EncodeToString(data)
		a.Base64 = &payload
		e.logger.Debug("Attachment materialized",
			zap.String("id", a.ID),
			zap.Int64("size", size))
	}

	return out, nil
}

// SynthesizeQuote appends the quoted message to the text of a quote-reply
func (e *Enricher) SynthesizeQuote(env core.Envelope) core.Envelope {
	out := env.Clone()
	if out.Pattern != core.PatternQuoteReply || out.Quote == nil {
		return out
	}

	var block strings.Builder
	block.WriteString("[[ quote answer ]]\n")
	block.WriteString("to message from sender: " + e.referenceName(out.Quote.AuthorNumber, out.Quote.AuthorUUID) + "\n\n")
	block.WriteString(out.Quote.Text + "\n")

	lines := strings.Split(block.String(), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}

	text := ""
	if out.Text != nil {
		text = *out.Text
	}
	text += "\n\n" + strings.Join(lines, "\n")
	out.Text = &text

	return out
}

// SynthesizeReaction appends the reaction details to the text of an emoji reaction
func (e *Enricher) SynthesizeReaction(env core.Envelope) core.Envelope {
	out := env.Clone()
	if out.Pattern != core.PatternEmojiReaction || out.Reaction == nil {
		return out
	}

	text := ""
	if out.Text != nil {
		text = *out.Text
	}

	r := out.Reaction
	text += "[[ emoji reaction ]]\n"
	text += "to message from sender: " + e.referenceName(r.TargetAuthorNumber, r.TargetAuthorUUID) + "\n"
	text += "to message from date: " + core.FormatMillis(r.TargetSentTimestamp, e.loc) + "\n"
	text += "emoji: " + r.Emoji + "\n"
	out.Text = &text

	return out
}

func (e *Enricher) referenceName(number, uuid string) string {
	res := e.directory.Resolve(number, uuid)
	if !res.Resolved {
		return UnknownSender
	}
	return res.Name
}
