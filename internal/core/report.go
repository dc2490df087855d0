package core

import (
	"time"

	"go.uber.org/zap"
)

// Report summarizes one batch run
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	EnvelopesDecoded   int
	EnvelopesForwarded int
	EnvelopesFiltered  int
	Duplicates         int
	MailsAttempted     int
	MailsSent          int

	MailsFetched    int
	MailsDecoded    int
	MailsRejected   int
	ChatPostsSent   int
	ChatPostsFailed int

	Items []ItemError
}

// NewReport starts a report for the given run
func NewReport(runID string, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: startedAt,
	}
}

// Add records per-item failures
func (r *Report) Add(items ...ItemError) {
	r.Items = append(r.Items, items...)
}

// Count returns the number of recorded failures of the given kind
func (r *Report) Count(kind ErrorKind) int {
	n := 0
	for _, item := range r.Items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

// Fields returns the report as structured log fields
func (r *Report) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", r.RunID),
		zap.Duration("duration", r.Duration),
		zap.Int("envelopes_decoded", r.EnvelopesDecoded),
		zap.Int("envelopes_forwarded", r.EnvelopesForwarded),
		zap.Int("envelopes_filtered", r.EnvelopesFiltered),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("mails_attempted", r.MailsAttempted),
		zap.Int("mails_sent", r.MailsSent),
		zap.Int("mails_fetched", r.MailsFetched),
		zap.Int("mails_decoded", r.MailsDecoded),
		zap.Int("mails_rejected", r.MailsRejected),
		zap.Int("chat_posts_sent", r.ChatPostsSent),
		zap.Int("chat_posts_failed", r.ChatPostsFailed),
		zap.Int("errors", len(r.Items)),
	}
}
