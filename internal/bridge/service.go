// Package bridge runs one synchronous relay pass between the chat group and
// the mailbox.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/allowlist"
	"github.com/mikey/signal-mail-bridge/internal/attachments"
	"github.com/mikey/signal-mail-bridge/internal/chatevent"
	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/enrich"
	"github.com/mikey/signal-mail-bridge/internal/format"
	"github.com/mikey/signal-mail-bridge/internal/mimedecode"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"github.com/mikey/signal-mail-bridge/internal/route"
)

const (
	originChat = "chat"
	originMail = "mail"

	alertMailSubject = "signal-mail-bridge ERROR"
)

// AttachmentCleaner removes stale attachment files
type AttachmentCleaner interface {
	Cleanup(maxAge time.Duration, now time.Time) (int, error)
}

// Deps holds the collaborators of a Service. Ledger, Archive and Cleaner
// are optional.
type Deps struct {
	Receiver ports.ChatReceiver
	Chat     ports.ChatSender
	Fetcher  ports.MailFetcher
	Mailer   ports.MailSender
	Ledger   ports.LedgerRepository
	Archive  ports.MailArchive
	Cleaner  AttachmentCleaner
	Alerter  ports.Alerter

	Events    *chatevent.Decoder
	Mails     *mimedecode.Decoder
	Enricher  *enrich.Enricher
	Router    *route.Router
	MailFmt   *format.MailFormatter
	ChatFmt   *format.ChatFormatter
	Allowlist *allowlist.Checker

	Settings  config.Settings
	LedgerTTL time.Duration
	Logger    *zap.Logger
}

// Service relays chat messages to mail and mail to the chat group
type Service struct {
	Deps
	now      func() time.Time
	newRunID func() string
}

// NewService creates a new bridge service
func NewService(deps Deps) *Service {
	return &Service{
		Deps:     deps,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// RunBatch performs one relay pass. Per-item failures are collected in the
// report and sent to the operator. Only a failed chat receive aborts the
// run, in which case the partial report is returned with the error.
func (s *Service) RunBatch(ctx context.Context) (*core.Report, error) {
	report := core.NewReport(s.newRunID(), s.now())
	logger := s.Logger.With(zap.String("run_id", report.RunID))
	defer func() {
		report.Duration = s.now().Sub(report.StartedAt)
	}()

	logger.Info("Starting bridge run")

	s.cleanupAttachments(logger)
	if s.Ledger != nil {
		if err := s.Ledger.Cleanup(ctx); err != nil {
			logger.Warn("Failed to clean up ledger", zap.Error(err))
		}
	}

	if err := s.relayChatToMail(ctx, report, logger); err != nil {
		report.Add(core.NewItemError("chat receive", err))
		s.alertReport(ctx, report)
		logger.Error("Bridge run aborted", append(report.Fields(), zap.Error(err))...)
		return report, fmt.Errorf("failed to receive chat events: %w", err)
	}

	s.relayMailToChat(ctx, report, logger)
	s.alertReport(ctx, report)

	report.Duration = s.now().Sub(report.StartedAt)
	logger.Info("Bridge run finished", report.Fields()...)
	return report, nil
}

func (s *Service) cleanupAttachments(logger *zap.Logger) {
	if s.Cleaner == nil || s.Settings.AttachmentRetention <= 0 {
		return
	}
	removed, err := s.Cleaner.Cleanup(s.Settings.AttachmentRetention, s.now())
	if err != nil {
		logger.Warn("Failed to clean up attachments", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("Removed stale attachments", zap.Int("count", removed))
	}
}

func (s *Service) relayChatToMail(ctx context.Context, report *core.Report, logger *zap.Logger) error {
	res, err := s.Receiver.Receive(ctx)
	if err != nil {
		return err
	}

	if res.ExitCode != 0 || len(res.Stderr) > 0 {
		text := fmt.Sprintf("signal-cli receive exited with %d\nstdout: %s\nstderr: %s",
			res.ExitCode, res.Stdout, res.Stderr)
		s.Alerter.Alert(ctx, text)
		s.Alerter.AlertByMail(ctx, alertMailSubject, text)
	}

	batch, issues := s.Events.Decode(res.Stdout)
	report.Add(issues...)

	for account, envs := range batch {
		for i := range envs {
			enriched, issues := s.Enricher.Enrich(envs[i])
			report.Add(issues...)
			batch[account][i] = enriched
		}
		report.EnvelopesDecoded += len(envs)
	}

	forward, filtered := s.Router.Route(batch)
	report.EnvelopesForwarded = len(forward)
	report.EnvelopesFiltered = len(filtered)

	var (
		mails []core.OutboundMail
		keys  []string
	)
	for _, env := range forward {
		key := env.Key()
		if s.forwarded(ctx, key, logger) {
			report.Duplicates++
			continue
		}
		mails = append(mails, s.MailFmt.Render(env))
		keys = append(keys, key)
	}

	recipients := s.Settings.ForwardTo
	if len(recipients) == 0 {
		if len(mails) > 0 {
			logger.Warn("No forward addresses configured, chat messages are not mailed",
				zap.Int("messages", len(mails)))
		}
		return nil
	}

	units := route.FanOut(mails, recipients)
	report.MailsAttempted = len(units)
	delivered := make([]bool, len(mails))
	for i, unit := range units {
		msg := i / len(recipients)
		if err := s.Mailer.Send(ctx, unit); err != nil {
			report.Add(core.NewItemError("mail to "+unit.To+" for "+keys[msg], asTransport(err)))
			continue
		}
		report.MailsSent++
		delivered[msg] = true
	}

	for i, ok := range delivered {
		if ok {
			s.remember(ctx, keys[i], originChat, logger)
		}
	}

	if expected := len(mails) * len(recipients); report.MailsSent != expected {
		logger.Warn("Not all mails were sent",
			zap.Int("sent", report.MailsSent),
			zap.Int("expected", expected))
	}
	return nil
}

func (s *Service) relayMailToChat(ctx context.Context, report *core.Report, logger *zap.Logger) {
	raws, err := s.Fetcher.FetchUnseen(ctx, s.Allowlist.SearchTerms())
	if err != nil {
		report.Add(core.NewItemError("mailbox", asTransport(err)))
	}
	report.MailsFetched = len(raws)

	if s.Archive != nil && len(raws) > 0 {
		if err := s.Archive.Archive(raws); err != nil {
			logger.Warn("Failed to archive fetched mail", zap.Error(err))
		}
	}

	group := core.ChatRecipient{GroupID: s.Settings.HomeGroupID}
	for _, raw := range raws {
		item := fmt.Sprintf("mail uid %d", raw.UID)

		msg, issues, err := s.Mails.Decode(raw.Raw)
		report.Add(issues...)
		if err != nil {
			report.Add(core.NewItemError(item, err))
			continue
		}
		report.MailsDecoded++

		if !s.Allowlist.Allowed(msg.From) {
			logger.Info("Mail sender not allowed", zap.String("from", msg.From), zap.String("id", msg.ID))
			report.MailsRejected++
			continue
		}

		key := originMail + ":" + msg.ID
		if s.forwarded(ctx, key, logger) {
			report.Duplicates++
			continue
		}

		text := s.ChatFmt.Render(msg)
		if err := s.Chat.Send(ctx, core.ChatPost{Recipient: group, Text: text.Text}); err != nil {
			report.ChatPostsFailed++
			report.Add(core.NewItemError(item, asTransport(err)))
			continue
		}
		report.ChatPostsSent++

		for _, a := range text.Attachments {
			err := attachments.WithTempFile(a.Filename, a.Data, func(path string) error {
				return s.Chat.Send(ctx, core.ChatPost{
					Recipient:      group,
					Text:           format.FollowUpText(a),
					AttachmentPath: path,
				})
			})
			if err != nil {
				report.ChatPostsFailed++
				report.Add(core.NewItemError(item+" attachment "+a.Filename, asTransport(err)))
				continue
			}
			report.ChatPostsSent++
		}

		s.remember(ctx, key, originMail, logger)
	}
}

func (s *Service) forwarded(ctx context.Context, key string, logger *zap.Logger) bool {
	if s.Ledger == nil {
		return false
	}
	_, err := s.Ledger.Get(ctx, key)
	if err == nil {
		logger.Info("Skipping already forwarded item", zap.String("key", key))
		return true
	}
	return false
}

func (s *Service) remember(ctx context.Context, key, origin string, logger *zap.Logger) {
	if s.Ledger == nil {
		return
	}
	now := s.now()
	err := s.Ledger.Set(ctx, &core.LedgerEntry{
		Key:         key,
		Origin:      origin,
		ForwardedAt: now,
		ExpiresAt:   now.Add(s.LedgerTTL),
	})
	if err != nil {
		logger.Warn("Failed to record forwarded item", zap.String("key", key), zap.Error(err))
	}
}

// alertReport sends one alert listing every item error of the run
func (s *Service) alertReport(ctx context.Context, report *core.Report) {
	if len(report.Items) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "bridge run %s: %d issue(s)\n", report.RunID, len(report.Items))
	for _, item := range report.Items {
		b.WriteString("- " + item.Error() + "\n")
	}
	s.Alerter.Alert(ctx, b.String())
}

// asTransport classifies uncategorized transport failures
func asTransport(err error) error {
	if core.KindOf(err) != core.KindInternal {
		return err
	}
	return errors.Join(core.ErrTransport, err)
}
