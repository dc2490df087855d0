package ports

import (
	"context"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// MailFetcher retrieves unseen mail from the inbound mailbox
type MailFetcher interface {
	// FetchUnseen returns the raw unseen messages sent by any of senders
	FetchUnseen(ctx context.Context, senders []string) ([]core.RawMail, error)
}

// MailSender delivers outbound mail
type MailSender interface {
	// Send delivers a single mail to its recipient
	Send(ctx context.Context, mail core.OutboundMail) error
}

// MailArchive keeps a copy of fetched raw mail
type MailArchive interface {
	// Archive stores mails
	Archive(mails []core.RawMail) error
}
