// Package imap fetches unseen mail from the inbound mailbox.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"slices"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// Options configures the IMAP connection
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	UseTLS   bool
}

// Fetcher retrieves unseen mail over IMAP. Fetched messages are marked
// seen by the server.
type Fetcher struct {
	opts   Options
	logger *zap.Logger
}

// NewFetcher creates a new IMAP fetcher
func NewFetcher(opts Options, logger *zap.Logger) (*Fetcher, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	return &Fetcher{
		opts:   opts,
		logger: logger,
	}, nil
}

// FetchUnseen returns the unseen messages whose From header contains one
// of senders. Without senders nothing is fetched.
func (f *Fetcher) FetchUnseen(ctx context.Context, senders []string) ([]core.RawMail, error) {
	if len(senders) == 0 {
		f.logger.Debug("No senders configured, skipping mailbox")
		return nil, nil
	}

	client, cleanup, err := f.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer cleanup()

	if _, err := client.Select(f.opts.Mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("%w: failed to select %s: %v", core.ErrTransport, f.opts.Mailbox, err)
	}

	senderOf := make(map[imapv2.UID]string)
	for _, sender := range senders {
		criteria := &imapv2.SearchCriteria{
			Header:  []imapv2.SearchCriteriaHeaderField{{Key: "From", Value: sender}},
			NotFlag: []imapv2.Flag{imapv2.FlagSeen},
		}
		data, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to search mail from %s: %v", core.ErrTransport, sender, err)
		}
		for _, uid := range data.AllUIDs() {
			if _, ok := senderOf[uid]; !ok {
				senderOf[uid] = sender
			}
		}
	}

	if len(senderOf) == 0 {
		f.logger.Info("No unseen mail")
		return nil, nil
	}

	uids := make([]imapv2.UID, 0, len(senderOf))
	for uid := range senderOf {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	section := &imapv2.FetchItemBodySection{}
	fetchCmd := client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	var mails []core.RawMail
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			f.logger.Warn("Failed to collect message", zap.Error(err))
			continue
		}
		raw := buf.FindBodySection(section)
		if raw == nil {
			f.logger.Warn("Message without body", zap.Uint32("uid", uint32(buf.UID)))
			continue
		}
		mails = append(mails, core.RawMail{
			UID:    uint32(buf.UID),
			Sender: senderOf[buf.UID],
			Raw:    raw,
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return mails, fmt.Errorf("%w: failed to fetch messages: %v", core.ErrTransport, err)
	}

	f.logger.Info("Fetched unseen mail", zap.Int("count", len(mails)))
	return mails, nil
}

func (f *Fetcher) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(f.opts.Host, strconv.Itoa(f.opts.Port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: f.opts.Host},
	}

	var (
		client *imapclient.Client
		err    error
	)
	if f.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialStartTLS(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial imap %s: %w", address, err)
	}

	if err := client.Login(f.opts.Username, f.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	f.logger.Debug("IMAP connection established",
		zap.String("address", address),
		zap.String("user", f.opts.Username))

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				f.logger.Warn("IMAP logout failed", zap.Error(err))
			}
		}
		_ = client.Close()
	}

	return client, cleanup, nil
}
