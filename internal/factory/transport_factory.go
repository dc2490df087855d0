package factory

import (
	"fmt"

	"github.com/99designs/keyring"
	"github.com/mikey/signal-mail-bridge/internal/adapters/imap"
	"github.com/mikey/signal-mail-bridge/internal/adapters/mbox"
	"github.com/mikey/signal-mail-bridge/internal/adapters/signalcli"
	"github.com/mikey/signal-mail-bridge/internal/adapters/smtp"
	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/credential"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"go.uber.org/zap"
)

// TransportFactory creates the mail and chat transports
type TransportFactory struct {
	cfg         *config.Config
	logger      *zap.Logger
	openKeyring func() (keyring.Keyring, error)
}

// NewTransportFactory creates a new transport factory
func NewTransportFactory(cfg *config.Config, logger *zap.Logger) *TransportFactory {
	return &TransportFactory{
		cfg:         cfg,
		logger:      logger,
		openKeyring: credential.Open,
	}
}

func (f *TransportFactory) mailPassword(mc config.MailConfig) (string, error) {
	password, err := credential.MailPassword(mc.User, mc.Password, mc.PasswordKeyring, f.openKeyring)
	if err != nil {
		return "", fmt.Errorf("failed to get mail password: %w", err)
	}
	return password, nil
}

// CreateMailFetcher creates the IMAP fetcher for inbound mail
func (f *TransportFactory) CreateMailFetcher() (ports.MailFetcher, error) {
	mc := f.cfg.GetMail()
	password, err := f.mailPassword(mc)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Using IMAP mailbox",
		zap.String("host", mc.IMAP.Host),
		zap.Int("port", mc.IMAP.Port),
		zap.String("mailbox", mc.IMAP.Mailbox))

	return imap.NewFetcher(imap.Options{
		Host:     mc.IMAP.Host,
		Port:     mc.IMAP.Port,
		Username: mc.User,
		Password: password,
		Mailbox:  mc.IMAP.Mailbox,
		UseTLS:   mc.IMAP.TLS,
	}, f.logger)
}

// CreateMailSender creates the SMTP sender for outbound mail
func (f *TransportFactory) CreateMailSender() (ports.MailSender, error) {
	mc := f.cfg.GetMail()
	password, err := f.mailPassword(mc)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Using SMTP server",
		zap.String("host", mc.SMTP.Host),
		zap.Int("port", mc.SMTP.Port),
		zap.String("from", mc.From))

	return smtp.NewSender(smtp.Options{
		Host:     mc.SMTP.Host,
		Port:     mc.SMTP.Port,
		Username: mc.User,
		Password: password,
		From:     mc.From,
		UseTLS:   mc.SMTP.TLS,
	}, f.logger)
}

// CreateChatClient creates the signal-cli client used for receiving and posting
func (f *TransportFactory) CreateChatClient() (*signalcli.Client, error) {
	sc, err := f.cfg.GetSignal()
	if err != nil {
		return nil, err
	}
	return signalcli.NewClient(signalcli.Options{
		Executable: sc.CLI,
		ConfigPath: sc.ConfigPath,
		Account:    sc.Number,
		Verbose:    sc.Verbose,
		Timeout:    sc.Timeout,
	}, f.logger)
}

// CreateMailArchive creates the mbox archive for fetched mail. Without a
// configured path it returns nil.
func (f *TransportFactory) CreateMailArchive() ports.MailArchive {
	path := f.cfg.GetMail().DumpMbox
	if path == "" {
		return nil
	}
	f.logger.Info("Archiving fetched mail", zap.String("path", path))
	return mbox.NewArchive(path)
}
