package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/adapters/signalcli"
	"github.com/mikey/signal-mail-bridge/internal/alert"
	"github.com/mikey/signal-mail-bridge/internal/allowlist"
	"github.com/mikey/signal-mail-bridge/internal/attachments"
	"github.com/mikey/signal-mail-bridge/internal/bridge"
	"github.com/mikey/signal-mail-bridge/internal/chatevent"
	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/directory"
	"github.com/mikey/signal-mail-bridge/internal/enrich"
	"github.com/mikey/signal-mail-bridge/internal/factory"
	"github.com/mikey/signal-mail-bridge/internal/format"
	"github.com/mikey/signal-mail-bridge/internal/logging"
	"github.com/mikey/signal-mail-bridge/internal/mimedecode"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"github.com/mikey/signal-mail-bridge/internal/route"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

// serviceParams collects everything the bridge service is built from
type serviceParams struct {
	dig.In

	Settings  config.Settings
	Logger    *zap.Logger
	Chat      *signalcli.Client
	Fetcher   ports.MailFetcher
	Mailer    ports.MailSender
	Ledger    ports.LedgerRepository
	LedgerTTL time.Duration
	Archive   ports.MailArchive
	Store     *attachments.LocalStore
	Alerter   *alert.Alerter
	Events    *chatevent.Decoder
	Mails     *mimedecode.Decoder
	Enricher  *enrich.Enricher
	Router    *route.Router
	MailFmt   *format.MailFormatter
	ChatFmt   *format.ChatFormatter
	Allowlist *allowlist.Checker
}

// BuildContainer creates and configures the dependency injection container
// for a bridge run. An empty configFile searches the default locations.
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register processing settings
	if err := container.Provide(func(cfg *config.Config) (config.Settings, error) {
		settings, err := cfg.GetSettings()
		if err != nil {
			return config.Settings{}, err
		}
		return settings, settings.Validate()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTransportFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register transports
	if err := container.Provide(func(f *factory.TransportFactory) (*signalcli.Client, error) {
		return f.CreateChatClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TransportFactory) (ports.MailFetcher, error) {
		return f.CreateMailFetcher()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TransportFactory) (ports.MailSender, error) {
		return f.CreateMailSender()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TransportFactory) ports.MailArchive {
		return f.CreateMailArchive()
	}); err != nil {
		return nil, err
	}

	// Register forwarding ledger and its TTL
	if err := container.Provide(func(f *factory.LedgerFactory) (ports.LedgerRepository, error) {
		return f.CreateLedger()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.LedgerFactory) (time.Duration, error) {
		return f.GetLedgerTTL()
	}); err != nil {
		return nil, err
	}

	// Register alerter
	if err := container.Provide(func(
		settings config.Settings,
		chat *signalcli.Client,
		mailer ports.MailSender,
		text *utils.TextProcessor,
		logger *zap.Logger,
	) *alert.Alerter {
		return alert.NewAlerter(chat, mailer, settings.AdminNumber, settings.AdminAddresses, text, logger)
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register attachment store
	if err := container.Provide(func(settings config.Settings, logger *zap.Logger) *attachments.LocalStore {
		return attachments.NewLocalStore(settings.AttachmentDir, logger)
	}); err != nil {
		return nil, err
	}

	// Register enricher
	if err := container.Provide(func(
		settings config.Settings,
		dir *directory.AddressDirectory,
		store *attachments.LocalStore,
		logger *zap.Logger,
	) *enrich.Enricher {
		return enrich.NewEnricher(dir, store, settings.AttachmentMaxSize, settings.Location, logger)
	}); err != nil {
		return nil, err
	}

	// Register allowlist
	if err := container.Provide(func(settings config.Settings, logger *zap.Logger) *allowlist.Checker {
		if len(settings.ForwardFrom) > 0 {
			logger.Info("Loaded allowed mail senders", zap.Strings("senders", settings.ForwardFrom))
		}
		return allowlist.NewChecker(settings.ForwardFrom, logger)
	}); err != nil {
		return nil, err
	}

	// Register bridge service
	if err := container.Provide(func(p serviceParams) *bridge.Service {
		return bridge.NewService(bridge.Deps{
			Receiver:  p.Chat,
			Chat:      p.Chat,
			Fetcher:   p.Fetcher,
			Mailer:    p.Mailer,
			Ledger:    p.Ledger,
			Archive:   p.Archive,
			Cleaner:   p.Store,
			Alerter:   p.Alerter,
			Events:    p.Events,
			Mails:     p.Mails,
			Enricher:  p.Enricher,
			Router:    p.Router,
			MailFmt:   p.MailFmt,
			ChatFmt:   p.ChatFmt,
			Allowlist: p.Allowlist,
			Settings:  p.Settings,
			LedgerTTL: p.LedgerTTL,
			Logger:    p.Logger,
		})
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// providePipeline registers the decoders, the address directory, the router
// and the formatters. They are shared by the run and inspect containers.
func providePipeline(container *dig.Container) error {
	if err := container.Provide(chatevent.NewDecoder); err != nil {
		return err
	}
	if err := container.Provide(mimedecode.NewDecoder); err != nil {
		return err
	}
	if err := container.Provide(format.NewChatFormatter); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*directory.AddressDirectory, error) {
		entries, err := cfg.GetAddressBook()
		if err != nil {
			return nil, err
		}
		dir := directory.New(entries)
		logger.Info("Loaded address book", zap.Int("entries", dir.Len()))
		return dir, nil
	}); err != nil {
		return err
	}

	if err := container.Provide(func(settings config.Settings, logger *zap.Logger) *route.Router {
		return route.NewRouter(settings.HomeGroupID, logger)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(settings config.Settings, logger *zap.Logger) *format.MailFormatter {
		return format.NewMailFormatter(settings.GroupLabel, settings.Location, logger)
	}); err != nil {
		return err
	}

	return nil
}
