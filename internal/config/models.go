package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultAttachmentMaxSize is the size in bytes from which chat attachments are no longer forwarded
const DefaultAttachmentMaxSize = 10_000_000

// IMAPConfig represents the inbound mail server settings
type IMAPConfig struct {
	Host    string
	Port    int
	Mailbox string
	TLS     bool
}

// SMTPConfig represents the outbound mail server settings
type SMTPConfig struct {
	Host string
	Port int
	TLS  bool
}

// MailConfig represents the mail side of the bridge
type MailConfig struct {
	IMAP            IMAPConfig
	SMTP            SMTPConfig
	User            string
	Password        string
	PasswordKeyring bool
	From            string
	ForwardFrom     []string
	ForwardTo       []string
	AdminAddresses  []string
	DumpMbox        string
}

// SignalConfig represents the signal-cli side of the bridge
type SignalConfig struct {
	CLI         string
	ConfigPath  string
	Number      string
	GroupID     string
	AdminNumber string
	GroupLabel  string
	Verbose     bool
	Timeout     time.Duration
}

// LedgerConfig represents the forwarding ledger settings
type LedgerConfig struct {
	Type       string
	Enabled    bool
	TTL        time.Duration
	SQLitePath string
	MySQLDSN   string
}

// AddressEntry maps chat identifiers to a display name
type AddressEntry struct {
	Name   string `mapstructure:"name"`
	Number string `mapstructure:"number"`
	ID     string `mapstructure:"id"`
}

// Settings holds the read-only values the processing stages need.
// It is built once per run and passed explicitly.
type Settings struct {
	HomeGroupID         string
	GroupLabel          string
	ForwardTo           []string
	ForwardFrom         []string
	AdminNumber         string
	AdminAddresses      []string
	AttachmentDir       string
	AttachmentMaxSize   int64
	AttachmentRetention time.Duration
	Location            *time.Location
}

// GetMail returns the mail configuration
func (c *Config) GetMail() MailConfig {
	from := c.GetString("mail.from")
	if from == "" {
		from = c.GetString("mail.user")
	}
	return MailConfig{
		IMAP: IMAPConfig{
			Host:    c.GetString("mail.imap.host"),
			Port:    c.GetInt("mail.imap.port"),
			Mailbox: c.GetString("mail.imap.mailbox"),
			TLS:     c.GetBool("mail.imap.tls"),
		},
		SMTP: SMTPConfig{
			Host: c.GetString("mail.smtp.host"),
			Port: c.GetInt("mail.smtp.port"),
			TLS:  c.GetBool("mail.smtp.tls"),
		},
		User:            c.GetString("mail.user"),
		Password:        c.GetString("mail.password"),
		PasswordKeyring: c.GetBool("mail.password_keyring"),
		From:            from,
		ForwardFrom:     c.GetStringSlice("mail.forward_from"),
		ForwardTo:       c.GetStringSlice("mail.forward_to"),
		AdminAddresses:  c.GetStringSlice("mail.admin_addresses"),
		DumpMbox:        c.GetString("mail.dump_mbox"),
	}
}

// GetSignal returns the signal-cli configuration
func (c *Config) GetSignal() (SignalConfig, error) {
	timeout, err := c.GetDuration("signal.timeout")
	if err != nil {
		return SignalConfig{}, fmt.Errorf("invalid signal timeout: %w", err)
	}
	return SignalConfig{
		CLI:         c.GetString("signal.cli"),
		ConfigPath:  c.GetString("signal.config_path"),
		Number:      c.GetString("signal.number"),
		GroupID:     c.GetString("signal.group_id"),
		AdminNumber: c.GetString("signal.admin_number"),
		GroupLabel:  c.GetString("signal.group_label"),
		Verbose:     c.GetBool("signal.verbose"),
		Timeout:     timeout,
	}, nil
}

// GetLedger returns the forwarding ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	ttl, err := c.GetDuration("ledger.ttl")
	if err != nil {
		return LedgerConfig{}, fmt.Errorf("invalid ledger ttl: %w", err)
	}
	return LedgerConfig{
		Type:       c.GetString("ledger.type"),
		Enabled:    c.GetBool("ledger.enabled"),
		TTL:        ttl,
		SQLitePath: c.GetString("ledger.sqlite_path"),
		MySQLDSN:   c.GetString("ledger.mysql_dsn"),
	}, nil
}

// GetAddressBook returns the static chat address directory entries
func (c *Config) GetAddressBook() ([]AddressEntry, error) {
	var entries []AddressEntry
	if err := c.v.UnmarshalKey("signal.address_book", &entries); err != nil {
		return nil, fmt.Errorf("failed to decode signal.address_book: %w", err)
	}
	return entries, nil
}

// GetSettings builds the processing settings
func (c *Config) GetSettings() (Settings, error) {
	retention, err := c.GetDuration("bridge.attachment_retention")
	if err != nil {
		return Settings{}, fmt.Errorf("invalid attachment retention: %w", err)
	}

	loc, err := time.LoadLocation(c.GetString("bridge.timezone"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid timezone: %w", err)
	}

	maxSize := c.GetInt64("bridge.attachment_max_size")
	if maxSize <= 0 {
		maxSize = DefaultAttachmentMaxSize
	}

	attachmentDir := ""
	if base := c.GetString("signal.config_path"); base != "" {
		attachmentDir = filepath.Join(base, "attachments")
	}

	return Settings{
		HomeGroupID:         c.GetString("signal.group_id"),
		GroupLabel:          c.GetString("signal.group_label"),
		ForwardTo:           c.GetStringSlice("mail.forward_to"),
		ForwardFrom:         c.GetStringSlice("mail.forward_from"),
		AdminNumber:         c.GetString("signal.admin_number"),
		AdminAddresses:      c.GetStringSlice("mail.admin_addresses"),
		AttachmentDir:       attachmentDir,
		AttachmentMaxSize:   maxSize,
		AttachmentRetention: retention,
		Location:            loc,
	}, nil
}

// Validate checks the settings a full bridge run cannot work without
func (s Settings) Validate() error {
	if s.HomeGroupID == "" {
		return fmt.Errorf("signal.group_id is required")
	}
	if s.AttachmentDir == "" {
		return fmt.Errorf("signal.config_path is required")
	}
	if s.Location == nil {
		return fmt.Errorf("timezone is not set")
	}
	return nil
}
