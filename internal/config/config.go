package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile creates a configuration instance, reading the given file
// instead of searching the default locations when path is not empty
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/signal-mail-bridge/")
		v.AddConfigPath("$HOME/.signal-mail-bridge")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// Mail transport
	v.SetDefault("mail.imap.port", 993)
	v.SetDefault("mail.imap.mailbox", "INBOX")
	v.SetDefault("mail.imap.tls", true)
	v.SetDefault("mail.smtp.port", 465)
	v.SetDefault("mail.smtp.tls", true)
	v.SetDefault("mail.password_keyring", false)
	v.SetDefault("mail.forward_from", []string{})
	v.SetDefault("mail.forward_to", []string{})
	v.SetDefault("mail.admin_addresses", []string{})
	v.SetDefault("mail.dump_mbox", "")

	// Chat transport
	v.SetDefault("signal.cli", "signal-cli")
	v.SetDefault("signal.group_label", "signal group")
	v.SetDefault("signal.verbose", false)
	v.SetDefault("signal.timeout", "2m")

	// Processing
	v.SetDefault("bridge.attachment_max_size", DefaultAttachmentMaxSize)
	v.SetDefault("bridge.timezone", "Local")
	v.SetDefault("bridge.attachment_retention", "120h")

	// Forwarding ledger. Each run is a separate process, so "memory"
	// only deduplicates within one run.
	v.SetDefault("ledger.type", "sqlite")
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.ttl", "720h")
	v.SetDefault("ledger.sqlite_path", "/var/lib/signal-mail-bridge/ledger.db")
	v.SetDefault("ledger.mysql_dsn", "user:password@tcp(localhost:3306)/signal_mail_bridge")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
