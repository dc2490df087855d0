package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/logging"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

// InspectFlags contains the command line flags of the inspect commands
type InspectFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Used when no config file is given
	GroupID  string
	Label    string
	Timezone string
}

// BuildInspectContainer creates a dependency injection container holding
// only the offline pipeline stages. No transport is constructed.
func BuildInspectContainer(flags *InspectFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *InspectFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *InspectFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *InspectFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register processing settings, unvalidated since no transport runs
	if err := container.Provide(func(cfg *config.Config) (config.Settings, error) {
		return cfg.GetSettings()
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *InspectFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("signal.group_id", flags.GroupID)
	if flags.Label != "" {
		v.Set("signal.group_label", flags.Label)
	}
	if flags.Timezone != "" {
		v.Set("bridge.timezone", flags.Timezone)
	}

	return config.NewFromViper(v)
}
