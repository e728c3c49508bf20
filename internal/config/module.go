package config

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also sets the global logger level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Props.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Props.System.Logging.Level)

	return cfg, nil
}

// Module provides the configuration to the Fx graph.
var Module = fx.Module("config",
	fx.Provide(NewConfigProvider),
	fx.Provide(BindDatabaseConfig),
)
