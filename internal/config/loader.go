package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

const moduleName = "config"

// LoadConfig loads configuration from the embedded YAML file, a .env file and
// environment variables, in increasing precedence. It is expected to be
// called once during startup.
//
// envFilePath: The path to the .env file ("" loads the default .env if present).
// embeddedConfig: The embedded configuration bytes.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		// Unmarshal directly over the defaults. yaml.v3 leaves fields absent
		// from the document untouched, which gives the desired merge.
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
		}
	}
	cfg.EmbeddedConfig = embeddedConfig

	overrideFromEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideFromEnv applies environment-variable overrides for the settings
// that differ per deployment.
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("PROPS_LOG_LEVEL"); v != "" {
		cfg.Props.System.Logging.Level = v
	}
	if v := os.Getenv("PROPS_TIMEZONE"); v != "" {
		cfg.Props.System.Timezone = v
	}
	if v := os.Getenv("PROPS_REDIS_ADDR"); v != "" {
		cfg.Props.Queue.Addr = v
	}
	if v := os.Getenv("PROPS_REDIS_PASSWORD"); v != "" {
		cfg.Props.Queue.Password = v
	}
	if v := os.Getenv("PROPS_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Props.Queue.DB = n
		} else {
			logger.Warnf("Ignoring non-numeric PROPS_REDIS_DB value '%s'.", v)
		}
	}
	if v := os.Getenv("PROPS_DB_TYPE"); v != "" {
		cfg.Props.Database["type"] = v
	}
	if v := os.Getenv("PROPS_DB_DSN"); v != "" {
		cfg.Props.Database["dsn"] = v
	}
	if v := os.Getenv("PROPS_DISPATCH_MODE"); v != "" {
		cfg.Props.Dispatch.Mode = v
	}
	if v := os.Getenv("PROPS_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Props.Worker.Concurrency = n
		} else {
			logger.Warnf("Ignoring invalid PROPS_WORKER_CONCURRENCY value '%s'.", v)
		}
	}
}

// validate rejects configurations the components cannot run with.
func validate(cfg *Config) error {
	p := cfg.Props
	if p.Dispatch.Mode != "SINGLE" && p.Dispatch.Mode != "MULTI" {
		return exception.NewBatchErrorf(moduleName, "invalid dispatch mode '%s' (want SINGLE or MULTI)", p.Dispatch.Mode)
	}
	if p.Gate.PollIntervalSeconds <= 0 {
		return exception.NewBatchErrorf(moduleName, "gate poll_interval_seconds must be positive, got %d", p.Gate.PollIntervalSeconds)
	}
	if p.Worker.Concurrency <= 0 {
		return exception.NewBatchErrorf(moduleName, "worker concurrency must be positive, got %d", p.Worker.Concurrency)
	}
	if p.Worker.TargetUtilization <= 0 || p.Worker.TargetUtilization > 1 {
		return exception.NewBatchErrorf(moduleName, "worker target_utilization must be in (0, 1], got %g", p.Worker.TargetUtilization)
	}
	if p.Ensemble.Quorum < 2 {
		return exception.NewBatchErrorf(moduleName, "ensemble quorum must be at least 2, got %d", p.Ensemble.Quorum)
	}
	if p.Retry.Message.MaxAttempts < 1 {
		return exception.NewBatchErrorf(moduleName, "message retry max_attempts must be at least 1, got %d", p.Retry.Message.MaxAttempts)
	}
	return nil
}
