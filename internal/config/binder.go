package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// DatabaseConfig is the concrete database configuration bound from the
// driver-keyed "database" section of the YAML.
type DatabaseConfig struct {
	// Type selects the dialector: "sqlite" or "postgres".
	Type string `yaml:"type"`
	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`
	// MaxOpenConns bounds the connection pool (0 = driver default).
	MaxOpenConns int `yaml:"max_open_conns"`
	// MaxIdleConns bounds idle pooled connections (0 = driver default).
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// BindProperties binds a loosely typed property map (such as the "database"
// YAML section) onto a target struct using mapstructure with yaml tag names.
// Weakly typed input is allowed so string values convert to numbers and bools.
func BindProperties(props map[string]interface{}, target interface{}) error {
	if len(props) == 0 {
		return nil
	}

	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(props); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}

	return nil
}

// BindDatabaseConfig extracts the concrete DatabaseConfig from the loaded
// configuration. A missing section defaults to an in-repo sqlite file so the
// system runs without external infrastructure.
func BindDatabaseConfig(cfg *Config) (DatabaseConfig, error) {
	dbCfg := DatabaseConfig{
		Type: "sqlite",
		DSN:  "props.db",
	}
	if err := BindProperties(cfg.Props.Database, &dbCfg); err != nil {
		return DatabaseConfig{}, err
	}
	return dbCfg, nil
}
