// Package repository provides the durable persistence layer: the batch
// record with its atomic completion counters, the per-player completion
// dedupe rows, and the append-only prediction records.
package repository

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

const moduleName = "repository"

// DialectorFactory builds a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = map[string]DialectorFactory{}
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

func init() {
	RegisterDialector("sqlite", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return sqlite.Open(cfg.DSN), nil
	})
	RegisterDialector("postgres", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(cfg.DSN), nil
	})
}

// OpenDB opens a gorm connection for the configured database type and
// applies the pool settings.
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialectorMutex.RLock()
	factory, ok := dialectorRegistry[cfg.Type]
	dialectorMutex.RUnlock()
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "no dialector registered for database type '%s'", cfg.Type)
	}

	dialector, err := factory(cfg)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to build dialector for '%s'", cfg.Type), err, false, false)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open %s database", cfg.Type), err, false, true)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to access underlying sql.DB", err, false, false)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	logger.Infof("Repository: opened %s database.", cfg.Type)
	return db, nil
}
