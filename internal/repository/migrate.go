package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations to the database.
func Migrate(db *gorm.DB, dbType string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to open embedded migrations", err, false, false)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to access underlying sql.DB for migration", err, false, false)
	}

	var driver database.Driver
	switch dbType {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	case "postgres":
		driver, err = migratepg.WithInstance(sqlDB, &migratepg.Config{})
	default:
		return exception.NewBatchErrorf(moduleName, "no migration driver for database type '%s'", dbType)
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to create %s migration driver", dbType), err, false, false)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create migrator", err, false, false)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewBatchError(moduleName, "failed to apply migrations", err, false, false)
	}

	logger.Infof("Repository: schema migrations applied (%s).", dbType)
	return nil
}
