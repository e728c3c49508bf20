package repository

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
)

// NewMigratedDB opens the configured database and applies schema migrations.
func NewMigratedDB(dbCfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := OpenDB(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, dbCfg.Type); err != nil {
		return nil, err
	}
	return db, nil
}

// Module provides the migrated database connection and the repositories.
var Module = fx.Module("repository",
	fx.Provide(NewMigratedDB),
	fx.Provide(
		fx.Annotate(NewGormRepository,
			fx.As(new(BatchRepository)),
			fx.As(new(PredictionRepository)),
		),
	),
)
