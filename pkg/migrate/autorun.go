package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/db/models"
	"github.com/koseken/game-trading/pkg/logger"
)

// openListingIndex mirrors the partial unique index in the transactions
// migration. AutoMigrate cannot express a WHERE clause.
const openListingIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_open_listing
ON transactions(listing_id) WHERE status IN ('pending','in_progress')`

// MaybeRunDev brings the schema up to date on startup when running in dev
// with GT_AUTO_MIGRATE set: goose for Postgres, AutoSchema for SQLite.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "migrate.dev_autoschema")
		return AutoSchema(client.DB().WithContext(ctx))
	}
	handle, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrations, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(handle, migrations, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.dev_autorun")
	return runner.Up(ctx)
}

// AutoSchema builds the marketplace tables with GORM's AutoMigrate. It backs
// SQLite dev databases and tests; Postgres always uses the SQL migrations.
func AutoSchema(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Listing{},
		&models.Transaction{},
		&models.Message{},
		&models.Review{},
		&models.TransactionRead{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := conn.Exec(openListingIndex).Error; err != nil {
		return fmt.Errorf("open listing index: %w", err)
	}
	return nil
}
