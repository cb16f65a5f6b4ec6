package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at startup when running in dev with
// LICENSEGATE_AUTO_MIGRATE, or always for sqlite files which have no separate migrate step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || cfg.DB.IsMemory() {
		return nil
	}
	if !cfg.DB.IsSQLite() && !(cfg.App.IsDev() && cfg.App.AutoMigrate) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := DialectFor(cfg.DB.Driver)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	logg.Info(ctx, "migrations.autorun.start")

	if err := Run(ctx, sqlDB, dialect, EmbeddedDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	version, err := CurrentVersion(sqlDB, dialect)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "migrations.autorun.done")
	return nil
}
