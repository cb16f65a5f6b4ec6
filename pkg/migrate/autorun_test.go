package migrate_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/db/models"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/migrate"
)

func TestMaybeRunDevAppliesEmbeddedMigrationsOnSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		App: config.AppConfig{Env: "prod"},
		DB:  config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "licenses.db")},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	client, err := db.New(ctx, cfg.DB, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, migrate.MaybeRunDev(ctx, cfg, logg, client))
	assert.True(t, client.DB().Migrator().HasTable("licenses"))

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	version, err := migrate.CurrentVersion(sqlDB, "sqlite3")
	require.NoError(t, err)
	assert.Equal(t, int64(20250301120000), version)

	// re-running is a no-op
	require.NoError(t, migrate.MaybeRunDev(ctx, cfg, logg, client))
}

func TestSQLiteSchemaRoundTripsTimestamps(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		App: config.AppConfig{Env: "prod"},
		DB:  config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "licenses.db")},
	}
	client, err := db.New(ctx, cfg.DB, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, migrate.MaybeRunDev(ctx, cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), client))

	created := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	expires := created.AddDate(1, 0, 0)
	require.NoError(t, client.DB().Create(&models.License{
		Key: "LIC-AAAA-BBBB-CCCC", Owner: "alice", Active: true, CreatedAt: created, ExpiresAt: &expires,
	}).Error)

	var row models.License
	require.NoError(t, client.DB().Where("key = ?", "LIC-AAAA-BBBB-CCCC").Take(&row).Error)
	assert.True(t, created.Equal(row.CreatedAt))
	require.NotNil(t, row.ExpiresAt)
	assert.True(t, expires.Equal(*row.ExpiresAt))

	// rows written without an explicit created_at take the column default
	require.NoError(t, client.DB().Exec("INSERT INTO licenses (key, owner) VALUES (?, ?)", "LIC-0000-0000-0001", "bob").Error)
	var defaulted models.License
	require.NoError(t, client.DB().Where("key = ?", "LIC-0000-0000-0001").Take(&defaulted).Error)
	assert.False(t, defaulted.CreatedAt.IsZero())
	assert.Nil(t, defaulted.ExpiresAt)
}

func TestRunRefusesReset(t *testing.T) {
	cfg := config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "licenses.db")}
	client, err := db.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Error(t, migrate.Run(context.Background(), sqlDB, "sqlite3", migrate.EmbeddedDir, "reset"))
}

func TestMaybeRunDevSkipsPostgresOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}, DB: config.DBConfig{Driver: "postgres"}}
	assert.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, nil, nil))
}
