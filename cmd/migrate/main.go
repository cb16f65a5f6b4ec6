package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/migrate"
	"github.com/joho/godotenv"
)

type dbCommand func(ctx context.Context, sqlDB *sql.DB, dialect, dir string) error

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory, split per dialect (empty = embedded set)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		paths, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit(ctx, logg, "create migration", err)
		}
		for _, path := range paths {
			fmt.Println("created migration:", path)
		}
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit(ctx, logg, "validate migrations", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	commands := map[string]dbCommand{
		"up":      runGoose("up"),
		"down":    runGoose("down"),
		"status":  runGoose("status"),
		"version": migrateTo(*version),
	}
	run, ok := commands[*cmd]
	if !ok {
		exit(ctx, logg, "unknown -cmd value "+*cmd, nil)
	}

	cfg, err := config.LoadDB()
	if err != nil {
		exit(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})
	if cfg.DB.IsMemory() {
		exit(ctx, logg, "memory driver keeps no schema; nothing to migrate", nil)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "sql handle", err)
	}

	if err := run(ctx, sqlDB, migrate.DialectFor(cfg.DB.Driver), *dir); err != nil {
		exit(ctx, logg, "goose "+*cmd, err)
	}
	logg.Info(ctx, "migrate.done")
}

func runGoose(command string) dbCommand {
	return func(ctx context.Context, sqlDB *sql.DB, dialect, dir string) error {
		return migrate.Run(ctx, sqlDB, dialect, dir, command)
	}
}

func migrateTo(version string) dbCommand {
	return func(ctx context.Context, sqlDB *sql.DB, dialect, dir string) error {
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, dir, version)
	}
}

func exit(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", step)
	}
	logg.Error(ctx, "migrate.failed: "+step, err)
	os.Exit(1)
}
