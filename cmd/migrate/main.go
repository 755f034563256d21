package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&f.dir, "dir", "", "migrations directory (empty uses the migrations built into the binary)")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	// create and validate work on files only and must not need a database.
	switch f.cmd {
	case "create", "validate":
		if err := runOffline(f); err != nil {
			logg.Error(context.Background(), "migration "+f.cmd+" failed", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	source := f.dir
	if source == "" {
		source = "embedded"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"driver": cfg.DB.Driver,
		"cmd":    f.cmd,
		"source": source,
	})

	if err := run(ctx, cfg, logg, f); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
}

func runOffline(f flags) error {
	dir := f.dir
	if dir == "" {
		dir = migrate.DefaultDir
	}
	if f.cmd == "validate" {
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed:", dir)
		return nil
	}
	if f.name == "" {
		return fmt.Errorf("missing -name for create")
	}
	path, err := migrate.CreateSQLMigration(dir, f.name, time.Now())
	if err != nil {
		return err
	}
	fmt.Println("created migration:", path)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, f flags) error {
	if cfg.DB.IsSQLite() {
		return fmt.Errorf("%w: start the api with MARKETPLACE_DB_DRIVER=sqlite to sync the schema", migrate.ErrAutoMigrateOnly)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}

	opts := migrate.Options{Dir: f.dir, Driver: cfg.DB.Driver}
	var results []*goose.MigrationResult
	switch f.cmd {
	case "up", "down", "status":
		results, err = migrate.Run(ctx, sqlDB, opts, f.cmd)
	case "version":
		if f.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		results, err = migrate.MigrateToVersion(ctx, sqlDB, opts, f.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", f.cmd)
	}

	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entry := logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"path":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		logg.Info(entry, "migration."+f.cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "count", len(results)), "migration complete")
	return nil
}
