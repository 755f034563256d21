package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// ErrAutoMigrateOnly is returned for SQLite: the goose files use Postgres
// DDL, so SQLite schemas come from AutoMigrate instead.
var ErrAutoMigrateOnly = errors.New("sqlite schemas are managed by AutoMigrate")

// Options selects where migrations are read from and which dialect runs them.
// An empty Dir means the migrations compiled into the binary.
type Options struct {
	Dir    string
	Driver string
}

// Source returns the migration filesystem for dir, or the embedded set when
// dir is empty.
func Source(dir string) fs.FS {
	if dir == "" {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			panic(err)
		}
		return sub
	}
	return os.DirFS(dir)
}

func dialectFor(driver string) (goose.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", config.DBDriverPostgres:
		return goose.DialectPostgres, nil
	case config.DBDriverSQLite:
		return "", ErrAutoMigrateOnly
	default:
		return "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

// NewProvider builds a goose provider for db.
func NewProvider(db *sql.DB, opts Options) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	dialect, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, Source(opts.Dir))
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return provider, nil
}

// Run executes up, down or status and returns the migrations it touched.
func Run(ctx context.Context, db *sql.DB, opts Options, command string) ([]*goose.MigrationResult, error) {
	provider, err := NewProvider(db, opts)
	if err != nil {
		return nil, err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return results, fmt.Errorf("goose up: %w", err)
		}
		return results, nil
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return []*goose.MigrationResult{result}, nil
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		results := make([]*goose.MigrationResult, 0, len(statuses))
		for _, st := range statuses {
			results = append(results, &goose.MigrationResult{Source: st.Source, Direction: string(st.State)})
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unknown migration command %q", command)
	}
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, opts Options, targetVersion string) ([]*goose.MigrationResult, error) {
	target, err := ParseVersion(targetVersion)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(db, opts)
	if err != nil {
		return nil, err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err := provider.UpTo(ctx, target)
		if err != nil {
			return results, fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return results, nil
	default:
		results, err := provider.DownTo(ctx, target)
		if err != nil {
			return results, fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return results, nil
	}
}

// ParseVersion accepts a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return v, nil
}
