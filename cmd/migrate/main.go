package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"yt-hotness/internal/config"
	"yt-hotness/internal/db"
	"yt-hotness/pkg/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"
	cmdStatus  = "status"

	usage = "usage: migrate [up|down|version|status] [steps]"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	connectFunc    = db.Connect
)

var migrationFile = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type migrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type migrator struct {
	db     migrationDB
	logger *zap.Logger
}

func main() {
	_ = loadEnvFunc()

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	command := os.Args[1]
	steps, err := parseSteps(command, os.Args[2:])
	if err != nil {
		log.Fatal(err)
	}

	cfg := loadConfigFunc()
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if err := cfg.Database.Validate(); err != nil {
		log.Fatalf("invalid database config: %v", err)
	}
	logger, err := logging.New(logging.Config{ServiceName: "yt-hotness-migrate", Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := connectFunc(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		logger.Fatal("load migrations", zap.Error(err))
	}

	if err := run(ctx, newMigrator(pool, logger), command, steps, migrations); err != nil {
		logger.Fatal("migrate "+command, zap.Error(err))
	}
}

func newMigrator(pool *pgxpool.Pool, logger *zap.Logger) *migrator {
	return &migrator{db: pool, logger: logger}
}

func parseSteps(command string, args []string) (int, error) {
	switch command {
	case cmdUp, cmdVersion, cmdStatus:
		return 0, nil
	case cmdDown:
		if len(args) == 0 {
			return 1, nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid down steps: %q", args[0])
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unknown command %q. %s", command, usage)
	}
}

func run(ctx context.Context, m *migrator, command string, steps int, migrations []migration) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	switch command {
	case cmdUp:
		applied, err := m.applyUp(ctx, migrations)
		if err != nil {
			return err
		}
		m.logger.Info("migrations up complete", zap.Int("applied", applied))
	case cmdDown:
		rolledBack, err := m.applyDown(ctx, migrations, steps)
		if err != nil {
			return err
		}
		m.logger.Info("migrations down complete", zap.Int("rolled_back", rolledBack))
	case cmdVersion:
		version, name, err := m.currentVersion(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			m.logger.Info("no migrations applied")
			return nil
		}
		m.logger.Info("current version", zap.Int64("version", version), zap.String("name", name))
	case cmdStatus:
		applied, err := m.appliedVersions(ctx)
		if err != nil {
			return err
		}
		for _, mig := range migrations {
			_, ok := applied[mig.Version]
			m.logger.Info("migration", zap.Int64("version", mig.Version), zap.String("name", mig.Name), zap.Bool("applied", ok))
		}
	}
	return nil
}

func (m *migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	index := make(map[int64]*migration)
	for _, p := range paths {
		matches := migrationFile.FindStringSubmatch(p)
		if matches == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}
		name, direction := matches[2], matches[3]

		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		mig, ok := index[version]
		if !ok {
			mig = &migration{Version: version, Name: name}
			index[version] = mig
		} else if mig.Name != name {
			return nil, fmt.Errorf("conflicting names for version %d: %s vs %s", version, mig.Name, name)
		}

		target := &mig.UpSQL
		if direction == "down" {
			target = &mig.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = text
	}

	out := make([]migration, 0, len(index))
	for _, mig := range index {
		if mig.UpSQL == "" || mig.DownSQL == "" {
			return nil, fmt.Errorf("migration version %d must include both up and down files", mig.Version)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *migrator) appliedVersions(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := m.db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

// inTx runs stmt and the bookkeeping statement atomically.
func (m *migrator) inTx(ctx context.Context, stmt, bookkeeping string, args ...any) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (m *migrator) applyUp(ctx context.Context, migrations []migration) (int, error) {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.inTx(ctx, mig.UpSQL, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
		if err != nil {
			return count, fmt.Errorf("version %d up failed: %w", mig.Version, err)
		}
		m.logger.Info("applied migration", zap.Int64("version", mig.Version), zap.String("name", mig.Name))
		count++
	}
	return count, nil
}

func (m *migrator) applyDown(ctx context.Context, migrations []migration, steps int) (int, error) {
	if steps <= 0 {
		return 0, errors.New("steps must be > 0")
	}

	byVersion := make(map[int64]migration, len(migrations))
	for _, mig := range migrations {
		byVersion[mig.Version] = mig
	}

	rows, err := m.db.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}

	count := 0
	for _, version := range versions {
		mig, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("cannot find migration source for applied version %d", version)
		}
		if err := m.inTx(ctx, mig.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version); err != nil {
			return count, fmt.Errorf("version %d down failed: %w", mig.Version, err)
		}
		m.logger.Info("rolled back migration", zap.Int64("version", mig.Version), zap.String("name", mig.Name))
		count++
	}
	return count, nil
}

func (m *migrator) currentVersion(ctx context.Context) (int64, string, error) {
	var version int64
	var name string
	err := m.db.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return version, name, nil
}
