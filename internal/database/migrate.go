package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// currentVersion reads the highest applied migration, creating the
// tracking table on first use.
func currentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}

	var version int
	err = pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

// listMigrations returns migration files with the given suffix
// (".up.sql" or ".down.sql") keyed by version, sorted ascending.
func listMigrations(suffix string) ([]int, map[int]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int]string)
	var versions []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%03d_", &version); err != nil {
			continue
		}
		byVersion[version] = name
		versions = append(versions, version)
	}
	sort.Ints(versions)
	return versions, byVersion, nil
}

func applyInTx(ctx context.Context, pool *pgxpool.Pool, filename, record string, args ...any) error {
	sql, err := migrationsFS.ReadFile("migrations/" + filename)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s: %w", filename, err)
	}
	if _, err := tx.Exec(ctx, record, args...); err != nil {
		return fmt.Errorf("record %s: %w", filename, err)
	}
	return tx.Commit(ctx)
}

// Migrate applies all pending up migrations in version order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	versions, files, err := listMigrations(".up.sql")
	if err != nil {
		return err
	}

	for _, version := range versions {
		if version <= current {
			continue
		}
		err := applyInTx(ctx, pool, files[version],
			"INSERT INTO schema_migrations (version) VALUES ($1)", version)
		if err != nil {
			return err
		}
		log.Info().Int("version", version).Str("file", files[version]).Msg("applied migration")
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}
	if current == 0 {
		log.Info().Msg("no migrations to roll back")
		return nil
	}

	_, files, err := listMigrations(".down.sql")
	if err != nil {
		return err
	}
	filename, ok := files[current]
	if !ok {
		return fmt.Errorf("no down migration for version %d", current)
	}

	err = applyInTx(ctx, pool, filename,
		"DELETE FROM schema_migrations WHERE version = $1", current)
	if err != nil {
		return err
	}
	log.Info().Int("version", current).Str("file", filename).Msg("rolled back migration")
	return nil
}
