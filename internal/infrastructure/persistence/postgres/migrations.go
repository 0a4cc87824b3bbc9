package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Files are named NNN_name.up.sql and NNN_name.down.sql.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string

	// Set by Status.
	IsApplied bool
	AppliedAt time.Time
}

// GetMigrations returns the embedded migrations in ascending version order.
func GetMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		stem, ok := strings.CutSuffix(e.Name(), ".sql")
		if !ok || e.IsDir() {
			continue
		}
		base, direction, ok := cutLast(stem, ".")
		if !ok || (direction != "up" && direction != "down") {
			return nil, fmt.Errorf("%w: bad file name %q", ErrMigrationFailed, e.Name())
		}
		num, name, ok := strings.Cut(base, "_")
		version, err := strconv.Atoi(num)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("%w: bad version in %q", ErrMigrationFailed, e.Name())
		}

		body, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("%w: migration %d has no up file", ErrMigrationFailed, m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migrator applies the embedded migrations and tracks them in
// schema_migrations. Every step runs in its own transaction.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	loadErr    error
}

func NewMigrator(conn *Connection) *Migrator {
	migrations, err := GetMigrations()
	return &Migrator{conn: conn, migrations: migrations, loadErr: err}
}

// applied prepares the tracking table and reads which versions it holds.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	ddl := `CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := m.conn.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	done := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan %s: %w", migrationsTable, err)
		}
		done[version] = at
	}
	return done, rows.Err()
}

// Migrate applies what is pending and returns how many migrations ran. It
// stops at the first failure; earlier steps stay committed.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range pending(m.migrations, done) {
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+migrationsTable+` (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		ran++
	}
	return ran, nil
}

// Rollback reverts the newest applied migration. It returns the reverted
// version, or 0 when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	latest := 0
	for v := range done {
		latest = max(latest, v)
	}
	if latest == 0 {
		return 0, nil
	}

	i := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == latest })
	if i < 0 || m.migrations[i].DownSQL == "" {
		return 0, fmt.Errorf("%w: no down file for version %d", ErrMigrationFailed, latest)
	}
	down := m.migrations[i].DownSQL

	err = m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM `+migrationsTable+` WHERE version = $1`, latest)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: revert %d: %v", ErrMigrationFailed, latest, err)
	}
	return latest, nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return markApplied(m.migrations, done), nil
}

func pending(all []Migration, done map[int]time.Time) []Migration {
	var todo []Migration
	for _, mig := range all {
		if _, ok := done[mig.Version]; !ok {
			todo = append(todo, mig)
		}
	}
	return todo
}

// markApplied returns a copy of all with the applied fields filled in.
func markApplied(all []Migration, done map[int]time.Time) []Migration {
	out := slices.Clone(all)
	for i := range out {
		out[i].AppliedAt, out[i].IsApplied = done[out[i].Version]
	}
	return out
}
