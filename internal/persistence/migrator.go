package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrator applies SQL files from a directory in version order. Files
// follow the {version}_{name}.up.sql / {version}_{name}.down.sql naming.
type Migrator struct {
	db  *sql.DB
	dir string
}

// migrationFile is one parsed entry from the migrations directory.
type migrationFile struct {
	version string
	name    string
}

func NewMigrator(db *sql.DB, migrationsDir string) *Migrator {
	return &Migrator{db: db, dir: migrationsDir}
}

// Up applies every migration not yet recorded in schema_migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}

	files, err := m.scanDir()
	if err != nil {
		return fmt.Errorf("scan migrations dir: %w", err)
	}

	done, err := m.appliedSet(ctx)
	if err != nil {
		return fmt.Errorf("read applied versions: %w", err)
	}

	for _, mf := range files {
		if done[mf.version] {
			continue
		}
		if err := m.apply(ctx, mf); err != nil {
			return err
		}
		log.Printf("INFO: migration %s applied", mf.name)
	}
	return nil
}

// Down rolls back the most recently applied migration only.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	var version, name string
	row := m.db.QueryRowContext(ctx, `
		SELECT version, filename FROM public.schema_migrations
		ORDER BY version DESC LIMIT 1
	`)
	switch err := row.Scan(&version, &name); {
	case err == sql.ErrNoRows:
		log.Println("INFO: nothing to roll back")
		return nil
	case err != nil:
		return fmt.Errorf("find latest migration: %w", err)
	}

	sqlText, err := m.readSQL(strings.Replace(name, ".up.sql", ".down.sql", 1))
	if err != nil {
		return err
	}

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("exec rollback of %s: %w", version, err)
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM public.schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("INFO: migration %s rolled back", version)
	return nil
}

func (m *Migrator) apply(ctx context.Context, mf migrationFile) error {
	sqlText, err := m.readSQL(mf.name)
	if err != nil {
		return err
	}
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("exec migration %s: %w", mf.name, err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO public.schema_migrations (version, filename) VALUES ($1, $2)`,
			mf.version, mf.name)
		if err != nil {
			return fmt.Errorf("record migration %s: %w", mf.version, err)
		}
		return nil
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *Migrator) readSQL(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS public.schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) appliedSet(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM public.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		set[v] = true
	}
	return set, rows.Err()
}

// scanDir returns the up-migrations sorted by version.
func (m *Migrator) scanDir() ([]migrationFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var files []migrationFile
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".up.sql") {
			continue
		}
		version, _, ok := strings.Cut(n, "_")
		if !ok {
			version = n
		}
		files = append(files, migrationFile{version: version, name: n})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}
