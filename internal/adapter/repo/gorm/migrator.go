package gormrepo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gorm.io/gorm"
)

var ErrMigrationChanged = errors.New("applied migration changed on disk")

type migration struct {
	Version  string
	SQL      string
	Checksum string
}

// loadMigrations reads every *.sql file in dir, ordered by file name.
func loadMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := blake3.Sum256(content)
		out = append(out, migration{
			Version:  strings.TrimSuffix(name, ".sql"),
			SQL:      string(content),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	return out, nil
}

// ApplyMigrations runs pending migrations from dir, each in its own
// transaction. A migration that was applied with different content fails
// with ErrMigrationChanged.
func ApplyMigrations(ctx context.Context, db *gorm.DB, dir string) error {
	const createMetaTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  checksum TEXT NOT NULL DEFAULT '',
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	if err := db.WithContext(ctx).Exec(createMetaTableSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var applied []string
		if err := db.WithContext(ctx).Table("schema_migrations").Where("version = ?", m.Version).Pluck("checksum", &applied).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if len(applied) > 0 {
			if applied[0] != "" && applied[0] != m.Checksum {
				return fmt.Errorf("%w: %s", ErrMigrationChanged, m.Version)
			}
			continue
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.SQL).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
			if err := tx.Exec(`INSERT INTO schema_migrations(version, checksum, applied_at) VALUES (?, ?, ?)`, m.Version, m.Checksum, time.Now()).Error; err != nil {
				return fmt.Errorf("record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
