package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// execer runs one migration file.
type execer func(ctx context.Context, sql string) error

// applyMigrations runs every embedded file under dir in lexical order.
// Each file must be idempotent (CREATE ... IF NOT EXISTS, seed with conflict skip).
func applyMigrations(ctx context.Context, dir string, exec execer, applied func(name string)) error {
	names, err := fs.Glob(migrationsFS, "migrations/"+dir+"/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if applied != nil {
			applied(name)
		}
	}
	return nil
}
