package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	healthdata "github.com/goliatone/go-healthdata"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// root is where the embedded migrations live. Postgres files sit at the
// root, sqlite alternatives under sqlite/.
const root = "data/sql/migrations"

// Apply registers the migrations for dialect on client and runs every
// pending one.
func Apply(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	fsys, err := Filesystem(dialect)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(fsys)
	return client.Migrate(ctx)
}

// Filesystem returns the migrations for dialect. It fails when the dialect
// is unknown or has no up migrations.
func Filesystem(dialect string) (fs.FS, error) {
	normalized, err := NormalizeDialect(dialect)
	if err != nil {
		return nil, err
	}
	path := root
	if normalized == DialectSQLite {
		path = root + "/sqlite"
	}
	fsys, err := fs.Sub(healthdata.GetMigrationsFS(), path)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", path, err)
	}
	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", path)
	}
	return fsys, nil
}

// NormalizeDialect maps driver names onto the two supported dialects.
func NormalizeDialect(dialect string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(dialect)) {
	case DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	case DialectPostgres, "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}
