package healthdata

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the postgres migrations with sqlite alternatives under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
