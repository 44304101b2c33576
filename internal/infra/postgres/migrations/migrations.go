package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is populated by the numbered files in this package; bun names
// each migration after the file that registers it.
var Migrations = migrate.NewMigrations()
