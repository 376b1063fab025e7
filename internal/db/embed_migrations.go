package db

import "embed"

// MigrationFS embeds the golang-migrate SQL files from internal/db/migrations.
// Used by internal/db/migrate (cmd/migrate) to create the kv_records table.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
