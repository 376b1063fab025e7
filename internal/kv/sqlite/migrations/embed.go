// Package migrations embeds the SQLite schema for the kv store.
package migrations

import "embed"

// FS holds the SQL migration files applied by sqlite.Open.
//
//go:embed *.sql
var FS embed.FS
