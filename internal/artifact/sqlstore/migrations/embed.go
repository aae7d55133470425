// Package migrations embeds the SQL migrations for each supported dialect.
package migrations

import "embed"

// SQLite contains the sqlite migrations.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres contains the postgres migrations.
//
//go:embed postgres/*.sql
var Postgres embed.FS
