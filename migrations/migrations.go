// Package migrations embeds per-driver schema migration files so a
// single binary carries its own schema history.
package migrations

import "embed"

//go:embed sqlite/*.sql
var Sqlite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS
