package migrations

import "embed"

// FS contains embedded SQLite migrations for the checksum cache.
//
//go:embed *.sql
var FS embed.FS
