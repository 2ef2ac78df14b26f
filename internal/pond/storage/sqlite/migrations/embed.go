package migrations

import "embed"

// FS contains embedded SQLite migrations for pond storage.
//
//go:embed *.sql
var FS embed.FS
