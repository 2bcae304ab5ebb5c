// Package migrations holds the Postgres schema, applied by golang-migrate.
package migrations

import "embed"

// FS contains the versioned migration files.
//
//go:embed *.sql
var FS embed.FS
