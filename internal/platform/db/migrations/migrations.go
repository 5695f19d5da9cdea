// Package migrations embeds the SQL schema applied by db.Migrator.
package migrations

import "embed"

// FS holds the numbered *.sql files in this directory.
//
//go:embed *.sql
var FS embed.FS
