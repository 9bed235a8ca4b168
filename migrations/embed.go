// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds the *.up.sql files applied by database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
