// Package migrations embeds the SQL schema applied at startup by
// database.RunMigrations.
package migrations

import "embed"

// FS holds the *.up.sql files in lexical order of application.
//
//go:embed *.sql
var FS embed.FS
