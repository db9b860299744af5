// Package migrations embeds the SQL schema applied on boot.
package migrations

import "embed"

// FS holds the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
