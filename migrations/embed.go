// Package migrations embeds the coordinator's SQL schema migrations.
package migrations

import "embed"

// FS holds every *.sql file in this directory at its root.
//
//go:embed *.sql
var FS embed.FS
