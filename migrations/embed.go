// Package migrations embeds the SQL schema migrations of the validation service.
package migrations

import "embed"

// FS holds every *.up.sql migration, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
