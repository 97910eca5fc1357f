// Package migrations embeds the journal schema applied by goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
