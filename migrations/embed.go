// Package migrations embeds the SQL schema files shipped with the binary.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
