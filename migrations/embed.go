// Package migrations embeds the goose migrations for each SQL backend.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
