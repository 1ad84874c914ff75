// Package migrations embeds the SQL migration files so binaries can run
// them without a deployed migrations directory.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
