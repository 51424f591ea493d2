// Package migrations embeds the rabbitlink SQL schema into the binary.
//
// Apply it with:
//
//	n, err := db.Migrator(migrations.FS()).Up(ctx)
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migration files. They sit at the root of the FS.
func FS() fs.FS {
	return files
}
