// Package migrations embeds the meshsim SQL schema into the binary.
//
// Importing this package for its side effect registers the files with the
// database package:
//
//	import _ "github.com/nerrad567/meshsim/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/meshsim/internal/infrastructure/database"
)

//go:embed *.up.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
}
