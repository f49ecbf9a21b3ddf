package migrations

import "embed"

// Migrations holds the SQL migration files, compiled into the binary so a
// deployment is a single artifact.
//
//go:embed *.sql
var Migrations embed.FS
