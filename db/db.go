// Package db embeds the schema migrations applied at startup by pg.Migrate.
package db

import "embed"

// Dir is the migrations directory inside Migrations.
const Dir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
