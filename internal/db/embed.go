package db

import "embed"

// EmbedMigrations holds the embedded run-history schema migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
