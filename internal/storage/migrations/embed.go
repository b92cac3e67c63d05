// Package migrations carries the embedded schema files and applies
// them at startup. Migrations are idempotent: every statement uses
// IF NOT EXISTS.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
