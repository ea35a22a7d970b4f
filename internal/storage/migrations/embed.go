package migrations

import "embed"

// embedded holds the migrations of both stores, one directory per store.
// Files are named NNN_description.sql; NNN is the schema version.
//
//go:embed postgres/*.sql clickhouse/*.sql
var embedded embed.FS

const (
	postgresDir   = "postgres"
	clickhouseDir = "clickhouse"
)
