// Package migrations embeds the schema files applied by cmd/migrate.
package migrations

import "embed"

// BigQuery holds the numbered BigQuery migrations under bigquery/.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
