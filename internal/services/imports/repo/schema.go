package repo

import (
	"context"
	_ "embed"

	"laneledger/internal/modkit/repokit"
	perr "laneledger/internal/platform/errors"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the import pipeline DDL
func Schema() string { return schemaSQL }

// ApplySchema creates every import table that does not exist yet
func ApplySchema(ctx context.Context, q repokit.Queryer) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return perr.FromPostgres(err, "apply import schema")
	}
	return nil
}
