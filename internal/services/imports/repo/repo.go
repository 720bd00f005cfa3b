// Package repo provides the Postgres persistence for the import pipeline
package repo

import (
	"encoding/json"
	"errors"

	"laneledger/internal/core/chunk"
	"laneledger/internal/modkit/repokit"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// Repo is the full imports persistence surface used by the service layer
type Repo interface {
	domain.BatchStore
	domain.NonceStore
	domain.RawStore
	domain.CleanupStore
	domain.CanonicalStore
}

type (
	// PG is a Postgres implementation of the imports repo
	PG struct {
		// RawChunk bounds the rows of one mirror insert, zero means chunk.DefaultRows
		RawChunk int
	}
	queries struct {
		q        repokit.Queryer
		rawChunk int
	}
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (p PG) Bind(q repokit.Queryer) Repo {
	n := p.RawChunk
	if n <= 0 {
		n = chunk.DefaultRows
	}
	return &queries{q: q, rawChunk: n}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, perr.Wrapf(err, perr.ErrorCodeDB, "bad uuid %q from store", s)
	}
	return id, nil
}

func notFound(err error) bool { return errors.Is(err, perr.ErrNotFound) }

// jsonText renders v for a ::jsonb parameter
func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "encode jsonb")
	}
	return string(b), nil
}

// jsonPtr is jsonText for optional values, nil stays SQL NULL
func jsonPtr[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := jsonText(v)
	return &s, err
}
