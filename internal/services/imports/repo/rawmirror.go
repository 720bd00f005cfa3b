package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"laneledger/internal/core/chunk"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

const stagedFramesTable = "import_staged_frames"

// InsertRawRow mirrors one verbatim source row and reports whether it was new
func (r *queries) InsertRawRow(ctx context.Context, t domain.RawTable, in domain.RawInsert, at time.Time) (bool, error) {
	n, err := r.insertVerbatim(ctx, t.SQLName(), in.UserID, in.BatchID, []domain.SourceRow{in.Row}, at)
	return n == 1, err
}

// InsertRawRows mirrors rows, one multi-row statement per chunk. Rows whose
// sqliteId is already mirrored for the batch are skipped; the count is of
// rows actually written
func (r *queries) InsertRawRows(
	ctx context.Context, t domain.RawTable, userID string, batchID uuid.UUID, rows []domain.SourceRow, at time.Time,
) (int64, error) {
	var total int64
	err := chunk.Each(rows, r.rawChunk, func(c []domain.SourceRow) error {
		n, err := r.insertVerbatim(ctx, t.SQLName(), userID, batchID, c, at)
		total += n
		return err
	})
	return total, err
}

// LoadRawRows returns the rows mirrored for one batch in insert order
func (r *queries) LoadRawRows(
	ctx context.Context, t domain.RawTable, userID string, batchID uuid.UUID,
) ([]domain.SourceRow, error) {
	return r.loadVerbatim(ctx, t.SQLName(), userID, batchID)
}

// StageFrames holds frame rows until the batch is finalized, skipping
// frames already staged under the same sqliteId
func (r *queries) StageFrames(
	ctx context.Context, userID string, batchID uuid.UUID, rows []domain.SourceRow, at time.Time,
) (int64, error) {
	var total int64
	err := chunk.Each(rows, r.rawChunk, func(c []domain.SourceRow) error {
		n, err := r.insertVerbatim(ctx, stagedFramesTable, userID, batchID, c, at)
		total += n
		return err
	})
	return total, err
}

// LoadStagedFrames returns the staged frames of a batch in insert order
func (r *queries) LoadStagedFrames(ctx context.Context, userID string, batchID uuid.UUID) ([]domain.SourceRow, error) {
	return r.loadVerbatim(ctx, stagedFramesTable, userID, batchID)
}

// DropStagedFrames clears staging once a batch is terminal
func (r *queries) DropStagedFrames(ctx context.Context, batchID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM import_staged_frames WHERE batch_id = $1`, batchID)
	return perr.WrapIf(err, perr.ErrorCodeDB, "drop staged frames")
}

// insertVerbatim writes rows with one VALUES tuple each and returns how many
// were new; table comes from a closed enum
func (r *queries) insertVerbatim(
	ctx context.Context, table, userID string, batchID uuid.UUID, rows []domain.SourceRow, at time.Time,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (user_id, batch_id, sqlite_id, raw, imported_at) VALUES ", table)
	args := make([]any, 0, 3+2*len(rows))
	args = append(args, userID, batchID, at)
	for i, row := range rows {
		raw, err := jsonText(row)
		if err != nil {
			return 0, err
		}
		var sid *int64
		if id, ok := row.ID(); ok {
			sid = &id
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($1, $2, $%d, $%d::jsonb, $3)", n+1, n+2)
		args = append(args, sid, raw)
	}
	sb.WriteString(" ON CONFLICT (user_id, batch_id, sqlite_id) DO NOTHING")
	tag, err := r.q.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, perr.FromPostgresf(err, "insert into %s", table)
	}
	return tag.RowsAffected(), nil
}

func (r *queries) loadVerbatim(ctx context.Context, table, userID string, batchID uuid.UUID) ([]domain.SourceRow, error) {
	sql := fmt.Sprintf(`SELECT raw::text FROM %s WHERE user_id = $1 AND batch_id = $2 ORDER BY id`, table)
	out, err := store.Many(ctx, r.q, scanSourceRow, sql, userID, batchID)
	if err != nil {
		return nil, perr.FromPostgresf(err, "load %s", table)
	}
	return out, nil
}

// scanSourceRow keeps numbers as json.Number so millisecond dates and ids stay exact
func scanSourceRow(row store.Row) (domain.SourceRow, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	out := domain.SourceRow{}
	if err := dec.Decode(&out); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode raw row")
	}
	return out, nil
}
