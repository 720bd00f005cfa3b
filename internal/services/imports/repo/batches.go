package repo

import (
	"context"
	"encoding/json"
	"time"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

const batchColumns = `
	id::text, user_id, source_type, r2_key, source_file_name, file_size, source_hash,
	idempotency_key, timezone_offset_minutes, replace_all, status::text, error_message,
	imported_at, completed_at, counts::text, warnings::text`

func scanBatch(r store.Row) (domain.Batch, error) {
	var (
		b        domain.Batch
		id       string
		status   string
		counts   string
		warnings string
	)
	if err := r.Scan(
		&id, &b.UserID, &b.SourceType, &b.R2Key, &b.SourceFileName, &b.FileSize, &b.SourceHash,
		&b.IdempotencyKey, &b.TimezoneOffsetMinutes, &b.ReplaceAll, &status, &b.ErrorMessage,
		&b.ImportedAt, &b.CompletedAt, &counts, &warnings,
	); err != nil {
		return b, err
	}
	var err error
	if b.ID, err = parseID(id); err != nil {
		return b, err
	}
	b.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(counts), &b.Counts); err != nil {
		return b, perr.Wrap(err, perr.ErrorCodeJSON, "decode batch counts")
	}
	if err := json.Unmarshal([]byte(warnings), &b.Warnings); err != nil {
		return b, perr.Wrap(err, perr.ErrorCodeJSON, "decode batch warnings")
	}
	return b, nil
}

// CreateBatch inserts a batch with zeroed counts
func (r *queries) CreateBatch(ctx context.Context, nb domain.NewBatch) (domain.Batch, error) {
	const sql = `
		INSERT INTO import_batches (
			id, user_id, source_type, r2_key, source_file_name, file_size, source_hash,
			idempotency_key, timezone_offset_minutes, replace_all, status, imported_at,
			counts, warnings
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::import_status, $12, '{}'::jsonb, '[]'::jsonb
		)
		RETURNING ` + batchColumns
	b, err := store.One(ctx, r.q, scanBatch, sql,
		uuid.New(), nb.UserID, domain.SourceTypeSQLite, nb.R2Key, nb.SourceFileName, nb.FileSize,
		nb.SourceHash, nb.IdempotencyKey, nb.TimezoneOffsetMinutes, nb.ReplaceAll, string(nb.Status),
		nb.ImportedAt,
	)
	if err != nil {
		return domain.Batch{}, perr.FromPostgres(err, "create import batch")
	}
	return b, nil
}

// GetBatch loads a batch by id
func (r *queries) GetBatch(ctx context.Context, id uuid.UUID) (domain.Batch, error) {
	b, err := store.One(ctx, r.q, scanBatch, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, id)
	if notFound(err) {
		return domain.Batch{}, perr.NotFoundf("import batch %s not found", id)
	}
	if err != nil {
		return domain.Batch{}, perr.FromPostgres(err, "get import batch")
	}
	return b, nil
}

// GetBatchByIdempotencyKey loads the batch a previous Start Import created
func (r *queries) GetBatchByIdempotencyKey(ctx context.Context, userID, key string) (domain.Batch, bool, error) {
	const sql = `SELECT ` + batchColumns + ` FROM import_batches WHERE user_id = $1 AND idempotency_key = $2`
	b, err := store.One(ctx, r.q, scanBatch, sql, userID, key)
	if notFound(err) {
		return domain.Batch{}, false, nil
	}
	if err != nil {
		return domain.Batch{}, false, perr.FromPostgres(err, "get import batch by idempotency key")
	}
	return b, true, nil
}

// UpdateStatus is one conditional patch guarded by the legal predecessors of `to`
func (r *queries) UpdateStatus(
	ctx context.Context, id uuid.UUID, to domain.Status, completedAt *time.Time, errorMessage *string,
) (bool, error) {
	from := domain.AllowedFrom(to)
	if len(from) == 0 {
		return false, perr.InvalidArgf("no transition leads to %s", to)
	}
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	const sql = `
		UPDATE import_batches
		SET status        = $2::import_status,
		    completed_at  = COALESCE($3, completed_at),
		    error_message = COALESCE($4, error_message)
		WHERE id = $1 AND status::text = ANY($5::text[])`
	tag, err := r.q.Exec(ctx, sql, id, string(to), completedAt, errorMessage, allowed)
	if err != nil {
		return false, perr.FromPostgres(err, "update import batch status")
	}
	return tag.RowsAffected() == 1, nil
}

// SetReplaceAll records whether the import replaces prior data
func (r *queries) SetReplaceAll(ctx context.Context, id uuid.UUID, replaceAll bool) error {
	_, err := r.q.Exec(ctx, `UPDATE import_batches SET replace_all = $2 WHERE id = $1`, id, replaceAll)
	return perr.WrapIf(err, perr.ErrorCodeDB, "set replace_all")
}

// CompleteBatch finalizes counts exactly once, on importing -> completed
func (r *queries) CompleteBatch(
	ctx context.Context, id uuid.UUID, counts domain.Counts, warnings []domain.Warning, completedAt time.Time,
) (bool, error) {
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	cj, err := jsonText(counts)
	if err != nil {
		return false, err
	}
	wj, err := jsonText(warnings)
	if err != nil {
		return false, err
	}
	const sql = `
		UPDATE import_batches
		SET status = 'completed', counts = $2::jsonb, warnings = $3::jsonb, completed_at = $4
		WHERE id = $1 AND status = 'importing'`
	tag, err := r.q.Exec(ctx, sql, id, cj, wj, completedAt)
	if err != nil {
		return false, perr.FromPostgres(err, "complete import batch")
	}
	return tag.RowsAffected() == 1, nil
}
