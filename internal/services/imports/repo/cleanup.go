package repo

import (
	"context"
	"fmt"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// DeleteChunk removes up to limit rows owned by userID. Canonical tables only
// lose imported rows; raw tables keep the rows of keepBatchID
func (r *queries) DeleteChunk(
	ctx context.Context, t domain.CleanupTable, userID string, keepBatchID uuid.UUID, limit int,
) (int64, error) {
	if limit <= 0 {
		return 0, perr.InvalidArgf("cleanup limit must be positive, got %d", limit)
	}
	table, keep := t.SQLName(), priorFilter(t)
	sql := fmt.Sprintf(`
		DELETE FROM %[1]s WHERE ctid IN (
			SELECT ctid FROM %[1]s WHERE user_id = $1 AND %[2]s LIMIT $3
		)`, table, keep)
	tag, err := r.q.Exec(ctx, sql, userID, keepBatchID, limit)
	if err != nil {
		return 0, perr.FromPostgresf(err, "cleanup %s", table)
	}
	return tag.RowsAffected(), nil
}

// PriorExists reports whether t still holds rows DeleteChunk would remove
func (r *queries) PriorExists(ctx context.Context, t domain.CleanupTable, userID string, keepBatchID uuid.UUID) (bool, error) {
	sql := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1 AND %s)`, t.SQLName(), priorFilter(t))
	ok, err := store.Scalar[bool](ctx, r.q, sql, userID, keepBatchID)
	if err != nil {
		return false, perr.FromPostgresf(err, "scan %s", t.SQLName())
	}
	return ok, nil
}

// priorFilter matches rows of earlier imports; $2 is the batch being imported
func priorFilter(t domain.CleanupTable) string {
	if t.Raw() {
		return "batch_id <> $2"
	}
	return "import_batch_id IS NOT NULL AND import_batch_id <> $2"
}
