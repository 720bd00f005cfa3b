package service

import (
	"context"

	"laneledger/internal/platform/metrics"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// DefaultCleanupChunk is the row limit of one cleanup delete
const DefaultCleanupChunk = 128

// CleanupOptions bound one cleanup unit
type CleanupOptions struct {
	ChunkSize int
	// MaxChunks caps the deletes of one unit, zero runs to completion
	MaxChunks int
}

// Cleanup deletes the user's previously imported rows, children first, keeping
// the raw rows of keep. It stops early once MaxChunks deletes ran; calling it
// again resumes where data still exists. Callers record the result with
// recordCleanup once their transaction committed
func Cleanup(
	ctx context.Context, store domain.CleanupStore, userID string, keep uuid.UUID, opts CleanupOptions,
) (domain.CleanupResult, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultCleanupChunk
	}
	res := domain.CleanupResult{Deleted: map[string]int64{}}
	chunks := 0
	for _, t := range domain.CleanupOrder {
		for {
			if opts.MaxChunks > 0 && chunks >= opts.MaxChunks {
				res.Table = t.String()
				return res, nil
			}
			n, err := store.DeleteChunk(ctx, t, userID, keep, size)
			chunks++
			if err != nil {
				res.Table = t.String()
				return res, err
			}
			if n == 0 {
				break
			}
			res.Deleted[t.String()] += n
		}
	}
	res.Done = true
	return res, nil
}

// priorDataRemains reports whether any cleanup table still holds earlier imports
func priorDataRemains(ctx context.Context, store domain.CleanupStore, userID string, keep uuid.UUID) (bool, error) {
	for _, t := range domain.CleanupOrder {
		ok, err := store.PriorExists(ctx, t, userID, keep)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// recordCleanup counts committed deletes per table
func recordCleanup(res domain.CleanupResult) {
	for table, n := range res.Deleted {
		metrics.CleanupDeletedRowsTotal.WithLabelValues(table).Add(float64(n))
	}
}
