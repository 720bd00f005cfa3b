// Package service contains the import pipeline workflows: Start Import, the
// direct snapshot action, worker callbacks and batch reads
package service

import (
	"context"
	"strings"
	"time"

	"laneledger/internal/modkit/repokit"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/metrics"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/repo"

	"github.com/google/uuid"
)

// Service is the public service port
type Service interface{ domain.ServicePort }

// Options control service behavior
type Options struct {
	// Dispatcher is required
	Dispatcher domain.DispatchPort

	CleanupChunk int
	// CleanupMaxChunks bounds one cleanup callback, zero means DefaultCleanupMaxChunks
	CleanupMaxChunks int
	// FrameChunk bounds one frame insert, zero means the chunk default
	FrameChunk int
	// TxRetries reruns a transaction that hit transient contention, zero means DefaultTxRetries
	TxRetries int
}

// DefaultCleanupMaxChunks bounds the deletes of one cleanup callback
const DefaultCleanupMaxChunks = 64

// DefaultTxRetries is how often a serialization failure or deadlock is retried
const DefaultTxRetries = 2

// Svc implements the service port
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	opts   Options
	now    func() time.Time
}

var _ Service = (*Svc)(nil)

// New constructs the service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], opt Options) *Svc {
	if db == nil {
		panic("imports.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("imports.Service requires a non nil Repo binder")
	}
	if opt.Dispatcher == nil {
		panic("imports.Service requires a non nil DispatchPort")
	}
	if opt.CleanupChunk <= 0 {
		opt.CleanupChunk = DefaultCleanupChunk
	}
	if opt.CleanupMaxChunks <= 0 {
		opt.CleanupMaxChunks = DefaultCleanupMaxChunks
	}
	if opt.TxRetries <= 0 {
		opt.TxRetries = DefaultTxRetries
	}
	return &Svc{
		Repo:   binder.Bind(db),
		binder: binder,
		db:     repokit.WithRetry(db, opt.TxRetries),
		opts:   opt,
		now:    time.Now,
	}
}

// tx runs fn in one transaction, rerun on transient contention
func (s *Svc) tx(ctx context.Context, fn func(r repo.Repo) error) error {
	return s.db.Tx(ctx, func(q repokit.Queryer) error { return fn(s.binder.Bind(q)) })
}

// R2KeyPrefix is the object key prefix every upload of userID must carry
func R2KeyPrefix(userID string) string { return "imports/" + userID + "/" }

// StartImport creates a queued batch for an uploaded backup and hands it to
// the worker. A repeated idempotency key answers with the existing batch
func (s *Svc) StartImport(ctx context.Context, userID string, in domain.StartInput) (domain.StartOutput, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.StartOutput{}, perr.Unauthorizedf("missing user")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	switch {
	case !strings.HasPrefix(in.R2Key, R2KeyPrefix(userID)) || len(in.R2Key) == len(R2KeyPrefix(userID)):
		return domain.StartOutput{}, perr.WithField(perr.InvalidArgf("r2Key must start with %s", R2KeyPrefix(userID)), "r2Key")
	case in.FileSize <= 0:
		return domain.StartOutput{}, perr.WithField(perr.InvalidArgf("fileSize must be positive"), "fileSize")
	case len(key) < 8 || len(key) > 128:
		return domain.StartOutput{}, perr.WithField(perr.InvalidArgf("idempotencyKey must be 8-128 characters"), "idempotencyKey")
	}
	log := logger.C(ctx).With().Str("user_id", userID).Logger()

	if b, ok, err := s.Repo.GetBatchByIdempotencyKey(ctx, userID, key); err != nil {
		return domain.StartOutput{}, err
	} else if ok {
		metrics.ImportsDeduplicatedTotal.Inc()
		log.Info().Str("batch_id", b.ID.String()).Msg("imports: start deduplicated")
		return domain.StartOutput{BatchID: b.ID, Deduplicated: true, Status: b.Status}, nil
	}

	r2Key := in.R2Key
	b, err := s.Repo.CreateBatch(ctx, domain.NewBatch{
		UserID:                userID,
		R2Key:                 &r2Key,
		SourceFileName:        in.FileName,
		FileSize:              in.FileSize,
		SourceHash:            in.Checksum,
		IdempotencyKey:        &key,
		TimezoneOffsetMinutes: in.TimezoneOffsetMinutes,
		Status:                domain.StatusQueued,
		ImportedAt:            s.now().UTC(),
	})
	if perr.IsCode(err, perr.ErrorCodeDuplicateKey) || perr.IsDuplicateKey(err) {
		// a concurrent start with the same key won
		existing, ok, gerr := s.Repo.GetBatchByIdempotencyKey(ctx, userID, key)
		if gerr != nil {
			return domain.StartOutput{}, gerr
		}
		if !ok {
			return domain.StartOutput{}, perr.Conflictf("idempotency key is in use")
		}
		metrics.ImportsDeduplicatedTotal.Inc()
		return domain.StartOutput{BatchID: existing.ID, Deduplicated: true, Status: existing.Status}, nil
	}
	if err != nil {
		return domain.StartOutput{}, err
	}
	metrics.ImportsStartedTotal.Inc()
	log.Info().Str("batch_id", b.ID.String()).Str("status", string(b.Status)).Msg("imports: batch queued")

	s.opts.Dispatcher.Dispatch(ctx, domain.DispatchInput{
		BatchID:               b.ID,
		UserID:                userID,
		R2Key:                 r2Key,
		TimezoneOffsetMinutes: in.TimezoneOffsetMinutes,
	})

	status := b.Status
	if after, err := s.Repo.GetBatch(ctx, b.ID); err == nil {
		status = after.Status
	}
	return domain.StartOutput{BatchID: b.ID, Status: status}, nil
}

// GetBatch returns a batch owned by userID; other users' batches are not found
func (s *Svc) GetBatch(ctx context.Context, userID string, id uuid.UUID) (domain.Batch, error) {
	b, err := s.Repo.GetBatch(ctx, id)
	if err != nil {
		return domain.Batch{}, err
	}
	if b.UserID != userID {
		return domain.Batch{}, perr.NotFoundf("import batch %s not found", id)
	}
	return b, nil
}
