package service

import (
	"context"
	"time"

	"laneledger/internal/modkit/repokit"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/metrics"
	ptime "laneledger/internal/platform/time"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/reconcile"
	"laneledger/internal/services/imports/refine"
	"laneledger/internal/services/imports/repo"
)

// SubmitSnapshot imports a complete snapshot without the queue. Every write
// runs in one transaction; on error the batch is marked failed afterwards
func (s *Svc) SubmitSnapshot(ctx context.Context, userID string, in domain.SnapshotInput) (domain.ImportResult, error) {
	if userID == "" {
		return domain.ImportResult{}, perr.Unauthorizedf("missing user")
	}
	now := s.now().UTC()
	b, err := s.Repo.CreateBatch(ctx, domain.NewBatch{
		UserID:                userID,
		SourceFileName:        in.FileName,
		FileSize:              in.FileSize,
		SourceHash:            in.Checksum,
		TimezoneOffsetMinutes: in.TimezoneOffsetMinutes,
		ReplaceAll:            in.ReplaceAll,
		Status:                domain.StatusImporting,
		ImportedAt:            now,
	})
	if err != nil {
		return domain.ImportResult{}, err
	}
	metrics.ImportsStartedTotal.Inc()
	ctx = logger.WithBatch(ctx, b.ID.String(), userID)
	log := logger.C(ctx)
	log.Info().Bool("replace_all", in.ReplaceAll).Msg("imports: direct snapshot started")

	var res domain.ImportResult
	var rec reconcile.Result
	var cleaned domain.CleanupResult
	err = s.tx(ctx, func(r repo.Repo) error {
		if in.ReplaceAll {
			var err error
			if cleaned, err = Cleanup(ctx, r, userID, b.ID, CleanupOptions{ChunkSize: s.opts.CleanupChunk}); err != nil {
				return perr.Wrap(err, perr.ErrorCodeDB, "replace-all cleanup")
			}
		}
		for _, t := range domain.RawTables {
			rows := in.Snapshot.Rows(snapshotTable(t))
			if _, err := r.InsertRawRows(ctx, t, userID, b.ID, rows, now); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeDB, "mirror %s", t)
			}
		}
		var err error
		res, rec, err = s.importBatch(ctx, r, b, in.Snapshot)
		return err
	})
	if err != nil {
		s.markFailed(ctx, b, err)
		return domain.ImportResult{}, err
	}
	recordCleanup(cleaned)
	s.recordCompleted(ctx, b, res, rec)
	return res, nil
}

// importBatch reconciles snap, refines the new rows and completes b through r
func (s *Svc) importBatch(
	ctx context.Context, r repo.Repo, b domain.Batch, snap domain.Snapshot,
) (domain.ImportResult, reconcile.Result, error) {
	now := s.now().UTC()
	started := time.Now()
	rec, err := reconcile.Run(ctx, r, reconcile.Input{
		UserID:                b.UserID,
		BatchID:               b.ID,
		TimezoneOffsetMinutes: b.TimezoneOffsetMinutes,
		Now:                   now,
		Snapshot:              snap,
		FrameChunk:            s.opts.FrameChunk,
	})
	if err != nil {
		return domain.ImportResult{}, rec, err
	}
	ref, err := refine.Apply(ctx, r, rec.Refine)
	if err != nil {
		return domain.ImportResult{}, rec, perr.Wrap(err, perr.ErrorCodeDB, "refine")
	}
	metrics.ReconcileDurationSeconds.Observe(time.Since(started).Seconds())

	counts := rec.Counts
	counts.Refinement = ref.Counts
	all := append(append([]domain.Warning(nil), rec.Warnings...), ref.Warnings...)
	counts.Warnings = len(all)
	warnings := reconcile.SummarizeWarnings(all)

	ok, err := r.CompleteBatch(ctx, b.ID, counts, warnings, now)
	if err != nil {
		return domain.ImportResult{}, rec, err
	}
	if !ok {
		return domain.ImportResult{}, rec, perr.Conflictf("batch %s is no longer importing", b.ID)
	}
	if err := r.DropStagedFrames(ctx, b.ID); err != nil {
		return domain.ImportResult{}, rec, err
	}
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	return domain.ImportResult{
		BatchID:  b.ID,
		Status:   domain.StatusCompleted,
		Counts:   counts,
		Warnings: warnings,
	}, rec, nil
}

// recordCompleted runs after commit so rolled back work is never counted
func (s *Svc) recordCompleted(ctx context.Context, b domain.Batch, res domain.ImportResult, rec reconcile.Result) {
	metrics.BatchesFinishedTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	c := rec.Counts
	for entity, n := range map[string]int{
		"houses": c.Houses, "patterns": c.Patterns, "balls": c.Balls, "leagues": c.Leagues,
		"sessions": c.Sessions, "games": c.Games, "frames": c.Frames,
	} {
		metrics.ReconcileRowsTotal.WithLabelValues(entity).Add(float64(n))
	}
	for _, w := range res.Warnings {
		metrics.ImportWarningsTotal.WithLabelValues(string(w.RecordType)).Inc()
	}
	logger.C(ctx).Info().
		Str("batch_id", b.ID.String()).
		Str("user_id", b.UserID).
		Int("games", c.Games).
		Int("frames", c.Frames).
		Int("skipped", c.Skipped).
		Int("warnings", res.Counts.Warnings).
		Msg("imports: batch completed")
}

// markFailed records cause on b in its own transaction. A batch that already
// left the non-terminal states is left alone
func (s *Svc) markFailed(ctx context.Context, b domain.Batch, cause error) {
	msg := domain.ClipErrorMessage(cause.Error())
	if msg == "" {
		msg = "import failed"
	}
	at := ptime.UTCPtr(s.now())
	var changed bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		r := s.binder.Bind(q)
		if changed, err = r.UpdateStatus(ctx, b.ID, domain.StatusFailed, at, &msg); err != nil || !changed {
			return err
		}
		return r.DropStagedFrames(ctx, b.ID)
	})
	ctx = logger.WithBatch(ctx, b.ID.String(), b.UserID)
	log := logger.C(ctx)
	if err != nil {
		log.Error().Err(err).Msg("imports: marking batch failed")
		return
	}
	if changed {
		metrics.BatchesFinishedTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
	log.Warn().Err(cause).Str("status", string(domain.StatusFailed)).Msg("imports: batch failed")
}

// snapshotTable maps a mirror table back to its snapshot key
func snapshotTable(t domain.RawTable) domain.SnapshotTable {
	return domain.SnapshotTable(t.String())
}
