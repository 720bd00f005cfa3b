package service

import (
	"context"
	"errors"

	"laneledger/internal/core/chunk"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"
	"laneledger/internal/platform/metrics"
	ptime "laneledger/internal/platform/time"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/reconcile"
	"laneledger/internal/services/imports/repo"

	"github.com/google/uuid"
)

// DefaultFailMessage is stored when a fail callback carries no error text
const DefaultFailMessage = "worker reported failure"

// Callback outcomes
const (
	outcomeOK       = "ok"
	outcomeNoop     = "noop"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// importFailure marks an error raised after a callback passed its
// preconditions; the batch is failed once the transaction rolled back
type importFailure struct{ err error }

func (f *importFailure) Error() string { return f.err.Error() }
func (f *importFailure) Unwrap() error { return f.err }

func failing(err error) error {
	if err == nil {
		return nil
	}
	return &importFailure{err: err}
}

// callbackRun carries one callback through its transaction
type callbackRun struct {
	in      domain.CallbackInput
	b       domain.Batch
	out     domain.CallbackOutput
	rec     *reconcile.Result
	cleaned *domain.CleanupResult
}

// HandleCallback applies one verified worker callback. Every write of the
// callback happens in one transaction; terminal batches answer with a noop
func (s *Svc) HandleCallback(ctx context.Context, in domain.CallbackInput) (domain.CallbackOutput, error) {
	id, err := uuid.Parse(in.BatchID)
	if err != nil {
		return domain.CallbackOutput{}, perr.WithField(perr.InvalidArgf("batchId must be a uuid"), "batchId")
	}
	b, err := s.Repo.GetBatch(ctx, id)
	if err != nil {
		s.countCallback(in.Kind, outcomeError)
		return domain.CallbackOutput{}, err
	}
	log := logger.C(ctx).With().
		Str("batch_id", id.String()).
		Str("user_id", b.UserID).
		Str("kind", string(in.Kind)).
		Logger()

	run := &callbackRun{
		in:  in,
		b:   b,
		out: domain.CallbackOutput{BatchID: id, Kind: in.Kind, Status: b.Status},
	}
	if b.Status.Terminal() {
		run.out.Noop = true
		s.countCallback(in.Kind, outcomeNoop)
		log.Debug().Str("status", string(b.Status)).Msg("imports: callback on terminal batch")
		return run.out, nil
	}

	base := run.out
	err = s.tx(ctx, func(r repo.Repo) error {
		run.out, run.rec, run.cleaned = base, nil, nil
		return s.callback(ctx, r, run)
	})
	if err != nil {
		var f *importFailure
		if errors.As(err, &f) {
			s.markFailed(ctx, b, f.err)
			s.countCallback(in.Kind, outcomeError)
			return domain.CallbackOutput{}, f.err
		}
		if perr.IsCode(err, perr.ErrorCodeConflict) {
			s.countCallback(in.Kind, outcomeConflict)
			log.Info().Err(err).Str("status", string(b.Status)).Msg("imports: callback precondition failed")
		} else {
			s.countCallback(in.Kind, outcomeError)
		}
		return domain.CallbackOutput{}, err
	}

	if run.out.Noop {
		s.countCallback(in.Kind, outcomeNoop)
	} else {
		s.countCallback(in.Kind, outcomeOK)
	}
	if run.cleaned != nil {
		recordCleanup(*run.cleaned)
	}
	switch {
	case run.rec != nil && run.out.Result != nil:
		s.recordCompleted(ctx, b, *run.out.Result, *run.rec)
	case run.out.Status == domain.StatusFailed:
		metrics.BatchesFinishedTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		log.Warn().Str("status", string(run.out.Status)).Msg("imports: worker failed batch")
	case run.out.Status != b.Status:
		log.Info().Str("status", string(run.out.Status)).Msg("imports: batch status changed")
	}
	return run.out, nil
}

func (s *Svc) callback(ctx context.Context, r repo.Repo, run *callbackRun) error {
	switch run.in.Kind {
	case domain.KindAck:
		return s.ack(ctx, r, run)
	case domain.KindBegin:
		return s.begin(ctx, r, run)
	case domain.KindCleanup:
		return s.cleanupUnit(ctx, r, run)
	case domain.KindRows:
		return s.rows(ctx, r, run)
	case domain.KindFinalize:
		return s.finalize(ctx, r, run)
	case domain.KindSnapshot:
		return s.snapshot(ctx, r, run)
	case domain.KindFail:
		return s.fail(ctx, r, run)
	}
	return perr.WithField(perr.InvalidArgf("unknown callback kind %q", run.in.Kind), "kind")
}

// transition moves the batch to `to`, turning a lost race into a Conflict
func transition(ctx context.Context, r repo.Repo, run *callbackRun, to domain.Status) error {
	ok, err := r.UpdateStatus(ctx, run.b.ID, to, nil, nil)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("batch %s cannot move from %s to %s", run.b.ID, run.b.Status, to)
	}
	run.out.Status = to
	return nil
}

func requireImporting(run *callbackRun) error {
	if run.b.Status != domain.StatusImporting {
		return perr.Conflictf("batch %s is %s, not importing", run.b.ID, run.b.Status)
	}
	return nil
}

func (s *Svc) ack(ctx context.Context, r repo.Repo, run *callbackRun) error {
	if run.b.Status == domain.StatusParsing {
		run.out.Noop = true
		return nil
	}
	return transition(ctx, r, run, domain.StatusParsing)
}

func (s *Svc) begin(ctx context.Context, r repo.Repo, run *callbackRun) error {
	replaceAll := run.b.ReplaceAll
	if run.in.ReplaceAll != nil {
		replaceAll = *run.in.ReplaceAll
	}
	if run.b.Status == domain.StatusImporting {
		if replaceAll != run.b.ReplaceAll {
			return perr.Conflictf("batch %s already began with replaceAll=%t", run.b.ID, run.b.ReplaceAll)
		}
		run.out.Noop = true
		return nil
	}
	if err := transition(ctx, r, run, domain.StatusImporting); err != nil {
		return err
	}
	if replaceAll != run.b.ReplaceAll {
		return r.SetReplaceAll(ctx, run.b.ID, replaceAll)
	}
	return nil
}

func (s *Svc) cleanupUnit(ctx context.Context, r repo.Repo, run *callbackRun) error {
	if err := requireImporting(run); err != nil {
		return err
	}
	if !run.b.ReplaceAll {
		return perr.Conflictf("batch %s is not a replace-all import", run.b.ID)
	}
	res, err := Cleanup(ctx, r, run.b.UserID, run.b.ID, CleanupOptions{
		ChunkSize: s.opts.CleanupChunk,
		MaxChunks: s.opts.CleanupMaxChunks,
	})
	if err != nil {
		return err
	}
	run.out.Cleanup = &res
	run.cleaned = &res
	return nil
}

func (s *Svc) rows(ctx context.Context, r repo.Repo, run *callbackRun) error {
	if err := requireImporting(run); err != nil {
		return err
	}
	t := run.in.Table
	if !t.Valid() {
		return perr.WithField(perr.InvalidArgf("unknown table %q", t), "table")
	}
	if len(run.in.Rows) > chunk.DefaultRows {
		return perr.WithField(perr.InvalidArgf("at most %d rows per callback, got %d", chunk.DefaultRows, len(run.in.Rows)), "rows")
	}
	at := s.now().UTC()
	var (
		n   int64
		err error
	)
	if raw, ok := t.Raw(); ok {
		n, err = r.InsertRawRows(ctx, raw, run.b.UserID, run.b.ID, run.in.Rows, at)
	} else {
		n, err = r.StageFrames(ctx, run.b.UserID, run.b.ID, run.in.Rows, at)
	}
	if err != nil {
		return err
	}
	// a redelivered chunk finds every sqliteId mirrored already
	run.out.Accepted = int(n)
	run.out.Noop = n == 0 && len(run.in.Rows) > 0
	return nil
}

func (s *Svc) finalize(ctx context.Context, r repo.Repo, run *callbackRun) error {
	if err := requireImporting(run); err != nil {
		return err
	}
	if run.b.ReplaceAll {
		remains, err := priorDataRemains(ctx, r, run.b.UserID, run.b.ID)
		if err != nil {
			return err
		}
		if remains {
			return perr.Conflictf("batch %s still has prior data to clean up", run.b.ID)
		}
	}
	var snap domain.Snapshot
	for _, t := range domain.RawTables {
		rows, err := r.LoadRawRows(ctx, t, run.b.UserID, run.b.ID)
		if err != nil {
			return failing(err)
		}
		snap.Set(snapshotTable(t), rows)
	}
	frames, err := r.LoadStagedFrames(ctx, run.b.UserID, run.b.ID)
	if err != nil {
		return failing(err)
	}
	snap.Frames = frames
	return s.runImport(ctx, r, run, snap)
}

func (s *Svc) snapshot(ctx context.Context, r repo.Repo, run *callbackRun) error {
	if run.in.Snapshot == nil {
		return perr.WithField(perr.InvalidArgf("snapshot callback without snapshot"), "snapshot")
	}
	if err := s.begin(ctx, r, run); err != nil {
		return err
	}
	run.out.Noop = false
	if run.in.ReplaceAll != nil {
		run.b.ReplaceAll = *run.in.ReplaceAll
	}
	if run.b.ReplaceAll {
		res, err := Cleanup(ctx, r, run.b.UserID, run.b.ID, CleanupOptions{ChunkSize: s.opts.CleanupChunk})
		if err != nil {
			return failing(err)
		}
		run.cleaned = &res
	}
	at := s.now().UTC()
	for _, t := range domain.RawTables {
		if _, err := r.InsertRawRows(ctx, t, run.b.UserID, run.b.ID, run.in.Snapshot.Rows(snapshotTable(t)), at); err != nil {
			return failing(err)
		}
	}
	return s.runImport(ctx, r, run, *run.in.Snapshot)
}

func (s *Svc) runImport(ctx context.Context, r repo.Repo, run *callbackRun, snap domain.Snapshot) error {
	res, rec, err := s.importBatch(ctx, r, run.b, snap)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeConflict) {
			return err
		}
		return failing(err)
	}
	run.out.Status = res.Status
	run.out.Result = &res
	run.rec = &rec
	return nil
}

func (s *Svc) fail(ctx context.Context, r repo.Repo, run *callbackRun) error {
	msg := domain.ClipErrorMessage(run.in.Error)
	if msg == "" {
		msg = DefaultFailMessage
	}
	ok, err := r.UpdateStatus(ctx, run.b.ID, domain.StatusFailed, ptime.UTCPtr(s.now()), &msg)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("batch %s already finished", run.b.ID)
	}
	run.out.Status = domain.StatusFailed
	return r.DropStagedFrames(ctx, run.b.ID)
}

func (s *Svc) countCallback(kind domain.CallbackKind, outcome string) {
	metrics.CallbacksTotal.WithLabelValues(string(kind), outcome).Inc()
}
