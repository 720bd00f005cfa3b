package service

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/metrics"
	"laneledger/internal/platform/testkit"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/imptest"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var now = time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC)

type fakeDispatcher struct {
	calls []domain.DispatchInput
	fn    func(domain.DispatchInput)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, in domain.DispatchInput) {
	f.calls = append(f.calls, in)
	if f.fn != nil {
		f.fn(in)
	}
}

func newSvc(t *testing.T) (*Svc, *imptest.Memory, *fakeDispatcher) {
	t.Helper()
	mem := imptest.New()
	d := &fakeDispatcher{}
	s := New(mem, mem, Options{Dispatcher: d, CleanupChunk: 2})
	s.now = func() time.Time { return now }
	return s, mem, d
}

func startInput(key string) domain.StartInput {
	return domain.StartInput{
		R2Key:                 "imports/user-1/backup.sqlite",
		FileSize:              2048,
		IdempotencyKey:        key,
		TimezoneOffsetMinutes: 300,
	}
}

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Houses:  []domain.SourceRow{{"sqliteId": 1, "name": "Sunset Lanes"}},
		Balls:   []domain.SourceRow{{"sqliteId": 1, "name": "Phaze II", "brand": "Storm"}},
		Leagues: []domain.SourceRow{{"sqliteId": 1, "name": "Tuesday Trios", "houseFk": 1}},
		Weeks:   []domain.SourceRow{{"sqliteId": 1, "leagueFk": 1, "date": "2024-01-15", "lane": 7}},
		Games: []domain.SourceRow{
			{"sqliteId": 1, "weekFk": 1, "leagueFk": 1, "score": 180, "gameNumber": 1, "ballFk": 1},
		},
		Frames: []domain.SourceRow{
			{"sqliteId": 1, "gameFk": 1, "frameNum": 1, "roll1": 10, "ballFk": 1},
			{"sqliteId": 2, "gameFk": 1, "frameNum": 2, "roll1": 7, "roll2": 3, "ballFk": 1},
		},
	}
}

func TestNew_PanicsOnMissingDeps(t *testing.T) {
	mem := imptest.New()
	testkit.MustPanic(t, func() { New(nil, mem, Options{Dispatcher: &fakeDispatcher{}}) })
	testkit.MustPanic(t, func() { New(mem, nil, Options{Dispatcher: &fakeDispatcher{}}) })
	testkit.MustPanic(t, func() { New(mem, mem, Options{}) })
}

func TestStartImport_Validation(t *testing.T) {
	cases := []struct {
		name   string
		user   string
		mutate func(*domain.StartInput)
		code   perr.ErrorCode
		field  string
	}{
		{"no user", "", func(*domain.StartInput) {}, perr.ErrorCodeUnauthorized, ""},
		{"foreign prefix", "user-1", func(in *domain.StartInput) { in.R2Key = "imports/user-2/x.sqlite" }, perr.ErrorCodeInvalidArgument, "r2Key"},
		{"prefix only", "user-1", func(in *domain.StartInput) { in.R2Key = "imports/user-1/" }, perr.ErrorCodeInvalidArgument, "r2Key"},
		{"zero size", "user-1", func(in *domain.StartInput) { in.FileSize = 0 }, perr.ErrorCodeInvalidArgument, "fileSize"},
		{"short key", "user-1", func(in *domain.StartInput) { in.IdempotencyKey = "1234567" }, perr.ErrorCodeInvalidArgument, "idempotencyKey"},
		{"long key", "user-1", func(in *domain.StartInput) { in.IdempotencyKey = string(make([]byte, 129)) }, perr.ErrorCodeInvalidArgument, "idempotencyKey"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mem, d := newSvc(t)
			in := startInput("key-00000001")
			tc.mutate(&in)
			_, err := s.StartImport(context.Background(), tc.user, in)
			if !perr.IsCode(err, tc.code) {
				t.Fatalf("err = %v, want code %d", err, tc.code)
			}
			if tc.field != "" {
				if e, ok := perr.As(err); !ok || e.Field() != tc.field {
					t.Fatalf("field = %v", err)
				}
			}
			if len(d.calls) != 0 || mem.Counts().Batches != 0 {
				t.Fatalf("side effects: dispatches=%d batches=%d", len(d.calls), mem.Counts().Batches)
			}
		})
	}
}

func TestStartImport_IdempotentDispatchesOnce(t *testing.T) {
	s, mem, d := newSvc(t)
	ctx := context.Background()

	first, err := s.StartImport(ctx, "user-1", startInput("upload-0001"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Deduplicated || first.Status != domain.StatusQueued {
		t.Fatalf("first = %+v", first)
	}
	second, err := s.StartImport(ctx, "user-1", startInput("upload-0001"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Deduplicated || second.BatchID != first.BatchID {
		t.Fatalf("second = %+v", second)
	}
	if len(d.calls) != 1 || mem.Counts().Batches != 1 {
		t.Fatalf("dispatches=%d batches=%d", len(d.calls), mem.Counts().Batches)
	}
	call := d.calls[0]
	if call.BatchID != first.BatchID || call.R2Key != "imports/user-1/backup.sqlite" || call.TimezoneOffsetMinutes != 300 {
		t.Fatalf("dispatch input = %+v", call)
	}
	b := mem.Batch(first.BatchID)
	if b.IdempotencyKey == nil || *b.IdempotencyKey != "upload-0001" || !b.ImportedAt.Equal(now) {
		t.Fatalf("batch = %+v", b)
	}

	// another user may reuse the key
	in := startInput("upload-0001")
	in.R2Key = "imports/user-2/backup.sqlite"
	other, err := s.StartImport(ctx, "user-2", in)
	if err != nil || other.Deduplicated {
		t.Fatalf("other user: %+v %v", other, err)
	}
}

func TestStartImport_ReportsStatusAfterDispatch(t *testing.T) {
	s, mem, d := newSvc(t)
	d.fn = func(in domain.DispatchInput) {
		msg := "worker answered 502"
		at := now
		if _, err := mem.UpdateStatus(context.Background(), in.BatchID, domain.StatusFailed, &at, &msg); err != nil {
			t.Errorf("UpdateStatus: %v", err)
		}
	}
	out, err := s.StartImport(context.Background(), "user-1", startInput("upload-0002"))
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if out.Status != domain.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
}

func TestGetBatch_OwnerScoped(t *testing.T) {
	s, _, _ := newSvc(t)
	ctx := context.Background()
	out, err := s.StartImport(ctx, "user-1", startInput("upload-0003"))
	if err != nil {
		t.Fatal(err)
	}
	if b, err := s.GetBatch(ctx, "user-1", out.BatchID); err != nil || b.ID != out.BatchID {
		t.Fatalf("owner read: %+v %v", b, err)
	}
	if _, err := s.GetBatch(ctx, "user-2", out.BatchID); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("foreign read err = %v", err)
	}
	if _, err := s.GetBatch(ctx, "user-1", uuid.New()); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown read err = %v", err)
	}
}

func TestSubmitSnapshot_EndToEnd(t *testing.T) {
	s, mem, d := newSvc(t)
	res, err := s.SubmitSnapshot(context.Background(), "user-1", domain.SnapshotInput{
		FileSize: 1,
		Snapshot: sampleSnapshot(),
	})
	if err != nil {
		t.Fatalf("SubmitSnapshot: %v", err)
	}
	if res.Status != domain.StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	c := res.Counts
	if c.Houses != 1 || c.Balls != 1 || c.Leagues != 1 || c.Sessions != 1 || c.Games != 1 || c.Frames != 2 {
		t.Fatalf("counts = %+v", c)
	}
	if c.Refinement.Sessions.Patched != 1 || c.Refinement.Games.Patched != 1 {
		t.Fatalf("refinement = %+v", c.Refinement)
	}
	if c.Warnings != len(res.Warnings) || c.Warnings == 0 {
		t.Fatalf("warnings = %d %+v", c.Warnings, res.Warnings)
	}

	b := mem.Batch(res.BatchID)
	if b.Status != domain.StatusCompleted || b.CompletedAt == nil || !b.CompletedAt.Equal(now) {
		t.Fatalf("batch = %+v", b)
	}
	if b.R2Key != nil || b.Counts.Games != 1 {
		t.Fatalf("batch = %+v", b)
	}
	if mem.RawCount(domain.RawHouses, b.ID) != 1 || mem.RawCount(domain.RawGames, b.ID) != 1 {
		t.Fatal("raw mirror missing rows")
	}
	if mem.Counts().Staged != 0 || len(d.calls) != 0 {
		t.Fatalf("staged=%d dispatches=%d", mem.Counts().Staged, len(d.calls))
	}
	games := mem.Games()
	if games[0].Patch.LaneContext == nil || games[0].Patch.LaneContext.Pair != "7-8" {
		t.Fatalf("game lane = %+v", games[0].Patch)
	}
}

func TestSubmitSnapshot_FailureRollsBackAndMarksFailed(t *testing.T) {
	s, mem, _ := newSvc(t)
	mem.FailOn("InsertFrames", errors.New("disk full"))

	_, err := s.SubmitSnapshot(context.Background(), "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot()})
	if err == nil {
		t.Fatal("expected error")
	}
	c := mem.Counts()
	if c.Batches != 1 || c.Games != 0 || c.Leagues != 0 || c.Frames != 0 {
		t.Fatalf("counts after rollback = %+v", c)
	}
	if mem.Rollbacks != 1 {
		t.Fatalf("rollbacks = %d", mem.Rollbacks)
	}
	b := mem.Batches()[0]
	if b.Status != domain.StatusFailed || b.ErrorMessage == nil || b.CompletedAt == nil {
		t.Fatalf("batch = %+v", b)
	}
	testkit.MustContain(t, *b.ErrorMessage, "disk full")
}

func TestSubmitSnapshot_RetriesSerializationFailures(t *testing.T) {
	s, mem, _ := newSvc(t)
	mem.FailOn("InsertFrames", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	_, err := s.SubmitSnapshot(context.Background(), "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot()})
	if err == nil {
		t.Fatal("expected error")
	}
	if mem.Rollbacks != 1+DefaultTxRetries {
		t.Fatalf("rollbacks = %d, want %d", mem.Rollbacks, 1+DefaultTxRetries)
	}
	if b := mem.Batches()[0]; b.Status != domain.StatusFailed {
		t.Fatalf("status = %s", b.Status)
	}

	mem.FailOn("InsertFrames", nil)
	res, err := s.SubmitSnapshot(context.Background(), "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot()})
	if err != nil || res.Status != domain.StatusCompleted {
		t.Fatalf("after clearing: %+v %v", res, err)
	}
}

func TestSubmitSnapshot_ReplaceAllKeepsOnlyLatest(t *testing.T) {
	s, mem, _ := newSvc(t)
	ctx := context.Background()
	first, err := s.SubmitSnapshot(ctx, "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot()})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SubmitSnapshot(ctx, "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot(), ReplaceAll: true})
	if err != nil {
		t.Fatal(err)
	}
	c := mem.Counts()
	if c.Leagues != 1 || c.Sessions != 1 || c.Games != 1 || c.Frames != 2 {
		t.Fatalf("counts = %+v", c)
	}
	if c.Houses != 1 {
		t.Fatalf("shared houses = %d", c.Houses)
	}
	if mem.RawCount(domain.RawHouses, first.BatchID) != 0 || mem.RawCount(domain.RawHouses, second.BatchID) != 1 {
		t.Fatal("raw rows of the earlier batch should be gone")
	}
	if mem.Games()[0].BatchID != second.BatchID {
		t.Fatal("surviving game belongs to the wrong batch")
	}
}

func TestSubmitSnapshot_CleanupCountedAfterCommit(t *testing.T) {
	s, mem, _ := newSvc(t)
	ctx := context.Background()
	if _, err := s.SubmitSnapshot(ctx, "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot()}); err != nil {
		t.Fatal(err)
	}
	frames := metrics.CleanupDeletedRowsTotal.WithLabelValues(domain.CleanFrames.String())

	before := testutil.ToFloat64(frames)
	mem.FailOn("InsertGame", errors.New("constraint"))
	if _, err := s.SubmitSnapshot(ctx, "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot(), ReplaceAll: true}); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(frames); got != before {
		t.Fatalf("rolled back cleanup counted: %v -> %v", before, got)
	}
	if mem.Counts().Frames != 2 {
		t.Fatalf("prior frames should survive the rollback")
	}

	mem.FailOn("InsertGame", nil)
	if _, err := s.SubmitSnapshot(ctx, "user-1", domain.SnapshotInput{Snapshot: sampleSnapshot(), ReplaceAll: true}); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(frames); got != before+2 {
		t.Fatalf("committed cleanup = %v, want %v", got, before+2)
	}
}
