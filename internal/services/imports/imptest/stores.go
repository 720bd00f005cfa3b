package imptest

import (
	"context"
	"time"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// batch stores

func (m *Memory) CreateBatch(_ context.Context, nb domain.NewBatch) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateBatch"); err != nil {
		return domain.Batch{}, err
	}
	if nb.IdempotencyKey != nil {
		for _, b := range m.st.batches {
			if b.UserID == nb.UserID && b.IdempotencyKey != nil && *b.IdempotencyKey == *nb.IdempotencyKey {
				return domain.Batch{}, perr.DuplicateKeyf("idempotency key already used")
			}
		}
	}
	b := domain.Batch{
		ID:                    uuid.New(),
		UserID:                nb.UserID,
		SourceType:            domain.SourceTypeSQLite,
		R2Key:                 nb.R2Key,
		SourceFileName:        nb.SourceFileName,
		FileSize:              nb.FileSize,
		SourceHash:            nb.SourceHash,
		IdempotencyKey:        nb.IdempotencyKey,
		TimezoneOffsetMinutes: nb.TimezoneOffsetMinutes,
		ReplaceAll:            nb.ReplaceAll,
		Status:                nb.Status,
		ImportedAt:            nb.ImportedAt,
		Warnings:              []domain.Warning{},
	}
	m.st.batches = append(m.st.batches, b)
	return b, nil
}

func (m *Memory) batchIndex(id uuid.UUID) int {
	for i, b := range m.st.batches {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) GetBatch(_ context.Context, id uuid.UUID) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetBatch"); err != nil {
		return domain.Batch{}, err
	}
	i := m.batchIndex(id)
	if i < 0 {
		return domain.Batch{}, perr.NotFoundf("import batch %s not found", id)
	}
	return m.st.batches[i], nil
}

func (m *Memory) GetBatchByIdempotencyKey(_ context.Context, userID, key string) (domain.Batch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.st.batches {
		if b.UserID == userID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, true, nil
		}
	}
	return domain.Batch{}, false, nil
}

func (m *Memory) UpdateStatus(
	_ context.Context, id uuid.UUID, to domain.Status, completedAt *time.Time, errorMessage *string,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateStatus"); err != nil {
		return false, err
	}
	i := m.batchIndex(id)
	if i < 0 || !domain.CanTransition(m.st.batches[i].Status, to) {
		return false, nil
	}
	b := &m.st.batches[i]
	b.Status = to
	if completedAt != nil {
		at := *completedAt
		b.CompletedAt = &at
	}
	if errorMessage != nil {
		msg := *errorMessage
		b.ErrorMessage = &msg
	}
	return true, nil
}

func (m *Memory) SetReplaceAll(_ context.Context, id uuid.UUID, replaceAll bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.batchIndex(id); i >= 0 {
		m.st.batches[i].ReplaceAll = replaceAll
	}
	return nil
}

func (m *Memory) CompleteBatch(
	_ context.Context, id uuid.UUID, counts domain.Counts, warnings []domain.Warning, completedAt time.Time,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CompleteBatch"); err != nil {
		return false, err
	}
	i := m.batchIndex(id)
	if i < 0 || m.st.batches[i].Status != domain.StatusImporting {
		return false, nil
	}
	b := &m.st.batches[i]
	b.Status = domain.StatusCompleted
	b.Counts = counts
	b.Warnings = append([]domain.Warning{}, warnings...)
	b.CompletedAt = &completedAt
	return true, nil
}

// nonces

func (m *Memory) NonceExists(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.st.nonces[nonce]
	return ok, nil
}

func (m *Memory) InsertNonce(_ context.Context, nonce string, _, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertNonce"); err != nil {
		return err
	}
	if _, ok := m.st.nonces[nonce]; ok {
		return perr.DuplicateKeyf("nonce already used")
	}
	m.st.nonces[nonce] = expiresAt
	return nil
}

// raw mirror and staging

func (m *Memory) InsertRawRow(ctx context.Context, t domain.RawTable, in domain.RawInsert, at time.Time) (bool, error) {
	n, err := m.InsertRawRows(ctx, t, in.UserID, in.BatchID, []domain.SourceRow{in.Row}, at)
	return n == 1, err
}

func (m *Memory) InsertRawRows(
	_ context.Context, t domain.RawTable, userID string, batchID uuid.UUID, rows []domain.SourceRow, _ time.Time,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertRawRows"); err != nil {
		return 0, err
	}
	var n int64
	m.st.raw[t], n = appendNew(m.st.raw[t], userID, batchID, rows)
	return n, nil
}

func (m *Memory) LoadRawRows(
	_ context.Context, t domain.RawTable, userID string, batchID uuid.UUID,
) ([]domain.SourceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterRows(m.st.raw[t], userID, batchID), nil
}

func (m *Memory) StageFrames(
	_ context.Context, userID string, batchID uuid.UUID, rows []domain.SourceRow, _ time.Time,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("StageFrames"); err != nil {
		return 0, err
	}
	var n int64
	m.st.staged, n = appendNew(m.st.staged, userID, batchID, rows)
	return n, nil
}

// appendNew mirrors the (user_id, batch_id, sqlite_id) unique index: rows
// without an id are always kept, known ids are skipped
func appendNew(recs []rawRec, userID string, batchID uuid.UUID, rows []domain.SourceRow) ([]rawRec, int64) {
	seen := map[int64]bool{}
	for _, r := range recs {
		if r.UserID != userID || r.BatchID != batchID {
			continue
		}
		if id, ok := r.Row.ID(); ok {
			seen[id] = true
		}
	}
	var n int64
	for _, row := range rows {
		if id, ok := row.ID(); ok {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		recs = append(recs, rawRec{UserID: userID, BatchID: batchID, Row: row})
		n++
	}
	return recs, n
}

func (m *Memory) LoadStagedFrames(_ context.Context, userID string, batchID uuid.UUID) ([]domain.SourceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterRows(m.st.staged, userID, batchID), nil
}

func (m *Memory) DropStagedFrames(_ context.Context, batchID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.st.staged[:0:0]
	for _, r := range m.st.staged {
		if r.BatchID != batchID {
			kept = append(kept, r)
		}
	}
	m.st.staged = kept
	return nil
}

func filterRows(recs []rawRec, userID string, batchID uuid.UUID) []domain.SourceRow {
	var out []domain.SourceRow
	for _, r := range recs {
		if r.UserID == userID && r.BatchID == batchID {
			out = append(out, r.Row)
		}
	}
	return out
}

// cleanup

func (m *Memory) DeleteChunk(
	_ context.Context, t domain.CleanupTable, userID string, keep uuid.UUID, limit int,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteChunk"); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, perr.InvalidArgf("cleanup limit must be positive, got %d", limit)
	}
	prior := func(owner string, batch uuid.UUID) bool {
		return owner == userID && batch != uuid.Nil && batch != keep
	}
	var n int64
	switch t {
	case domain.CleanFrames:
		m.st.frames, n = sweep(m.st.frames, limit, func(r frameRec) bool { return prior(r.UserID, r.BatchID) })
	case domain.CleanGames:
		m.st.games, n = sweep(m.st.games, limit, func(r GameRec) bool { return prior(r.UserID, r.BatchID) })
	case domain.CleanSessions:
		m.st.sessions, n = sweep(m.st.sessions, limit, func(r SessionRec) bool { return prior(r.UserID, r.BatchID) })
	case domain.CleanLeagues:
		m.st.leagues, n = sweep(m.st.leagues, limit, func(r leagueRec) bool { return prior(r.UserID, r.BatchID) })
	case domain.CleanBalls:
		m.st.balls, n = sweep(m.st.balls, limit, func(r ballRec) bool { return prior(r.UserID, r.BatchID) })
	default:
		raw := rawFor(t)
		m.st.raw[raw], n = sweep(m.st.raw[raw], limit, func(r rawRec) bool {
			return r.UserID == userID && r.BatchID != keep
		})
	}
	return n, nil
}

func (m *Memory) PriorExists(ctx context.Context, t domain.CleanupTable, userID string, keep uuid.UUID) (bool, error) {
	m.mu.Lock()
	snap := m.st.clone()
	m.mu.Unlock()
	scratch := &Memory{st: snap, fails: map[string]error{}}
	n, err := scratch.DeleteChunk(ctx, t, userID, keep, 1)
	return n > 0, err
}

func rawFor(t domain.CleanupTable) domain.RawTable {
	switch t {
	case domain.CleanRawHouses:
		return domain.RawHouses
	case domain.CleanRawPatterns:
		return domain.RawPatterns
	case domain.CleanRawBalls:
		return domain.RawBalls
	case domain.CleanRawLeagues:
		return domain.RawLeagues
	case domain.CleanRawWeeks:
		return domain.RawWeeks
	case domain.CleanRawGames:
		return domain.RawGames
	}
	panic("imptest: not a raw cleanup table " + t.String())
}

func sweep[T any](recs []T, limit int, match func(T) bool) ([]T, int64) {
	var n int64
	kept := recs[:0:0]
	for _, r := range recs {
		if int(n) < limit && match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	return kept, n
}
