// Package imptest provides an in-memory imports store for tests
package imptest

import (
	"context"
	"sync"
	"time"

	"laneledger/internal/modkit/repokit"
	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/repo"

	"github.com/google/uuid"
)

type (
	rawRec struct {
		UserID  string
		BatchID uuid.UUID
		Row     domain.SourceRow
	}
	ballKey struct{ user, key string }

	houseRec struct {
		ID uuid.UUID
		domain.House
	}
	patternRec struct {
		ID uuid.UUID
		domain.Pattern
	}
	ballRec struct {
		ID uuid.UUID
		domain.Ball
	}
	leagueRec struct {
		ID uuid.UUID
		domain.League
	}
	// SessionRec is a stored session with its refinement
	SessionRec struct {
		ID uuid.UUID
		domain.Session
		Patch domain.SessionPatch
	}
	// GameRec is a stored game with its refinement
	GameRec struct {
		ID uuid.UUID
		domain.Game
		Patch domain.GamePatch
	}
	frameRec struct {
		ID uuid.UUID
		domain.Frame
	}
)

type state struct {
	batches  []domain.Batch
	nonces   map[string]time.Time
	raw      map[domain.RawTable][]rawRec
	staged   []rawRec
	houses   []houseRec
	patterns []patternRec
	balls    []ballRec
	leagues  []leagueRec
	sessions []SessionRec
	games    []GameRec
	frames   []frameRec
}

func (s state) clone() state {
	out := s
	out.batches = append([]domain.Batch(nil), s.batches...)
	out.nonces = make(map[string]time.Time, len(s.nonces))
	for k, v := range s.nonces {
		out.nonces[k] = v
	}
	out.raw = make(map[domain.RawTable][]rawRec, len(s.raw))
	for k, v := range s.raw {
		out.raw[k] = append([]rawRec(nil), v...)
	}
	out.staged = append([]rawRec(nil), s.staged...)
	out.houses = append([]houseRec(nil), s.houses...)
	out.patterns = append([]patternRec(nil), s.patterns...)
	out.balls = append([]ballRec(nil), s.balls...)
	out.leagues = append([]leagueRec(nil), s.leagues...)
	out.sessions = append([]SessionRec(nil), s.sessions...)
	out.games = append([]GameRec(nil), s.games...)
	out.frames = append([]frameRec(nil), s.frames...)
	return out
}

// Memory implements repo.Repo, its Binder and a TxRunner that rolls back on error
type Memory struct {
	mu    sync.Mutex
	st    state
	fails map[string]error

	// Txs and Rollbacks count finished transactions
	Txs, Rollbacks int
	// FrameInserts counts InsertFrames statements
	FrameInserts int
}

var (
	_ repo.Repo                 = (*Memory)(nil)
	_ repokit.Binder[repo.Repo] = (*Memory)(nil)
	_ store.TxRunner            = (*Memory)(nil)
)

// New returns an empty store
func New() *Memory {
	return &Memory{
		st:    state{nonces: map[string]time.Time{}, raw: map[domain.RawTable][]rawRec{}},
		fails: map[string]error{},
	}
}

// FailOn makes the named operation return err until cleared with a nil err
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, op)
		return
	}
	m.fails[op] = err
}

func (m *Memory) fail(op string) error { return m.fails[op] }

// Bind ignores q, every binding shares one state
func (m *Memory) Bind(repokit.Queryer) repo.Repo { return m }

// Tx snapshots state and restores it when fn fails
func (m *Memory) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	m.mu.Lock()
	snap := m.st.clone()
	m.mu.Unlock()
	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snap
		m.Rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.Txs++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, perr.Internalf("imptest: raw sql is not supported")
}

func (m *Memory) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, perr.Internalf("imptest: raw sql is not supported")
}

func (m *Memory) QueryRow(context.Context, string, ...any) store.Row { return errRow{} }

type errRow struct{}

func (errRow) Scan(...any) error { return perr.Internalf("imptest: raw sql is not supported") }
