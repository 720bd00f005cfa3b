package imptest

import (
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// Counts is a row count per stored table
type Counts struct {
	Batches, Nonces, Staged                                   int
	Houses, Patterns, Balls, Leagues, Sessions, Games, Frames int
}

// Counts returns the current row counts
func (m *Memory) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counts{
		Batches:  len(m.st.batches),
		Nonces:   len(m.st.nonces),
		Staged:   len(m.st.staged),
		Houses:   len(m.st.houses),
		Patterns: len(m.st.patterns),
		Balls:    len(m.st.balls),
		Leagues:  len(m.st.leagues),
		Sessions: len(m.st.sessions),
		Games:    len(m.st.games),
		Frames:   len(m.st.frames),
	}
}

// Batch returns the stored batch or the zero value
func (m *Memory) Batch(id uuid.UUID) domain.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.batchIndex(id); i >= 0 {
		return m.st.batches[i]
	}
	return domain.Batch{}
}

// RawCount returns how many raw rows of t are held for a batch
func (m *Memory) RawCount(t domain.RawTable, batchID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.st.raw[t] {
		if r.BatchID == batchID {
			n++
		}
	}
	return n
}

// Sessions returns the stored sessions in insert order
func (m *Memory) Sessions() []SessionRec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionRec(nil), m.st.sessions...)
}

// Games returns the stored games in insert order
func (m *Memory) Games() []GameRec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GameRec(nil), m.st.games...)
}

// Frames returns the stored frames in insert order
func (m *Memory) Frames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Frame, len(m.st.frames))
	for i, f := range m.st.frames {
		out[i] = f.Frame
	}
	return out
}

// Leagues returns the stored leagues in insert order
func (m *Memory) Leagues() []domain.League {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.League, len(m.st.leagues))
	for i, l := range m.st.leagues {
		out[i] = l.League
	}
	return out
}

// SeedBatch stores b as is
func (m *Memory) SeedBatch(b domain.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.batches = append(m.st.batches, b)
}

// Batches returns every stored batch in insert order
func (m *Memory) Batches() []domain.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Batch(nil), m.st.batches...)
}
