package imptest

import (
	"context"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

func (m *Memory) FindHouseByKey(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.st.houses {
		if h.Key == key {
			return h.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (m *Memory) InsertHouse(_ context.Context, h domain.House) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.houses {
		if r.Key == h.Key {
			return r.ID, nil
		}
	}
	id := uuid.New()
	m.st.houses = append(m.st.houses, houseRec{ID: id, House: h})
	return id, nil
}

func (m *Memory) FindPatternByKey(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.patterns {
		if p.Key == key {
			return p.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (m *Memory) InsertPattern(_ context.Context, p domain.Pattern) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.patterns {
		if r.Key == p.Key {
			return r.ID, nil
		}
	}
	id := uuid.New()
	m.st.patterns = append(m.st.patterns, patternRec{ID: id, Pattern: p})
	return id, nil
}

func (m *Memory) FindBallByKey(_ context.Context, userID, key string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.st.balls {
		if b.UserID == userID && b.Key == key {
			return b.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (m *Memory) InsertBall(_ context.Context, b domain.Ball) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.balls {
		if r.UserID == b.UserID && r.Key == b.Key {
			return r.ID, nil
		}
	}
	id := uuid.New()
	m.st.balls = append(m.st.balls, ballRec{ID: id, Ball: b})
	return id, nil
}

func (m *Memory) InsertLeague(_ context.Context, l domain.League) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertLeague"); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	m.st.leagues = append(m.st.leagues, leagueRec{ID: id, League: l})
	return id, nil
}

func (m *Memory) InsertSession(_ context.Context, s domain.Session) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.st.sessions = append(m.st.sessions, SessionRec{ID: id, Session: s})
	return id, nil
}

func (m *Memory) InsertGame(_ context.Context, g domain.Game) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertGame"); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	m.st.games = append(m.st.games, GameRec{ID: id, Game: g})
	return id, nil
}

func (m *Memory) InsertFrames(_ context.Context, frames []domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertFrames"); err != nil {
		return err
	}
	for _, f := range frames {
		m.st.frames = append(m.st.frames, frameRec{ID: uuid.New(), Frame: f})
	}
	m.FrameInserts++
	return nil
}

func (m *Memory) PatchSession(_ context.Context, id uuid.UUID, p domain.SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.st.sessions {
		if m.st.sessions[i].ID == id {
			s := &m.st.sessions[i]
			if p.Notes != nil {
				s.Patch.Notes = p.Notes
			}
			if p.LaneContext != nil {
				s.Patch.LaneContext = p.LaneContext
			}
			return nil
		}
	}
	return perr.NotFoundf("session %s not found", id)
}

func (m *Memory) PatchGame(_ context.Context, id uuid.UUID, p domain.GamePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.st.games {
		if m.st.games[i].ID == id {
			g := &m.st.games[i]
			if p.Notes != nil {
				g.Patch.Notes = p.Notes
			}
			if p.LaneContext != nil {
				g.Patch.LaneContext = p.LaneContext
			}
			if len(p.BallSwitches) > 0 {
				g.Patch.BallSwitches = p.BallSwitches
			}
			return nil
		}
	}
	return perr.NotFoundf("game %s not found", id)
}
