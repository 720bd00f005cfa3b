// Package reconcile converts legacy snapshot rows into canonical records,
// deduplicating shared entities and remapping source foreign keys through
// run-scoped id maps
package reconcile

import (
	"context"
	"fmt"
	"time"

	"laneledger/internal/core/chunk"
	"laneledger/internal/core/legacy"
	"laneledger/internal/core/normalize"
	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/refine"

	"github.com/google/uuid"
)

// Defaults for league rows
const (
	DefaultGamesPerSession = 3
	MinGamesPerSession     = 1
	MaxGamesPerSession     = 12
)

// HandicapWarning is attached to every import that produced games
const HandicapWarning = "Handicap cannot be derived from this backup format and is stored as null"

// Input is one reconciliation run
type Input struct {
	UserID                string
	BatchID               uuid.UUID
	TimezoneOffsetMinutes int
	Now                   time.Time
	Snapshot              domain.Snapshot

	// FrameChunk bounds one frame insert, zero means chunk.DefaultRows
	FrameChunk int
}

// Result is what a run produced
type Result struct {
	Counts   domain.Counts
	Warnings []domain.Warning

	HouseIDs   map[int64]uuid.UUID
	PatternIDs map[int64]uuid.UUID
	BallIDs    map[int64]uuid.UUID
	LeagueIDs  map[int64]uuid.UUID
	SessionIDs map[int64]uuid.UUID
	GameIDs    map[int64]uuid.UUID

	Refine refine.Input
}

// run holds the remap tables for one reconciliation; discarded afterwards
type run struct {
	in    Input
	store domain.CanonicalStore
	today string
	res   Result

	houseNames    map[int64]string
	sessionDate   map[int64]string
	sessionLeague map[int64]uuid.UUID
	gamesPerWeek  map[int64]int
}

// Run reconciles in.Snapshot through store. Stages run in dependency order:
// houses, patterns, balls, leagues, sessions, games with their frames
func Run(ctx context.Context, store domain.CanonicalStore, in Input) (Result, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.FrameChunk <= 0 {
		in.FrameChunk = chunk.DefaultRows
	}
	r := &run{
		in:    in,
		store: store,
		today: legacy.Today(in.Now, in.TimezoneOffsetMinutes),
		res: Result{
			HouseIDs:   map[int64]uuid.UUID{},
			PatternIDs: map[int64]uuid.UUID{},
			BallIDs:    map[int64]uuid.UUID{},
			LeagueIDs:  map[int64]uuid.UUID{},
			SessionIDs: map[int64]uuid.UUID{},
			GameIDs:    map[int64]uuid.UUID{},
		},
		houseNames:    map[int64]string{},
		sessionDate:   map[int64]string{},
		sessionLeague: map[int64]uuid.UUID{},
		gamesPerWeek:  map[int64]int{},
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"houses", r.houses},
		{"patterns", r.patterns},
		{"balls", r.balls},
		{"leagues", r.leagues},
		{"sessions", r.sessions},
		{"games", r.games},
	}
	for _, st := range stages {
		if err := st.fn(ctx); err != nil {
			return r.res, fmt.Errorf("reconcile %s: %w", st.name, err)
		}
	}

	if r.res.Counts.Games > 0 {
		r.res.Warnings = append(r.res.Warnings, domain.Warning{
			RecordType: domain.RecordGame,
			RecordID:   "all",
			Message:    HandicapWarning,
		})
	}
	return r.res, nil
}

func (r *run) warn(t domain.RecordType, row legacy.Row, msg string) {
	id, ok := row.ID()
	r.res.Warnings = append(r.res.Warnings, warn(t, id, ok, msg))
}

func (r *run) skip(t domain.RecordType, row legacy.Row, msg string) {
	r.res.Counts.Skipped++
	r.warn(t, row, msg)
}

// lookup resolves a foreign key column through a remap table
func lookup(row legacy.Row, key string, m map[int64]uuid.UUID) (uuid.UUID, bool) {
	fk, ok := row.Int(key)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := m[fk]
	return id, ok
}

func optional(id uuid.UUID, ok bool) *uuid.UUID {
	if !ok {
		return nil
	}
	return &id
}

func (r *run) houses(ctx context.Context) error {
	cache := map[string]uuid.UUID{}
	for _, row := range r.in.Snapshot.Houses {
		sid, ok := row.ID()
		if !ok {
			r.skip(domain.RecordHouse, row, "house has no source id; skipped")
			continue
		}
		name := row.Name(legacy.KeyName)
		if name == "" {
			r.skip(domain.RecordHouse, row, "house name is empty or unrecognizable; skipped")
			continue
		}
		key := normalize.Key(name)
		id, hit := cache[key]
		if !hit {
			found, exists, err := r.store.FindHouseByKey(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				id = found
			} else {
				h := domain.House{Name: name, Key: key}
				if loc, ok := row.Text(legacy.KeyLocation, legacy.MaxNameRunes); ok {
					h.Location = &loc
				}
				if id, err = r.store.InsertHouse(ctx, h); err != nil {
					return err
				}
			}
			cache[key] = id
		}
		r.res.HouseIDs[sid] = id
		r.houseNames[sid] = name
		r.res.Counts.Houses++
	}
	return nil
}

// patterns are optional metadata, unrecognizable rows are dropped silently
func (r *run) patterns(ctx context.Context) error {
	cache := map[string]uuid.UUID{}
	for _, row := range r.in.Snapshot.Patterns {
		sid, ok := row.ID()
		name := row.Name(legacy.KeyName)
		if !ok || name == "" {
			continue
		}
		key := normalize.Key(name)
		id, hit := cache[key]
		if !hit {
			found, exists, err := r.store.FindPatternByKey(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				id = found
			} else {
				p := domain.Pattern{Name: name, Key: key}
				if l, ok := row.Float(legacy.KeyLength); ok && l > 0 {
					p.LengthFeet = &l
				}
				if id, err = r.store.InsertPattern(ctx, p); err != nil {
					return err
				}
			}
			cache[key] = id
		}
		r.res.PatternIDs[sid] = id
		r.res.Counts.Patterns++
	}
	return nil
}

func (r *run) balls(ctx context.Context) error {
	cache := map[string]uuid.UUID{}
	for _, row := range r.in.Snapshot.Balls {
		sid, ok := row.ID()
		if !ok {
			r.skip(domain.RecordBall, row, "ball has no source id; skipped")
			continue
		}
		name := row.Name(legacy.KeyName)
		if name == "" {
			r.skip(domain.RecordBall, row, "ball name is missing; skipped")
			continue
		}
		key := normalize.Key(name)
		id, hit := cache[key]
		if !hit {
			found, exists, err := r.store.FindBallByKey(ctx, r.in.UserID, key)
			if err != nil {
				return err
			}
			if exists {
				id = found
			} else {
				b := domain.Ball{UserID: r.in.UserID, Name: name, Key: key, BatchID: r.in.BatchID}
				if brand, ok := row.Text(legacy.KeyBrand, legacy.MaxNameRunes); ok {
					b.Brand = &brand
				}
				if w, ok := row.Float(legacy.KeyWeight); ok && w > 0 {
					b.WeightLbs = &w
				}
				if id, err = r.store.InsertBall(ctx, b); err != nil {
					return err
				}
			}
			cache[key] = id
		}
		r.res.BallIDs[sid] = id
		r.res.Counts.Balls++
	}
	return nil
}

// leagues are never dropped silently since sessions and games hang off them
func (r *run) leagues(ctx context.Context) error {
	createdAt := legacy.BuildLeagueCreatedAtByEarliestWeekDate(r.in.Snapshot.Weeks)
	for _, row := range r.in.Snapshot.Leagues {
		sid, ok := row.ID()
		if !ok {
			r.skip(domain.RecordLeague, row, "league has no source id; skipped")
			continue
		}
		name := row.Name(legacy.KeyName)
		if name == "" {
			name = fmt.Sprintf("Imported League %d", sid)
		}
		gps := int64(DefaultGamesPerSession)
		if n, ok := row.Int(legacy.KeyGamesPerSession); ok {
			gps = legacy.Clamp(n, MinGamesPerSession, MaxGamesPerSession)
		}
		l := domain.League{
			UserID:          r.in.UserID,
			Name:            name,
			GamesPerSession: int(gps),
			CreatedAt:       r.in.Now.UTC(),
			BatchID:         r.in.BatchID,
		}
		if t, ok := createdAt[sid]; ok {
			l.CreatedAt = t
		}
		if hid, ok := lookup(row, legacy.KeyHouseFK, r.res.HouseIDs); ok {
			l.HouseID = &hid
			fk, _ := row.Int(legacy.KeyHouseFK)
			hn := r.houseNames[fk]
			l.HouseName = &hn
		}
		if notes, ok := row.Text(legacy.KeyNotes, legacy.MaxNotesRunes); ok {
			l.Notes = &notes
		}
		id, err := r.store.InsertLeague(ctx, l)
		if err != nil {
			return err
		}
		r.res.LeagueIDs[sid] = id
		r.res.Counts.Leagues++
	}
	return nil
}

// Date fallback reasons, part of the warning text
const (
	dateMissing       = "missing, too short or not a finite number"
	dateNotOnCalendar = "not a real calendar date"
)

// rowDate normalizes the row date. A well formed string that names no
// calendar day, such as 2024-02-30, is refused as well since the column is a
// Postgres date; problem says which case applied
func rowDate(row legacy.Row) (date, problem string) {
	d, ok := row.Date(legacy.KeyDate)
	if !ok {
		return "", dateMissing
	}
	if _, ok := legacy.ParseDate(d); !ok {
		return "", dateNotOnCalendar
	}
	return d, ""
}

func (r *run) sessions(ctx context.Context) error {
	r.res.Counts.Weeks = len(r.in.Snapshot.Weeks)
	for _, row := range r.in.Snapshot.Weeks {
		sid, ok := row.ID()
		if !ok {
			r.skip(domain.RecordSession, row, "week has no source id; skipped")
			continue
		}
		leagueID, ok := lookup(row, legacy.KeyLeagueFK, r.res.LeagueIDs)
		if !ok {
			r.skip(domain.RecordSession, row, "week has no resolvable league; skipped")
			continue
		}
		date, problem := rowDate(row)
		if problem != "" {
			date = r.today
			r.warn(domain.RecordSession, row, "week date is "+problem+"; using the import date")
		}
		s := domain.Session{UserID: r.in.UserID, LeagueID: leagueID, Date: date, BatchID: r.in.BatchID}
		if n, ok := row.Int(legacy.KeyWeekNumber); ok && n > 0 {
			wn := int(n)
			s.WeekNumber = &wn
		}
		id, err := r.store.InsertSession(ctx, s)
		if err != nil {
			return err
		}
		r.res.SessionIDs[sid] = id
		r.sessionDate[sid] = date
		r.sessionLeague[sid] = leagueID
		r.res.Counts.Sessions++
		r.res.Refine.Sessions = append(r.res.Refine.Sessions, refine.SessionItem{
			ID:       id,
			SourceID: sid,
			Notes:    row[legacy.KeyNotes],
			Lane:     row[legacy.KeyLane],
		})
	}
	return nil
}

func (r *run) games(ctx context.Context) error {
	framesByGame := map[int64][]legacy.Row{}
	for _, f := range r.in.Snapshot.Frames {
		if g, ok := f.Int(legacy.KeyGameFK); ok {
			framesByGame[g] = append(framesByGame[g], f)
		} else {
			r.skip(domain.RecordFrame, f, "frame has no game reference; skipped")
		}
	}

	var pending []domain.Frame
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := chunk.Each(pending, r.in.FrameChunk, func(part []domain.Frame) error {
			return r.store.InsertFrames(ctx, part)
		})
		r.res.Counts.Frames += len(pending)
		pending = pending[:0]
		return err
	}

	for _, row := range r.in.Snapshot.Games {
		sid, ok := row.ID()
		if !ok {
			r.skip(domain.RecordGame, row, "game has no source id; skipped")
			continue
		}
		weekFK, hasWeek := row.Int(legacy.KeyWeekFK)
		sessionID, resolved := r.res.SessionIDs[weekFK]
		if !hasWeek || !resolved {
			r.skip(domain.RecordGame, row, "game has no resolvable week; skipped")
			continue
		}
		leagueID, ok := lookup(row, legacy.KeyLeagueFK, r.res.LeagueIDs)
		if !ok {
			leagueID, ok = r.sessionLeague[weekFK]
		}
		if !ok {
			r.skip(domain.RecordGame, row, "game has no resolvable league; skipped")
			continue
		}

		date, problem := rowDate(row)
		if problem != "" {
			if d, ok := r.sessionDate[weekFK]; ok {
				date = d
			} else {
				date = r.today
				r.warn(domain.RecordGame, row, "game date is "+problem+"; using the import date")
			}
		}

		r.gamesPerWeek[weekFK]++
		gameNumber := r.gamesPerWeek[weekFK]
		if n, ok := row.Int(legacy.KeyGameNumber); ok && n > 0 {
			gameNumber = int(n)
		}

		gameBall := optional(lookup(row, legacy.KeyBallFK, r.res.BallIDs))
		frames := framesByGame[sid]
		delete(framesByGame, sid)
		sortFrames(frames)

		rolls := make([]FrameRolls, 0, len(frames))
		numbers := make([]int, 0, len(frames))
		frameBalls := make([]*uuid.UUID, 0, len(frames))
		kept := make([]legacy.Row, 0, len(frames))
		for _, f := range frames {
			n, ok := validFrameNumber(f)
			if !ok {
				r.skip(domain.RecordFrame, f, "frame number is outside 1-10; skipped")
				continue
			}
			rolls = append(rolls, FrameRolls{
				Number: n,
				Roll1:  rollOf(f, legacy.KeyRoll1),
				Roll2:  rollOf(f, legacy.KeyRoll2),
				Roll3:  rollOf(f, legacy.KeyRoll3),
			})
			numbers = append(numbers, n)
			frameBalls = append(frameBalls, optional(lookup(f, legacy.KeyBallFK, r.res.BallIDs)))
			kept = append(kept, f)
		}

		var fallback *int
		if sc, ok := row.Int(legacy.KeyScore); ok && sc >= 0 {
			v := int(sc)
			fallback = &v
		}
		st := FrameStats(rolls, fallback)

		g := domain.Game{
			UserID:       r.in.UserID,
			SessionID:    sessionID,
			LeagueID:     leagueID,
			Date:         date,
			GameNumber:   gameNumber,
			TotalScore:   st.Total,
			Strikes:      st.Strikes,
			Spares:       st.Spares,
			Opens:        st.Opens,
			FramePreview: st.Preview,
			BallID:       gameBall,
			PatternID:    optional(lookup(row, legacy.KeyPatternFK, r.res.PatternIDs)),
			BatchID:      r.in.BatchID,
		}
		gameID, err := r.store.InsertGame(ctx, g)
		if err != nil {
			return err
		}
		r.res.GameIDs[sid] = gameID
		r.res.Counts.Games++

		for i := range kept {
			pending = append(pending, domain.Frame{
				UserID:      r.in.UserID,
				GameID:      gameID,
				FrameNumber: numbers[i],
				Roll1:       rolls[i].Roll1,
				Roll2:       rolls[i].Roll2,
				Roll3:       rolls[i].Roll3,
				BallID:      frameBalls[i],
				BatchID:     r.in.BatchID,
			})
		}
		if len(pending) >= r.in.FrameChunk {
			if err := flush(); err != nil {
				return err
			}
		}

		switches := DeriveBallSwitches(gameBall, numbers, frameBalls)
		r.res.Counts.BallSwitches += len(switches)
		r.res.Refine.Games = append(r.res.Refine.Games, refine.GameItem{
			ID:           gameID,
			SourceID:     sid,
			SessionID:    sessionID,
			Notes:        row[legacy.KeyNotes],
			Lane:         row[legacy.KeyLane],
			BallSwitches: switches,
		})
	}
	if err := flush(); err != nil {
		return err
	}

	for _, f := range r.in.Snapshot.Frames {
		g, ok := f.Int(legacy.KeyGameFK)
		if !ok {
			continue
		}
		if _, left := framesByGame[g]; left {
			r.skip(domain.RecordFrame, f, "frame references a game that was not imported; skipped")
		}
	}
	return nil
}

func rollOf(row legacy.Row, key string) *int {
	n, ok := row.Int(key)
	if !ok || n < 0 {
		return nil
	}
	v := int(n)
	return &v
}
