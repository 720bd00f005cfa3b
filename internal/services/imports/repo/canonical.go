package repo

import (
	"context"
	"fmt"
	"strings"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

func scanID(row store.Row) (uuid.UUID, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		return uuid.Nil, err
	}
	return parseID(s)
}

// findID runs a lookup returning at most one id
func (r *queries) findID(ctx context.Context, what, sql string, args ...any) (uuid.UUID, bool, error) {
	id, err := store.One(ctx, r.q, scanID, sql, args...)
	if notFound(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, perr.FromPostgresf(err, "find %s", what)
	}
	return id, true, nil
}

// insertID runs an insert returning the new (or conflicting) id
func (r *queries) insertID(ctx context.Context, what, sql string, args ...any) (uuid.UUID, error) {
	id, err := store.One(ctx, r.q, scanID, sql, args...)
	if err != nil {
		return uuid.Nil, perr.FromPostgresf(err, "insert %s", what)
	}
	return id, nil
}

func (r *queries) FindHouseByKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	return r.findID(ctx, "house", `SELECT id::text FROM houses WHERE name_key = $1`, key)
}

// InsertHouse is race safe: a concurrent insert of the same key returns the winner's id
func (r *queries) InsertHouse(ctx context.Context, h domain.House) (uuid.UUID, error) {
	const sql = `
		INSERT INTO houses (id, name, name_key, location) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_key) DO UPDATE SET name_key = EXCLUDED.name_key
		RETURNING id::text`
	return r.insertID(ctx, "house", sql, uuid.New(), h.Name, h.Key, h.Location)
}

func (r *queries) FindPatternByKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	return r.findID(ctx, "pattern", `SELECT id::text FROM patterns WHERE name_key = $1`, key)
}

func (r *queries) InsertPattern(ctx context.Context, p domain.Pattern) (uuid.UUID, error) {
	const sql = `
		INSERT INTO patterns (id, name, name_key, length_feet) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_key) DO UPDATE SET name_key = EXCLUDED.name_key
		RETURNING id::text`
	return r.insertID(ctx, "pattern", sql, uuid.New(), p.Name, p.Key, p.LengthFeet)
}

func (r *queries) FindBallByKey(ctx context.Context, userID, key string) (uuid.UUID, bool, error) {
	return r.findID(ctx, "ball", `SELECT id::text FROM balls WHERE user_id = $1 AND name_key = $2`, userID, key)
}

func (r *queries) InsertBall(ctx context.Context, b domain.Ball) (uuid.UUID, error) {
	const sql = `
		INSERT INTO balls (id, user_id, name, name_key, brand, weight_lbs, import_batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, name_key) DO UPDATE SET name_key = EXCLUDED.name_key
		RETURNING id::text`
	return r.insertID(ctx, "ball", sql, uuid.New(), b.UserID, b.Name, b.Key, b.Brand, b.WeightLbs, b.BatchID)
}

func (r *queries) InsertLeague(ctx context.Context, l domain.League) (uuid.UUID, error) {
	const sql = `
		INSERT INTO leagues (
			id, user_id, name, games_per_session, house_id, house_name, notes, created_at, import_batch_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text`
	return r.insertID(ctx, "league", sql,
		uuid.New(), l.UserID, l.Name, l.GamesPerSession, l.HouseID, l.HouseName, l.Notes, l.CreatedAt, l.BatchID)
}

func (r *queries) InsertSession(ctx context.Context, s domain.Session) (uuid.UUID, error) {
	const sql = `
		INSERT INTO sessions (id, user_id, league_id, date, week_number, import_batch_id)
		VALUES ($1, $2, $3, $4::date, $5, $6)
		RETURNING id::text`
	return r.insertID(ctx, "session", sql, uuid.New(), s.UserID, s.LeagueID, s.Date, s.WeekNumber, s.BatchID)
}

// InsertGame always stores a null handicap
func (r *queries) InsertGame(ctx context.Context, g domain.Game) (uuid.UUID, error) {
	const sql = `
		INSERT INTO games (
			id, user_id, session_id, league_id, date, game_number, total_score,
			strikes, spares, opens, frame_preview, handicap, ball_id, pattern_id, import_batch_id
		) VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, NULL, $12, $13, $14)
		RETURNING id::text`
	return r.insertID(ctx, "game", sql,
		uuid.New(), g.UserID, g.SessionID, g.LeagueID, g.Date, g.GameNumber, g.TotalScore,
		g.Strikes, g.Spares, g.Opens, g.FramePreview, g.BallID, g.PatternID, g.BatchID)
}

// InsertFrames writes one multi-row statement; callers bound the slice
func (r *queries) InsertFrames(ctx context.Context, frames []domain.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	const cols = 9
	var sb strings.Builder
	sb.WriteString(`INSERT INTO frames (
		id, user_id, game_id, frame_number, roll1, roll2, roll3, ball_id, import_batch_id
	) VALUES `)
	args := make([]any, 0, cols*len(frames))
	for i, f := range frames {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * cols
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9)
		args = append(args,
			uuid.New(), f.UserID, f.GameID, f.FrameNumber, f.Roll1, f.Roll2, f.Roll3, f.BallID, f.BatchID)
	}
	if _, err := r.q.Exec(ctx, sb.String(), args...); err != nil {
		return perr.FromPostgres(err, "insert frames")
	}
	return nil
}

// PatchSession only overwrites the fields the patch carries
func (r *queries) PatchSession(ctx context.Context, id uuid.UUID, p domain.SessionPatch) error {
	lane, err := jsonPtr(p.LaneContext)
	if err != nil {
		return err
	}
	const sql = `
		UPDATE sessions
		SET notes = COALESCE($2, notes), lane_context = COALESCE($3::jsonb, lane_context)
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, sql, id, p.Notes, lane); err != nil {
		return perr.FromPostgres(err, "patch session")
	}
	return nil
}

func (r *queries) PatchGame(ctx context.Context, id uuid.UUID, p domain.GamePatch) error {
	lane, err := jsonPtr(p.LaneContext)
	if err != nil {
		return err
	}
	var switches *string
	if len(p.BallSwitches) > 0 {
		s, err := jsonText(p.BallSwitches)
		if err != nil {
			return err
		}
		switches = &s
	}
	const sql = `
		UPDATE games
		SET notes         = COALESCE($2, notes),
		    lane_context  = COALESCE($3::jsonb, lane_context),
		    ball_switches = COALESCE($4::jsonb, ball_switches)
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, sql, id, p.Notes, lane, switches); err != nil {
		return perr.FromPostgres(err, "patch game")
	}
	return nil
}
