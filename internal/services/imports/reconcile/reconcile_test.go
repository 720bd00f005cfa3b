package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"laneledger/internal/services/imports/domain"
	"laneledger/internal/services/imports/imptest"

	"github.com/google/uuid"
)

var now = time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC)

func input(s domain.Snapshot) Input {
	return Input{UserID: "user-1", BatchID: uuid.New(), Now: now, Snapshot: s}
}

func countWarnings(ws []domain.Warning, t domain.RecordType) int {
	n := 0
	for _, w := range ws {
		if w.RecordType == t {
			n++
		}
	}
	return n
}

func TestRun_EndToEndCounts(t *testing.T) {
	mem := imptest.New()
	snap := domain.Snapshot{
		Houses:  []domain.SourceRow{{"sqliteId": 1, "name": "  Sunset   Lanes "}},
		Leagues: []domain.SourceRow{{"sqliteId": 1, "name": "Tuesday Trios", "houseFk": 1, "gamesPerSession": 40}},
		Weeks:   []domain.SourceRow{{"sqliteId": 1, "leagueFk": 1, "date": "2024-01-15T19:00:00Z", "weekNumber": 1}},
		Games:   []domain.SourceRow{{"sqliteId": 1, "weekFk": 1, "leagueFk": 1, "score": 150, "gameNumber": 1}},
		Frames: []domain.SourceRow{
			{"sqliteId": 2, "gameFk": 1, "frameNum": 2, "roll1": 3, "roll2": 4},
			{"sqliteId": 1, "gameFk": 1, "frameNum": 1, "roll1": 10},
		},
	}
	res, err := Run(context.Background(), mem, input(snap))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	c := res.Counts
	if c.Houses != 1 || c.Leagues != 1 || c.Weeks != 1 || c.Sessions != 1 || c.Games != 1 || c.Frames != 2 {
		t.Fatalf("counts = %+v", c)
	}
	if c.Skipped != 0 {
		t.Fatalf("skipped = %d", c.Skipped)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Message != HandicapWarning {
		t.Fatalf("warnings = %+v", res.Warnings)
	}

	leagues := mem.Leagues()
	if len(leagues) != 1 {
		t.Fatalf("leagues = %d", len(leagues))
	}
	l := leagues[0]
	if l.GamesPerSession != MaxGamesPerSession {
		t.Fatalf("gamesPerSession = %d", l.GamesPerSession)
	}
	if l.HouseName == nil || *l.HouseName != "Sunset Lanes" || l.HouseID == nil {
		t.Fatalf("house = %v %v", l.HouseID, l.HouseName)
	}
	if !l.CreatedAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("createdAt = %s", l.CreatedAt)
	}

	games := mem.Games()
	if games[0].TotalScore != 150 || games[0].Date != "2024-01-15" || games[0].Strikes != 1 {
		t.Fatalf("game = %+v", games[0].Game)
	}
	frames := mem.Frames()
	if frames[0].FrameNumber != 1 || frames[1].FrameNumber != 2 {
		t.Fatalf("frames out of order: %+v", frames)
	}
	if res.GameIDs[1] != games[0].ID {
		t.Fatalf("game remap missing")
	}
}

func TestRun_GameWithoutWeekIsSkippedWithOneWarning(t *testing.T) {
	mem := imptest.New()
	snap := domain.Snapshot{
		Leagues: []domain.SourceRow{{"sqliteId": 1, "name": "L"}},
		Weeks:   []domain.SourceRow{{"sqliteId": 1, "leagueFk": 1, "date": "2024-02-01"}},
		Games: []domain.SourceRow{
			{"sqliteId": 1, "weekFk": 1, "score": 100},
			{"sqliteId": 2, "leagueFk": 1, "score": 200},
		},
	}
	res, err := Run(context.Background(), mem, input(snap))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Counts.Games != 1 || mem.Counts().Games != 1 {
		t.Fatalf("games = %d stored %d", res.Counts.Games, mem.Counts().Games)
	}
	var gameWarnings []domain.Warning
	for _, w := range res.Warnings {
		if w.RecordType == domain.RecordGame && w.Message != HandicapWarning {
			gameWarnings = append(gameWarnings, w)
		}
	}
	if len(gameWarnings) != 1 || gameWarnings[0].RecordID != "2" {
		t.Fatalf("game warnings = %+v", gameWarnings)
	}
	if _, ok := res.GameIDs[2]; ok {
		t.Fatalf("skipped game must not be remapped")
	}
}

func TestRun_DeduplicatesHousesAndBalls(t *testing.T) {
	mem := imptest.New()
	snap := domain.Snapshot{
		Houses: []domain.SourceRow{
			{"sqliteId": 1, "name": "Bowl-O-Rama"},
			{"sqliteId": 2, "name": "BOWL-O-RAMA"},
			{"sqliteId": 3, "name": "   "},
		},
		Patterns: []domain.SourceRow{{"sqliteId": 1, "name": ""}, {"sqliteId": 2, "name": "Kegel Broadway", "length": 41}},
		Balls: []domain.SourceRow{
			{"sqliteId": 1, "name": "Phaze II", "weight": 15},
			{"sqliteId": 2, "name": "phaze ii"},
			{"sqliteId": 3},
		},
	}
	res, err := Run(context.Background(), mem, input(snap))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := mem.Counts(); got.Houses != 1 || got.Balls != 1 || got.Patterns != 1 {
		t.Fatalf("stored = %+v", got)
	}
	if res.HouseIDs[1] != res.HouseIDs[2] || res.BallIDs[1] != res.BallIDs[2] {
		t.Fatalf("duplicates should share ids")
	}
	if countWarnings(res.Warnings, domain.RecordHouse) != 1 || countWarnings(res.Warnings, domain.RecordBall) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if countWarnings(res.Warnings, domain.RecordPattern) != 0 {
		t.Fatalf("patterns skip silently, got %+v", res.Warnings)
	}
	if res.Counts.Skipped != 2 {
		t.Fatalf("skipped = %d", res.Counts.Skipped)
	}

	// a second run reuses the stored rows
	again, err := Run(context.Background(), mem, input(snap))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if mem.Counts().Houses != 1 || again.HouseIDs[1] != res.HouseIDs[1] {
		t.Fatalf("second run should find the existing house")
	}
}

func TestRun_SessionFallbacks(t *testing.T) {
	mem := imptest.New()
	in := input(domain.Snapshot{
		Leagues: []domain.SourceRow{{"sqliteId": 1}},
		Weeks: []domain.SourceRow{
			{"sqliteId": 1, "leagueFk": 1, "date": "2024"},
			{"sqliteId": 2, "leagueFk": 99, "date": "2024-01-01"},
		},
	})
	// 02:30 UTC at UTC-5 is still the previous day
	in.TimezoneOffsetMinutes = 300
	res, err := Run(context.Background(), mem, in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if leagues := mem.Leagues(); leagues[0].Name != "Imported League 1" || leagues[0].GamesPerSession != DefaultGamesPerSession {
		t.Fatalf("league = %+v", leagues[0])
	}
	if !mem.Leagues()[0].CreatedAt.Equal(now) {
		t.Fatalf("createdAt should fall back to import time")
	}
	sessions := mem.Sessions()
	if len(sessions) != 1 || sessions[0].Date != "2026-02-28" {
		t.Fatalf("sessions = %+v", sessions)
	}
	if res.Counts.Weeks != 2 || res.Counts.Sessions != 1 || res.Counts.Skipped != 1 {
		t.Fatalf("counts = %+v", res.Counts)
	}
	if countWarnings(res.Warnings, domain.RecordSession) != 2 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if countWarnings(res.Warnings, domain.RecordGame) != 0 {
		t.Fatalf("no games means no handicap warning")
	}
}

func TestRun_DateWarningsNameTheReason(t *testing.T) {
	mem := imptest.New()
	in := input(domain.Snapshot{
		Leagues: []domain.SourceRow{{"sqliteId": 1}},
		Weeks: []domain.SourceRow{
			{"sqliteId": 1, "leagueFk": 1, "date": "2024"},
			{"sqliteId": 2, "leagueFk": 1, "date": "2024-02-30"},
			{"sqliteId": 3, "leagueFk": 1, "date": "2024-02-29"},
		},
	})
	res, err := Run(context.Background(), mem, in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := map[string]bool{}
	for _, w := range res.Warnings {
		msgs[w.RecordID+" "+w.Message] = true
	}
	for _, want := range []string{
		"1 week date is " + dateMissing + "; using the import date",
		"2 week date is " + dateNotOnCalendar + "; using the import date",
	} {
		if !msgs[want] {
			t.Fatalf("missing warning %q in %+v", want, res.Warnings)
		}
	}
	if n := countWarnings(res.Warnings, domain.RecordSession); n != 2 {
		t.Fatalf("session warnings = %d, the leap day is valid", n)
	}
}

func TestRun_FramesAndBallSwitches(t *testing.T) {
	mem := imptest.New()
	in := input(domain.Snapshot{
		Balls:   []domain.SourceRow{{"sqliteId": 1, "name": "A"}, {"sqliteId": 2, "name": "B"}},
		Leagues: []domain.SourceRow{{"sqliteId": 1, "name": "L"}},
		Weeks:   []domain.SourceRow{{"sqliteId": 1, "leagueFk": 1, "date": 1705276800}},
		Games:   []domain.SourceRow{{"sqliteId": 1, "weekFk": 1, "ballFk": 1}},
		Frames: []domain.SourceRow{
			{"sqliteId": 1, "gameFk": 1, "frameNum": 1, "roll1": 10, "ballFk": 1},
			{"sqliteId": 2, "gameFk": 1, "frameNum": 2, "roll1": 10, "ballFk": 2},
			{"sqliteId": 3, "gameFk": 1, "frameNum": 11, "roll1": 10},
			{"sqliteId": 4, "gameFk": 1, "frameNum": 3, "roll1": 1, "roll2": 2, "ballFk": 2},
			{"sqliteId": 5, "gameFk": 77, "frameNum": 1, "roll1": 1},
			{"sqliteId": 6, "frameNum": 1},
		},
	})
	in.FrameChunk = 2
	res, err := Run(context.Background(), mem, in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Counts.Frames != 3 || len(mem.Frames()) != 3 {
		t.Fatalf("frames = %d stored %d", res.Counts.Frames, len(mem.Frames()))
	}
	if mem.FrameInserts != 2 {
		t.Fatalf("frame statements = %d, want 2", mem.FrameInserts)
	}
	if res.Counts.BallSwitches != 1 {
		t.Fatalf("ball switches = %d", res.Counts.BallSwitches)
	}
	sw := res.Refine.Games[0].BallSwitches
	if len(sw) != 1 || sw[0].Frame != 2 || *sw[0].FromBallID != res.BallIDs[1] || *sw[0].ToBallID != res.BallIDs[2] {
		t.Fatalf("switches = %+v", sw)
	}
	if got := countWarnings(res.Warnings, domain.RecordFrame); got != 3 {
		t.Fatalf("frame warnings = %d (%+v)", got, res.Warnings)
	}
	if g := mem.Games()[0]; g.Date != "2024-01-15" || g.TotalScore != (10+10+1)+(10+1+2)+(1+2) {
		t.Fatalf("game = %+v", g.Game)
	}
}

func TestRun_StoreErrorAborts(t *testing.T) {
	mem := imptest.New()
	boom := errors.New("boom")
	mem.FailOn("InsertLeague", boom)
	_, err := Run(context.Background(), mem, input(domain.Snapshot{
		Leagues: []domain.SourceRow{{"sqliteId": 1, "name": "L"}},
	}))
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "reconcile leagues") {
		t.Fatalf("err = %v", err)
	}
}
