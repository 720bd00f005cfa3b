package legacysqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	perr "laneledger/internal/platform/errors"
)

func writeBackup(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return path
}

func TestColumnKey(t *testing.T) {
	cases := map[string]string{
		"id":                "sqliteId",
		"ID":                "sqliteId",
		"name":              "name",
		"house_id":          "houseFk",
		"leagueFk":          "leagueFk",
		"games_per_session": "gamesPerSession",
		"frame_num":         "frameNum",
		"week_number":       "weekNumber",
	}
	for in, want := range cases {
		if got := ColumnKey(in); got != want {
			t.Errorf("ColumnKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnapshot_ReadsTables(t *testing.T) {
	path := writeBackup(t,
		`CREATE TABLE houses (id INTEGER PRIMARY KEY, name TEXT, location TEXT)`,
		`INSERT INTO houses VALUES (1, 'Sunset Lanes', NULL), (2, 'Bowl-A-Rama', 'Springfield')`,
		`CREATE TABLE leagues (id INTEGER PRIMARY KEY, name TEXT, house_id INTEGER, games_per_session INTEGER)`,
		`INSERT INTO leagues VALUES (7, 'Tuesday Trios', 1, 3)`,
		`CREATE TABLE frames (id INTEGER PRIMARY KEY, game_id INTEGER, frame_num INTEGER, roll1 INTEGER, roll2 INTEGER)`,
		`INSERT INTO frames VALUES (1, 1, 1, 10, NULL)`,
	)
	r, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	snap, err := r.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Houses) != 2 || len(snap.Leagues) != 1 || len(snap.Frames) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Games) != 0 || len(snap.Weeks) != 0 {
		t.Fatal("missing tables should read as empty")
	}
	if snap.Houses[1]["name"] != "Bowl-A-Rama" || snap.Houses[0]["location"] != nil {
		t.Fatalf("houses = %+v", snap.Houses)
	}
	l := snap.Leagues[0]
	if id, ok := l.ID(); !ok || id != 7 {
		t.Fatalf("league id = %v", l["sqliteId"])
	}
	if fk, ok := l.Int("houseFk"); !ok || fk != 1 {
		t.Fatalf("houseFk = %v", l["houseFk"])
	}
	if g, ok := snap.Frames[0].Int("gameFk"); !ok || g != 1 {
		t.Fatalf("frame = %+v", snap.Frames[0])
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(context.Background(), " "); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty path err = %v", err)
	}
	junk := filepath.Join(t.TempDir(), "junk.sqlite")
	if err := os.WriteFile(junk, []byte("this is not a database, just some text long enough to look like a header"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), junk); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("junk err = %v", err)
	}
}
