package domain

import "fmt"

// RawTable names one raw mirror table
type RawTable uint8

// Raw mirror tables. Frames are staged, not mirrored
const (
	RawHouses RawTable = iota + 1
	RawPatterns
	RawBalls
	RawLeagues
	RawWeeks
	RawGames
)

// RawTables lists every raw mirror table in snapshot order
var RawTables = []RawTable{RawHouses, RawPatterns, RawBalls, RawLeagues, RawWeeks, RawGames}

// SQLName returns the backing table name
func (t RawTable) SQLName() string {
	switch t {
	case RawHouses:
		return "import_raw_houses"
	case RawPatterns:
		return "import_raw_patterns"
	case RawBalls:
		return "import_raw_balls"
	case RawLeagues:
		return "import_raw_leagues"
	case RawWeeks:
		return "import_raw_weeks"
	case RawGames:
		return "import_raw_games"
	}
	panic(fmt.Sprintf("domain: unknown raw table %d", t))
}

// String returns the snapshot key for the table
func (t RawTable) String() string {
	switch t {
	case RawHouses:
		return "houses"
	case RawPatterns:
		return "patterns"
	case RawBalls:
		return "balls"
	case RawLeagues:
		return "leagues"
	case RawWeeks:
		return "weeks"
	case RawGames:
		return "games"
	}
	return fmt.Sprintf("raw(%d)", uint8(t))
}

// SnapshotTable is a table name as sent by the worker in a rows callback
type SnapshotTable string

// Snapshot tables
const (
	TableHouses   SnapshotTable = "houses"
	TablePatterns SnapshotTable = "patterns"
	TableBalls    SnapshotTable = "balls"
	TableLeagues  SnapshotTable = "leagues"
	TableWeeks    SnapshotTable = "weeks"
	TableGames    SnapshotTable = "games"
	TableFrames   SnapshotTable = "frames"
)

// Raw maps a snapshot table to its mirror table; frames have none
func (t SnapshotTable) Raw() (RawTable, bool) {
	switch t {
	case TableHouses:
		return RawHouses, true
	case TablePatterns:
		return RawPatterns, true
	case TableBalls:
		return RawBalls, true
	case TableLeagues:
		return RawLeagues, true
	case TableWeeks:
		return RawWeeks, true
	case TableGames:
		return RawGames, true
	case TableFrames:
		return 0, false
	}
	return 0, false
}

// Valid reports whether t is a known snapshot table
func (t SnapshotTable) Valid() bool {
	switch t {
	case TableHouses, TablePatterns, TableBalls, TableLeagues, TableWeeks, TableGames, TableFrames:
		return true
	}
	return false
}

// CleanupTable names one table swept by replace-all cleanup
type CleanupTable uint8

// Cleanup tables
const (
	CleanFrames CleanupTable = iota + 1
	CleanGames
	CleanSessions
	CleanLeagues
	CleanBalls
	CleanRawHouses
	CleanRawPatterns
	CleanRawBalls
	CleanRawLeagues
	CleanRawWeeks
	CleanRawGames
)

// CleanupOrder is the fixed sweep order, children before parents
var CleanupOrder = []CleanupTable{
	CleanFrames,
	CleanGames,
	CleanSessions,
	CleanLeagues,
	CleanBalls,
	CleanRawHouses,
	CleanRawPatterns,
	CleanRawBalls,
	CleanRawLeagues,
	CleanRawWeeks,
	CleanRawGames,
}

// SQLName returns the backing table name
func (t CleanupTable) SQLName() string {
	switch t {
	case CleanFrames:
		return "frames"
	case CleanGames:
		return "games"
	case CleanSessions:
		return "sessions"
	case CleanLeagues:
		return "leagues"
	case CleanBalls:
		return "balls"
	case CleanRawHouses:
		return RawHouses.SQLName()
	case CleanRawPatterns:
		return RawPatterns.SQLName()
	case CleanRawBalls:
		return RawBalls.SQLName()
	case CleanRawLeagues:
		return RawLeagues.SQLName()
	case CleanRawWeeks:
		return RawWeeks.SQLName()
	case CleanRawGames:
		return RawGames.SQLName()
	}
	panic(fmt.Sprintf("domain: unknown cleanup table %d", t))
}

// Raw reports whether t is a raw mirror table. Raw rows of the batch being
// imported survive cleanup
func (t CleanupTable) Raw() bool { return t >= CleanRawHouses && t <= CleanRawGames }

// String returns the table name
func (t CleanupTable) String() string { return t.SQLName() }
