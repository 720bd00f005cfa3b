// Package domain holds the import pipeline types, DTOs and ports
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"laneledger/internal/core/legacy"

	"github.com/google/uuid"
)

// SourceTypeSQLite is the only supported backup format
const SourceTypeSQLite = "sqlite"

// ErrorMessageMax caps errorMessage on failed batches
const ErrorMessageMax = 350

// ClipErrorMessage trims msg to ErrorMessageMax runes
func ClipErrorMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= ErrorMessageMax {
		return msg
	}
	r := []rune(msg)
	return string(r[:ErrorMessageMax])
}

// Limits are the protocol bounds a worker must respect
type Limits struct {
	RowsPerCallback int   `json:"rows_per_callback" example:"500"`
	NonceMinLength  int   `json:"nonce_min_length"  example:"16"`
	NonceMaxLength  int   `json:"nonce_max_length"  example:"128"`
	ClockSkewSecs   int64 `json:"clock_skew_secs"   example:"300"`
	MaxBodyBytes    int64 `json:"max_body_bytes"    example:"16777216"`
	ErrorMessageMax int   `json:"error_message_max" example:"350"`
}

// Batch is one import attempt for one user
type Batch struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                string     `json:"userId"`
	SourceType            string     `json:"sourceType"`
	R2Key                 *string    `json:"r2Key,omitempty"`
	SourceFileName        *string    `json:"sourceFileName,omitempty"`
	FileSize              int64      `json:"fileSize"`
	SourceHash            *string    `json:"sourceHash,omitempty"`
	IdempotencyKey        *string    `json:"idempotencyKey,omitempty"`
	TimezoneOffsetMinutes int        `json:"timezoneOffsetMinutes"`
	ReplaceAll            bool       `json:"replaceAll"`
	Status                Status     `json:"status"`
	ErrorMessage          *string    `json:"errorMessage,omitempty"`
	ImportedAt            time.Time  `json:"importedAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	Counts                Counts     `json:"counts"`
	Warnings              []Warning  `json:"warnings"`
}

// NewBatch is the insert shape for a batch
type NewBatch struct {
	UserID                string
	R2Key                 *string
	SourceFileName        *string
	FileSize              int64
	SourceHash            *string
	IdempotencyKey        *string
	TimezoneOffsetMinutes int
	ReplaceAll            bool
	Status                Status
	ImportedAt            time.Time
}

// Tally counts refinement outcomes for one entity type
type Tally struct {
	Processed int `json:"processed"`
	Patched   int `json:"patched"`
	Skipped   int `json:"skipped"`
}

// RefineCounts are the refinement tallies
type RefineCounts struct {
	Sessions Tally `json:"sessions"`
	Games    Tally `json:"games"`
}

// Counts are the per-entity totals of one import
type Counts struct {
	Houses       int          `json:"houses"`
	Patterns     int          `json:"patterns"`
	Balls        int          `json:"balls"`
	Leagues      int          `json:"leagues"`
	Weeks        int          `json:"weeks"`
	Sessions     int          `json:"sessions"`
	Games        int          `json:"games"`
	Frames       int          `json:"frames"`
	BallSwitches int          `json:"ballSwitches"`
	Skipped      int          `json:"skipped"`
	Warnings     int          `json:"warnings"`
	Refinement   RefineCounts `json:"refinement"`
}

// RecordType tags which entity a warning concerns
type RecordType string

// Warning record types
const (
	RecordHouse   RecordType = "house"
	RecordPattern RecordType = "pattern"
	RecordBall    RecordType = "ball"
	RecordLeague  RecordType = "league"
	RecordSession RecordType = "session"
	RecordGame    RecordType = "game"
	RecordFrame   RecordType = "frame"
)

// RecordIDMultiple marks a collapsed warning group
const RecordIDMultiple = "multiple"

// Warning is a non-fatal note about one source record
type Warning struct {
	RecordType RecordType `json:"recordType"`
	RecordID   string     `json:"recordId"`
	Message    string     `json:"message"`
}

// SourceRow is one loosely typed legacy row
type SourceRow = legacy.Row

// Snapshot is the full set of legacy rows for one import
type Snapshot struct {
	Houses   []SourceRow `json:"houses"`
	Patterns []SourceRow `json:"patterns"`
	Balls    []SourceRow `json:"balls"`
	Leagues  []SourceRow `json:"leagues"`
	Weeks    []SourceRow `json:"weeks"`
	Games    []SourceRow `json:"games"`
	Frames   []SourceRow `json:"frames"`
}

// Rows returns the rows held for a snapshot table
func (s *Snapshot) Rows(t SnapshotTable) []SourceRow {
	switch t {
	case TableHouses:
		return s.Houses
	case TablePatterns:
		return s.Patterns
	case TableBalls:
		return s.Balls
	case TableLeagues:
		return s.Leagues
	case TableWeeks:
		return s.Weeks
	case TableGames:
		return s.Games
	case TableFrames:
		return s.Frames
	}
	return nil
}

// Set replaces the rows held for a snapshot table
func (s *Snapshot) Set(t SnapshotTable, rows []SourceRow) {
	switch t {
	case TableHouses:
		s.Houses = rows
	case TablePatterns:
		s.Patterns = rows
	case TableBalls:
		s.Balls = rows
	case TableLeagues:
		s.Leagues = rows
	case TableWeeks:
		s.Weeks = rows
	case TableGames:
		s.Games = rows
	case TableFrames:
		s.Frames = rows
	}
}

// LaneContext is the lane a session or game was bowled on
type LaneContext struct {
	Lane int    `json:"lane"`
	Pair string `json:"pair"`
}

// BallSwitch is one mid-game ball change
type BallSwitch struct {
	Frame      int        `json:"frame"`
	FromBallID *uuid.UUID `json:"fromBallId"`
	ToBallID   *uuid.UUID `json:"toBallId"`
}

// House is a canonical bowling center, shared across users
type House struct {
	Name     string
	Key      string
	Location *string
}

// Pattern is a canonical oil pattern, shared across users
type Pattern struct {
	Name       string
	Key        string
	LengthFeet *float64
}

// Ball is a canonical user-owned bowling ball
type Ball struct {
	UserID    string
	Name      string
	Key       string
	Brand     *string
	WeightLbs *float64
	BatchID   uuid.UUID
}

// League is a canonical league
type League struct {
	UserID          string
	Name            string
	GamesPerSession int
	HouseID         *uuid.UUID
	HouseName       *string
	Notes           *string
	CreatedAt       time.Time
	BatchID         uuid.UUID
}

// Session is a canonical league night, sourced from a legacy week
type Session struct {
	UserID     string
	LeagueID   uuid.UUID
	Date       string
	WeekNumber *int
	BatchID    uuid.UUID
}

// Game is a canonical game. Handicap is never derivable from the source
// and is always stored null
type Game struct {
	UserID       string
	SessionID    uuid.UUID
	LeagueID     uuid.UUID
	Date         string
	GameNumber   int
	TotalScore   int
	Strikes      int
	Spares       int
	Opens        int
	FramePreview string
	BallID       *uuid.UUID
	PatternID    *uuid.UUID
	BatchID      uuid.UUID
}

// Frame is a canonical frame
type Frame struct {
	UserID      string
	GameID      uuid.UUID
	FrameNumber int
	Roll1       *int
	Roll2       *int
	Roll3       *int
	BallID      *uuid.UUID
	BatchID     uuid.UUID
}

// SessionPatch is the refinement written onto a session
type SessionPatch struct {
	Notes       *string
	LaneContext *LaneContext
}

// GamePatch is the refinement written onto a game
type GamePatch struct {
	Notes        *string
	LaneContext  *LaneContext
	BallSwitches []BallSwitch
}

// Empty reports whether the patch changes nothing
func (p SessionPatch) Empty() bool { return p.Notes == nil && p.LaneContext == nil }

// Empty reports whether the patch changes nothing
func (p GamePatch) Empty() bool {
	return p.Notes == nil && p.LaneContext == nil && len(p.BallSwitches) == 0
}
