// Package refine applies the second-pass patches that enrich already
// reconciled sessions and games with notes, lane context and ball switches
package refine

import (
	"context"
	"fmt"
	"strconv"

	"laneledger/internal/core/legacy"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// Lane bounds accepted for lane context
const (
	MinLane = 1
	MaxLane = 120
)

// SessionItem is one imported session plus its raw refinement fields
type SessionItem struct {
	ID       uuid.UUID
	SourceID int64
	Notes    any
	Lane     any
}

// GameItem is one imported game plus its raw refinement fields
type GameItem struct {
	ID           uuid.UUID
	SourceID     int64
	SessionID    uuid.UUID
	Notes        any
	Lane         any
	BallSwitches []domain.BallSwitch
}

// Input is everything reconciliation hands to refinement
type Input struct {
	Sessions []SessionItem
	Games    []GameItem
}

// Result carries the tallies and warnings of one refinement pass
type Result struct {
	Counts   domain.RefineCounts
	Warnings []domain.Warning
}

// Apply patches every session then every game through store
func Apply(ctx context.Context, store domain.CanonicalStore, in Input) (Result, error) {
	var res Result
	sessionLanes := make(map[uuid.UUID]*domain.LaneContext, len(in.Sessions))

	for _, s := range in.Sessions {
		res.Counts.Sessions.Processed++
		var p domain.SessionPatch
		if notes, ok := legacy.OptionalText(s.Notes, legacy.MaxNotesRunes); ok {
			p.Notes = &notes
		}
		lc, w := laneFor(s.Lane, domain.RecordSession, s.SourceID)
		if w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
		p.LaneContext = lc
		sessionLanes[s.ID] = lc

		if p.Empty() {
			res.Counts.Sessions.Skipped++
			continue
		}
		if err := store.PatchSession(ctx, s.ID, p); err != nil {
			return res, err
		}
		res.Counts.Sessions.Patched++
	}

	for _, g := range in.Games {
		res.Counts.Games.Processed++
		var p domain.GamePatch
		if notes, ok := legacy.OptionalText(g.Notes, legacy.MaxNotesRunes); ok {
			p.Notes = &notes
		}
		lc, w := laneFor(g.Lane, domain.RecordGame, g.SourceID)
		if w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
		if lc == nil {
			lc = sessionLanes[g.SessionID]
		}
		p.LaneContext = lc
		p.BallSwitches = g.BallSwitches

		if p.Empty() {
			res.Counts.Games.Skipped++
			continue
		}
		if err := store.PatchGame(ctx, g.ID, p); err != nil {
			return res, err
		}
		res.Counts.Games.Patched++
	}
	return res, nil
}

// LaneContextFor maps a lane number to its lane context
func LaneContextFor(lane int) (domain.LaneContext, bool) {
	if lane < MinLane || lane > MaxLane {
		return domain.LaneContext{}, false
	}
	return domain.LaneContext{Lane: lane, Pair: LanePair(lane)}, true
}

// LanePair returns the odd/even pair a lane belongs to, e.g. 7 -> "7-8"
func LanePair(lane int) string {
	left := lane
	if lane%2 == 0 {
		left = lane - 1
	}
	return strconv.Itoa(left) + "-" + strconv.Itoa(left+1)
}

// laneFor returns nil and no warning when the lane is absent. A present but
// unusable lane yields a warning and no lane context
func laneFor(raw any, t domain.RecordType, sourceID int64) (*domain.LaneContext, *domain.Warning) {
	if _, present := legacy.OptionalText(raw, 0); !present {
		return nil, nil
	}
	n, ok := legacy.NullableInt(raw)
	if ok {
		if lc, ok := LaneContextFor(int(n)); ok {
			return &lc, nil
		}
	}
	return nil, &domain.Warning{
		RecordType: t,
		RecordID:   strconv.FormatInt(sourceID, 10),
		Message:    fmt.Sprintf("lane is not a number between %d and %d; lane context not set", MinLane, MaxLane),
	}
}
