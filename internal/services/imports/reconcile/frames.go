package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"laneledger/internal/core/legacy"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

// FrameRolls is one legacy frame reduced to its pin counts
type FrameRolls struct {
	Number int
	Roll1  *int
	Roll2  *int
	Roll3  *int
}

// Stats are the aggregate facts stored on a game
type Stats struct {
	Total   int
	Strikes int
	Spares  int
	Opens   int
	Preview string
}

// FrameStats derives strikes, spares, opens and a mark preview from a game's
// frames in frame order. Total is the fallback score when present, otherwise
// a best-effort score computed from the rolls
func FrameStats(frames []FrameRolls, fallbackScore *int) Stats {
	var st Stats
	marks := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.Roll1 == nil {
			continue
		}
		r1, r2, r3 := *f.Roll1, f.Roll2, f.Roll3
		var m strings.Builder

		if f.Number < 10 {
			switch {
			case r1 == 10:
				st.Strikes++
				m.WriteString("X")
			case r2 != nil && r1+*r2 == 10:
				st.Spares++
				m.WriteString(pinMark(r1))
				m.WriteString("/")
			default:
				st.Opens++
				m.WriteString(pinMark(r1))
				if r2 != nil {
					m.WriteString(pinMark(*r2))
				}
			}
			marks = append(marks, m.String())
			continue
		}

		// tenth frame, bonus balls score their own marks
		if r1 == 10 {
			st.Strikes++
			m.WriteString("X")
			if r2 != nil {
				if *r2 == 10 {
					st.Strikes++
					m.WriteString("X")
					if r3 != nil {
						if *r3 == 10 {
							st.Strikes++
							m.WriteString("X")
						} else {
							m.WriteString(pinMark(*r3))
						}
					}
				} else {
					m.WriteString(pinMark(*r2))
					if r3 != nil {
						if *r2+*r3 == 10 {
							st.Spares++
							m.WriteString("/")
						} else {
							m.WriteString(pinMark(*r3))
						}
					}
				}
			}
		} else if r2 != nil && r1+*r2 == 10 {
			st.Spares++
			m.WriteString(pinMark(r1))
			m.WriteString("/")
			if r3 != nil {
				if *r3 == 10 {
					st.Strikes++
					m.WriteString("X")
				} else {
					m.WriteString(pinMark(*r3))
				}
			}
		} else {
			st.Opens++
			m.WriteString(pinMark(r1))
			if r2 != nil {
				m.WriteString(pinMark(*r2))
			}
		}
		marks = append(marks, m.String())
	}
	st.Preview = strings.Join(marks, " ")

	if fallbackScore != nil {
		st.Total = *fallbackScore
	} else {
		st.Total = scoreRolls(frames)
	}
	return st
}

func pinMark(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// scoreRolls applies standard ten-pin bonuses over whatever rolls exist
func scoreRolls(frames []FrameRolls) int {
	var rolls []int
	type span struct{ start, n, number int }
	spans := make([]span, 0, len(frames))
	for _, f := range frames {
		s := span{start: len(rolls), number: f.Number}
		for _, r := range []*int{f.Roll1, f.Roll2, f.Roll3} {
			if r != nil {
				rolls = append(rolls, *r)
				s.n++
			}
		}
		if s.n > 0 {
			spans = append(spans, s)
		}
	}
	bonus := func(from, k int) int {
		sum := 0
		for i := from; i < len(rolls) && i < from+k; i++ {
			sum += rolls[i]
		}
		return sum
	}

	total := 0
	for _, s := range spans {
		first := rolls[s.start]
		switch {
		case s.number >= 10:
			total += bonus(s.start, s.n)
		case first == 10:
			total += 10 + bonus(s.start+1, 2)
		case s.n >= 2 && first+rolls[s.start+1] == 10:
			total += 10 + bonus(s.start+2, 1)
		default:
			total += bonus(s.start, min(s.n, 2))
		}
	}
	return total
}

// sortFrames orders a game's frames by frame number, then source id
func sortFrames(frames []legacy.Row) {
	sort.SliceStable(frames, func(i, j int) bool {
		ni, _ := frames[i].Int(legacy.KeyFrameNum)
		nj, _ := frames[j].Int(legacy.KeyFrameNum)
		if ni != nj {
			return ni < nj
		}
		ii, _ := frames[i].ID()
		ij, _ := frames[j].ID()
		return ii < ij
	})
}

// validFrameNumber returns the frame number when it lies in [1,10]
func validFrameNumber(r legacy.Row) (int, bool) {
	n, ok := r.Int(legacy.KeyFrameNum)
	if !ok || n < 1 || n > 10 {
		return 0, false
	}
	return int(n), true
}

// DeriveBallSwitches walks frames already in play order, starting from the
// game's ball, and emits a switch whenever a frame's resolved ball differs
// from the active one. A frame without a resolvable ball keeps the active
// ball. When the game has no ball the first resolved frame ball becomes
// active without a switch
func DeriveBallSwitches(gameBall *uuid.UUID, frames []int, frameBalls []*uuid.UUID) []domain.BallSwitch {
	var out []domain.BallSwitch
	active := gameBall
	for i, b := range frameBalls {
		if b == nil {
			continue
		}
		if active == nil {
			active = b
			continue
		}
		if *b != *active {
			out = append(out, domain.BallSwitch{Frame: frames[i], FromBallID: active, ToBallID: b})
			active = b
		}
	}
	return out
}
