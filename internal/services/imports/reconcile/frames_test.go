package reconcile

import (
	"reflect"
	"testing"

	"laneledger/internal/core/legacy"
	"laneledger/internal/services/imports/domain"

	"github.com/google/uuid"
)

func ip(n int) *int { return &n }

func TestFrameStats(t *testing.T) {
	perfect := make([]FrameRolls, 0, 10)
	for i := 1; i <= 9; i++ {
		perfect = append(perfect, FrameRolls{Number: i, Roll1: ip(10)})
	}
	perfect = append(perfect, FrameRolls{Number: 10, Roll1: ip(10), Roll2: ip(10), Roll3: ip(10)})

	cases := []struct {
		name     string
		frames   []FrameRolls
		fallback *int
		want     Stats
	}{
		{
			name:   "perfect game",
			frames: perfect,
			want:   Stats{Total: 300, Strikes: 12, Preview: "X X X X X X X X X XXX"},
		},
		{
			name: "spare open gutter",
			frames: []FrameRolls{
				{Number: 1, Roll1: ip(7), Roll2: ip(3)},
				{Number: 2, Roll1: ip(0), Roll2: ip(9)},
				{Number: 3, Roll1: ip(10)},
			},
			want: Stats{Total: 10 + 0 + 9 + 10, Strikes: 1, Spares: 1, Opens: 1, Preview: "7/ -9 X"},
		},
		{
			name: "fallback wins",
			frames: []FrameRolls{
				{Number: 1, Roll1: ip(4), Roll2: ip(5)},
			},
			fallback: ip(187),
			want:     Stats{Total: 187, Opens: 1, Preview: "45"},
		},
		{
			name: "tenth frame spare then strike",
			frames: []FrameRolls{
				{Number: 10, Roll1: ip(9), Roll2: ip(1), Roll3: ip(10)},
			},
			want: Stats{Total: 20, Strikes: 1, Spares: 1, Preview: "9/X"},
		},
		{
			name:   "missing rolls are ignored",
			frames: []FrameRolls{{Number: 1}},
			want:   Stats{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FrameStats(tc.frames, tc.fallback); got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestSortFrames_TieBreaksOnSourceID(t *testing.T) {
	frames := []legacy.Row{
		{"sqliteId": 9, "frameNum": 2},
		{"sqliteId": 5, "frameNum": 2},
		{"sqliteId": 7, "frameNum": 1},
	}
	sortFrames(frames)
	var ids []int64
	for _, f := range frames {
		id, _ := f.ID()
		ids = append(ids, id)
	}
	if !reflect.DeepEqual(ids, []int64{7, 5, 9}) {
		t.Fatalf("order = %v", ids)
	}
}

func TestDeriveBallSwitches(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	got := DeriveBallSwitches(&a, []int{1, 2, 3, 4, 5}, []*uuid.UUID{&a, nil, &b, &b, &c})
	want := []domain.BallSwitch{
		{Frame: 3, FromBallID: &a, ToBallID: &b},
		{Frame: 5, FromBallID: &b, ToBallID: &c},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}

	if got := DeriveBallSwitches(nil, []int{1, 2}, []*uuid.UUID{&b, &b}); len(got) != 0 {
		t.Fatalf("first frame ball should not count as a switch, got %+v", got)
	}
	if got := DeriveBallSwitches(&a, []int{1}, []*uuid.UUID{nil}); len(got) != 0 {
		t.Fatalf("unresolved frame ball should keep the active ball, got %+v", got)
	}
}
