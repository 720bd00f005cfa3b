package reconcile

import (
	"reflect"
	"testing"

	"laneledger/internal/services/imports/domain"
)

func TestSummarizeWarnings(t *testing.T) {
	missing := "game has no resolvable week; skipped"
	in := []domain.Warning{
		{RecordType: domain.RecordGame, RecordID: "1", Message: missing},
		{RecordType: domain.RecordBall, RecordID: "4", Message: "ball name is missing; skipped"},
		{RecordType: domain.RecordGame, RecordID: "2", Message: missing},
		{RecordType: domain.RecordGame, RecordID: "3", Message: missing},
		{RecordType: domain.RecordSession, RecordID: "3", Message: missing},
	}
	got := SummarizeWarnings(in)
	want := []domain.Warning{
		{RecordType: domain.RecordGame, RecordID: "multiple", Message: missing + " (x3)"},
		{RecordType: domain.RecordBall, RecordID: "4", Message: "ball name is missing; skipped"},
		{RecordType: domain.RecordSession, RecordID: "3", Message: missing},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v\nwant %#v", got, want)
	}
}

func TestSummarizeWarnings_DistinctPassThrough(t *testing.T) {
	in := []domain.Warning{
		{RecordType: domain.RecordHouse, RecordID: "1", Message: "a"},
		{RecordType: domain.RecordHouse, RecordID: "2", Message: "b"},
	}
	if got := SummarizeWarnings(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("got %#v", got)
	}
	if got := SummarizeWarnings(nil); len(got) != 0 {
		t.Fatalf("nil input gave %#v", got)
	}
}
