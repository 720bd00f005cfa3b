package legacy

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestNormalizeImportDateStrict(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"iso timestamp", "2025-09-10T12:45:00.000Z", "2025-09-10", true},
		{"unix seconds", 1_757_512_800, "2025-09-10", true},
		{"unix seconds float", float64(1_757_512_800), "2025-09-10", true},
		{"unix millis", int64(1_757_512_800_000), "2025-09-10", true},
		{"json number", json.Number("1757512800"), "2025-09-10", true},
		{"too short", "2025-9-1", "", false},
		{"too short after trim", "  2025-9-1  ", "", false},
		{"trimmed", "  2025-09-10 ", "2025-09-10", true},
		{"untrusted but long", "not-a-date", "not-a-date", true},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(1), "", false},
		{"nil", nil, "", false},
		{"bool", true, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeImportDateStrict(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("NormalizeImportDateStrict(%v) = (%q,%v), want (%q,%v)", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBuildLeagueCreatedAtByEarliestWeekDate(t *testing.T) {
	weeks := []Row{
		{KeyLeagueFK: float64(101), KeyDate: "2025-10-01"},
		{KeyLeagueFK: float64(101), KeyDate: "2025-09-10"},
		{KeyLeagueFK: float64(101), KeyDate: "bad"},
		{KeyLeagueFK: float64(202), KeyDate: "not-a-date"},
		{KeyDate: "2020-01-01"},
	}
	got := BuildLeagueCreatedAtByEarliestWeekDate(weeks)

	want := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	if !got[101].Equal(want) {
		t.Fatalf("league 101 createdAt = %v, want %v", got[101], want)
	}
	if _, ok := got[202]; ok {
		t.Fatalf("league 202 has no valid week and should be absent")
	}
	if len(got) != 1 {
		t.Fatalf("want 1 league, got %d", len(got))
	}
}

func TestToday_OffsetConvention(t *testing.T) {
	now := time.Date(2025, 9, 10, 2, 0, 0, 0, time.UTC)
	// UTC-5 reports +300, local time is still the 9th
	if got := Today(now, 300); got != "2025-09-09" {
		t.Fatalf("Today(+300) = %s", got)
	}
	if got := Today(now, 0); got != "2025-09-10" {
		t.Fatalf("Today(0) = %s", got)
	}
	// UTC+10 reports -600
	late := time.Date(2025, 9, 10, 20, 0, 0, 0, time.UTC)
	if got := Today(late, -600); got != "2025-09-11" {
		t.Fatalf("Today(-600) = %s", got)
	}
}

func TestNullableInt(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(12), 12, true},
		{12.9, 12, true},
		{int64(-3), -3, true},
		{" 42 ", 42, true},
		{"7.5", 7, true},
		{[]byte("9"), 9, true},
		{"", 0, false},
		{"abc", 0, false},
		{math.NaN(), 0, false},
		{nil, 0, false},
		{map[string]any{}, 0, false},
	}
	for _, tc := range tests {
		got, ok := NullableInt(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NullableInt(%v) = (%d,%v), want (%d,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOptionalTextAndName(t *testing.T) {
	if _, ok := OptionalText("   ", 0); ok {
		t.Fatalf("blank text should be absent")
	}
	if s, ok := OptionalText(float64(15), 0); !ok || s != "15" {
		t.Fatalf("numeric text = %q,%v", s, ok)
	}
	if got := NormalizeName("  Sunset\n\nLanes  "); got != "Sunset Lanes" {
		t.Fatalf("NormalizeName = %q", got)
	}
	if got := NormalizeName(nil); got != "" {
		t.Fatalf("NormalizeName(nil) = %q", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(0, 1, 12) != 1 || Clamp(20, 1, 12) != 12 || Clamp(4, 1, 12) != 4 {
		t.Fatalf("Clamp bounds wrong")
	}
}
