package config

import (
	"testing"
	"time"

	kit "laneledger/internal/platform/testkit"
)

func TestPrefixNesting(t *testing.T) {
	imp := New().Prefix("IMPORT_").Prefix("CALLBACK_")
	if got := imp.key("SECRET"); got != "IMPORT_CALLBACK_SECRET" {
		t.Fatalf("key() = %q", got)
	}
}

func TestMustString(t *testing.T) {
	c := New().Prefix("SERVICE_PGSQL_")
	t.Setenv("SERVICE_PGSQL_DBURL", "  postgres://x ")
	if got := c.MustString("DBURL"); got != "postgres://x" {
		t.Fatalf("MustString = %q", got)
	}
	t.Setenv("SERVICE_PGSQL_BLANK", "   ")
	kit.MustPanic(t, func() { _ = c.MustString("BLANK") })
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
}

func TestMay(t *testing.T) {
	c := New().Prefix("IMPORT_")
	t.Setenv("IMPORT_TZ", " Europe/Berlin ")
	t.Setenv("IMPORT_CHUNK", " 250 ")
	t.Setenv("IMPORT_BAD_CHUNK", "lots")
	t.Setenv("IMPORT_DRY", "true")
	t.Setenv("IMPORT_BAD_DRY", "maybe")
	t.Setenv("IMPORT_TIMEOUT", "45s")
	t.Setenv("IMPORT_BAD_TIMEOUT", "soon")

	cases := []struct {
		name string
		got  any
		want any
	}{
		{"string hit", c.MayString("TZ", "UTC"), "Europe/Berlin"},
		{"string default", c.MayString("NONE", "UTC"), "UTC"},
		{"int hit", c.MayInt("CHUNK", 500), 250},
		{"int invalid", c.MayInt("BAD_CHUNK", 500), 500},
		{"int default", c.MayInt("NONE", 500), 500},
		{"bool hit", c.MayBool("DRY", false), true},
		{"bool invalid", c.MayBool("BAD_DRY", false), false},
		{"duration hit", c.MayDuration("TIMEOUT", time.Second), 45 * time.Second},
		{"duration invalid", c.MayDuration("BAD_TIMEOUT", time.Second), time.Second},
		{"duration default", c.MayDuration("NONE", 2*time.Second), 2 * time.Second},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
