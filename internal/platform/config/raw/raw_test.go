package raw

import "testing"

func TestConf(t *testing.T) {
	t.Setenv("LOG_LEVEL", " warn ")
	t.Setenv("LOG_CALLER", "On")
	t.Setenv("LOG_COLOR", "nope")
	t.Setenv("LOG_SAMPLE_EVERY", "5")
	t.Setenv("LOG_BAD_INT", "5x")
	t.Setenv("LOG_NEG_INT", "-3")
	t.Setenv("LOG_BLANK", "   ")

	c := New().Prefix("LOG_")
	if got := c.Get("LEVEL", "debug"); got != "warn" {
		t.Fatalf("Get trims: %q", got)
	}
	if got := c.Get("BLANK", "def"); got != "def" {
		t.Fatalf("blank falls back: %q", got)
	}
	if got := New().Get("LOG_LEVEL", ""); got != "warn" {
		t.Fatalf("root view: %q", got)
	}

	bools := []struct {
		key  string
		def  bool
		want bool
	}{
		{"CALLER", false, true},
		{"COLOR", true, false},
		{"MISSING", true, true},
	}
	for _, b := range bools {
		if got := c.GetBool(b.key, b.def); got != b.want {
			t.Fatalf("GetBool(%s) = %v", b.key, got)
		}
	}

	ints := map[string]int{"SAMPLE_EVERY": 5, "BAD_INT": 7, "NEG_INT": 7, "MISSING": 7}
	for key, want := range ints {
		if got := c.GetInt(key, 7); got != want {
			t.Fatalf("GetInt(%s) = %d, want %d", key, got, want)
		}
	}
}
