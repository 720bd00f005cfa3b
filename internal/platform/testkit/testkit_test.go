package testkit

import "testing"

var seamFn = func() string { return "real" }

func TestSwap_RestoresOnCleanup(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Serial(t)
		Swap(t, &seamFn, func() string { return "fake" })
		if seamFn() != "fake" {
			t.Fatal("swap not applied")
		}
	})
	if seamFn() != "real" {
		t.Fatal("swap not restored")
	}
}

func TestMustPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
}

func TestMustContain(t *testing.T) {
	MustContain(t, "batch b-1 finished", "finished")
}
