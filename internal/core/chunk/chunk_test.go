package chunk

import (
	"errors"
	"testing"

	perr "laneledger/internal/platform/errors"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestRows_EvenSplit(t *testing.T) {
	parts, err := Rows(seq(1000), 500)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(parts))
	}
	for i, p := range parts {
		if len(p) != 500 {
			t.Fatalf("chunk %d: want 500 rows, got %d", i, len(p))
		}
	}
	if parts[1][0] != 501 || parts[1][499] != 1000 {
		t.Fatalf("second chunk bounds wrong: %d..%d", parts[1][0], parts[1][499])
	}
}

func TestRows_Remainder(t *testing.T) {
	parts, err := Rows(seq(7), 3)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []int{3, 3, 1}
	if len(parts) != len(want) {
		t.Fatalf("want %d chunks, got %d", len(want), len(parts))
	}
	for i, n := range want {
		if len(parts[i]) != n {
			t.Fatalf("chunk %d: want %d, got %d", i, n, len(parts[i]))
		}
	}
}

func TestRows_Empty(t *testing.T) {
	parts, err := Rows([]int{}, 10)
	if err != nil || len(parts) != 0 {
		t.Fatalf("want no chunks and no error, got %v %v", parts, err)
	}
}

func TestRows_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Rows(seq(3), size)
		if err == nil {
			t.Fatalf("size %d: expected error", size)
		}
		if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("size %d: want InvalidArgument, got %v", size, perr.CodeOf(err))
		}
	}
}

func TestRows_AppendDoesNotClobberNext(t *testing.T) {
	parts, _ := Rows(seq(4), 2)
	_ = append(parts[0], 99)
	if parts[1][0] != 3 {
		t.Fatalf("append into first chunk overwrote second: %v", parts[1])
	}
}

func TestEach_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Each(seq(10), 3, func(p []int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 calls, got %d", calls)
	}
}
