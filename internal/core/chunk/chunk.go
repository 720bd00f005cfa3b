// Package chunk splits row slices into bounded batches so no single store call
// carries more than a fixed number of rows
package chunk

import (
	perr "laneledger/internal/platform/errors"
)

// DefaultRows is the row ceiling for one persistence call
const DefaultRows = 500

// Rows splits rows into consecutive slices of at most size elements.
// The returned slices alias rows
func Rows[T any](rows []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, perr.InvalidArgf("chunk size must be a positive integer, got %d", size)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end:end])
	}
	return out, nil
}

// Each calls fn for every chunk in order and stops at the first error
func Each[T any](rows []T, size int, fn func(part []T) error) error {
	parts, err := Rows(rows, size)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}
