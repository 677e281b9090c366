package indicator

import "fmt"

// DefaultHistorySize is the number of values each series retains.
const DefaultHistorySize = 4096

// History is an append-only ring of values with O(1) reads by offset
// (0 = most recent). Len counts every value ever appended; only the most
// recent Cap values remain readable. Capacity is a power of two for
// bitwise modulo.
type History[T any] struct {
	buf  []T
	mask uint64
	n    uint64
}

// Series is the value history of one indicator.
type Series = History[float64]

// NewHistory creates a history retaining at least capacity values.
func NewHistory[T any](capacity int) *History[T] {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &History[T]{
		buf:  make([]T, c),
		mask: uint64(c - 1),
	}
}

// NewSeries creates a float64 series retaining at least capacity values.
func NewSeries(capacity int) *Series {
	return NewHistory[float64](capacity)
}

// Append adds v as the most recent value.
func (h *History[T]) Append(v T) {
	h.buf[h.n&h.mask] = v
	h.n++
}

// Len returns the number of values appended so far.
func (h *History[T]) Len() int { return int(h.n) }

// Cap returns how many values remain readable.
func (h *History[T]) Cap() int { return len(h.buf) }

// At returns the value offset places back from the most recent one.
func (h *History[T]) At(offset int) (T, error) {
	var zero T
	if offset < 0 || uint64(offset) >= h.n || offset >= len(h.buf) {
		return zero, fmt.Errorf("%w: offset %d with %d values", ErrInsufficientHistory, offset, h.n)
	}
	return h.buf[(h.n-1-uint64(offset))&h.mask], nil
}

// Last returns the most recent value.
func (h *History[T]) Last() (T, error) { return h.At(0) }

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
