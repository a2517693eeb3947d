package simulation

// History is a fixed-capacity ring that evicts its oldest entry when full.
type History[T any] struct {
	buf   []T
	start int
	n     int
}

// NewHistory returns an empty ring holding at most capacity entries.
// Capacities below 1 are raised to 1.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry if the ring is full.
func (h *History[T]) Push(v T) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored entries.
func (h *History[T]) Len() int { return h.n }

// Cap returns the ring capacity.
func (h *History[T]) Cap() int { return len(h.buf) }

// At returns the i-th entry, oldest first.
func (h *History[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= h.n {
		return zero, false
	}
	return h.buf[(h.start+i)%len(h.buf)], true
}

// Items returns the entries oldest first.
func (h *History[T]) Items() []T {
	out := make([]T, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Clear removes every entry.
func (h *History[T]) Clear() {
	var zero T
	for i := range h.buf {
		h.buf[i] = zero
	}
	h.start, h.n = 0, 0
}
