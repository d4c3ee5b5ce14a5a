// Package vote provides bounded majority voting and hysteresis selection,
// used to keep a per-frame classification from flickering.
package vote

// DefaultCapacity is the history length used for identity voting.
const DefaultCapacity = 15

// Window is a bounded FIFO history of votes. Once full, each push evicts the
// oldest value. The zero value is not usable; use NewWindow.
type Window[T comparable] struct {
	buf   []T
	start int
	size  int
}

// NewWindow creates a window holding at most capacity values (minimum 1).
func NewWindow[T comparable](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Len returns the number of retained values.
func (w *Window[T]) Len() int { return w.size }

// Push appends v, evicting the oldest value when the window is full.
func (w *Window[T]) Push(v T) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// Values returns the retained values, oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Reset drops all values.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.start, w.size = 0, 0
}

// Majority returns the most frequent value and its count. Ties go to the value
// whose first occurrence is oldest. ok is false for an empty window.
func (w *Window[T]) Majority() (value T, count int, ok bool) {
	if w.size == 0 {
		return value, 0, false
	}

	counts := make(map[T]int, w.size)
	order := make([]T, 0, w.size)
	for _, v := range w.Values() {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	for _, v := range order {
		if counts[v] > count {
			value, count = v, counts[v]
		}
	}
	return value, count, true
}
