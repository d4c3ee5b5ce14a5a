package vote

// Sticky holds a displayed selection keyed by K that only changes when a
// different key has gathered enough votes.
type Sticky[K comparable, V any] struct {
	threshold int
	key       K
	value     V
	set       bool
}

// NewSticky creates a selection that switches once a challenger reaches threshold votes.
func NewSticky[K comparable, V any](threshold int) *Sticky[K, V] {
	return &Sticky[K, V]{threshold: threshold}
}

// Offer proposes value under key with the given vote count. The selection is
// replaced when none exists yet, or when key differs from the current one and
// count meets the threshold. It reports whether the selection changed.
func (s *Sticky[K, V]) Offer(key K, count int, value V) bool {
	if s.set && (key == s.key || count < s.threshold) {
		return false
	}
	s.key, s.value, s.set = key, value, true
	return true
}

// Current returns the selected key and value; ok is false when nothing is selected.
func (s *Sticky[K, V]) Current() (key K, value V, ok bool) {
	return s.key, s.value, s.set
}

// Threshold returns the vote count needed to displace the selection.
func (s *Sticky[K, V]) Threshold() int { return s.threshold }

// Reset clears the selection.
func (s *Sticky[K, V]) Reset() {
	var k K
	var v V
	s.key, s.value, s.set = k, v, false
}
