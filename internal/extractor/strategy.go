package extractor

// strategy is one heuristic for a field. It reports ok=false when it finds
// nothing plausible, letting the next strategy try.
type strategy[T any] func(*Element) (T, bool)

// firstOf evaluates strategies in order and returns the first success.
func firstOf[T any](el *Element, strategies ...strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s(el); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
