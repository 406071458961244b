// Package util holds small generic slice helpers.
package util

// Map applies mapper to each element of coll, passing the element's index.
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}

// Find returns the first element of coll that satisfies criteria, or nil.
func Find[A any](coll []*A, criteria func(i *A) bool) *A {
	for _, item := range coll {
		if criteria(item) {
			return item
		}
	}
	return nil
}
