package common

import "cmp"

// Coalesce returns the first non-zero value, or the zero value if all are zero. Used to fall back from
// configured settings to built-in defaults.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero value
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
