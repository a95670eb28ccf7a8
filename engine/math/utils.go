package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// FitWithin scales (width, height) down so that neither side exceeds limit,
// keeping the aspect ratio. Sizes already within the limit are returned as is.
// Neither returned side is ever smaller than 1.
func FitWithin[T constraints.Integer](width, height, limit T) (T, T) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		h := T(float64(height) * float64(limit) / float64(width))
		return limit, Clamp(h, 1, limit)
	}
	w := T(float64(width) * float64(limit) / float64(height))
	return Clamp(w, 1, limit), limit
}
