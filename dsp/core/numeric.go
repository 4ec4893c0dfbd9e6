// Package core holds the numeric guards shared by the reverb processing path.
//
// Everything here is allocation free and safe to call from a real-time thread.
package core

import "math"

// Epsilon guards denominators in analysis code against division by zero.
const Epsilon = 1e-12

// denormalThreshold is the magnitude below which samples are flushed to zero.
const denormalThreshold = 1e-30

// Clamp limits value to the inclusive range [lo, hi].
// NaN maps to lo.
func Clamp(value, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}

	switch {
	case math.IsNaN(value), value < lo:
		return lo
	case value > hi:
		return hi
	default:
		return value
	}
}

// ClampOr clamps value to [lo, hi] but returns fallback when value is NaN.
// Setters use it so that a NaN parameter leaves the current setting untouched.
func ClampOr(value, lo, hi, fallback float64) float64 {
	if math.IsNaN(value) {
		return fallback
	}

	return Clamp(value, lo, hi)
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	if x > -denormalThreshold && x < denormalThreshold {
		return 0
	}

	return x
}

// Sanitize maps NaN and ±Inf to zero and flushes denormals.
// It keeps a single bad input sample from poisoning convolution state.
func Sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}

	return FlushDenormals(x)
}

// NearlyEqual reports whether a and b are equal within eps (absolute or relative).
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = Epsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))

	return diff/largest <= eps
}
