package conv

import (
	"errors"

	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by convolution constructors.
var (
	ErrEmptyInput           = errors.New("conv: empty input")
	ErrEmptyImpulseResponse = errors.New("conv: empty impulse response")
	ErrLengthMismatch       = errors.New("conv: buffer length mismatch")
	ErrInvalidBlockSize     = errors.New("conv: invalid block size")
	ErrInvalidScheme        = errors.New("conv: invalid partition scheme")
	ErrNonCausalScheme      = errors.New("conv: partition scheme is not causal")
	ErrSpectrumMismatch     = errors.New("conv: spectrum does not match partition size")
)

// Direct performs direct time-domain linear convolution of a and b.
// Returns a new slice of length len(a) + len(b) - 1.
//
// This is an O(N*M) algorithm. The streaming convolvers use it as their
// reference in tests; it is not meant for long impulse responses.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	result := make([]float64, len(a)+len(b)-1)
	DirectTo(result, a, b)

	return result, nil
}

// DirectTo performs direct convolution, writing to a pre-allocated destination.
// dst must have length len(a) + len(b) - 1.
func DirectTo(dst, a, b []float64) {
	clear(dst)

	m := len(b)
	if m == 0 {
		return
	}

	temp := make([]float64, m)
	for i, x := range a {
		if x == 0 {
			continue
		}

		vecmath.ScaleBlock(temp, b, x)
		vecmath.AddBlockInPlace(dst[i:i+m], temp)
	}
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// prevPowerOf2 returns the largest power of 2 <= n (1 for n < 2).
func prevPowerOf2(n int) int {
	p := 1
	for p<<1 <= n {
		p <<= 1
	}

	return p
}

// isPowerOf2 returns true if n is a power of 2.
func isPowerOf2(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
