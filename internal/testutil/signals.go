// Package testutil provides deterministic test signals and tolerance
// assertions shared by the convolution and reverb tests.
package testutil

import (
	"math"
	"math/rand/v2"
)

// Noise returns uniform white noise in [-amplitude, amplitude) from a PCG
// generator seeded with seed.
func Noise(seed uint64, amplitude float64, length int) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0))

	out := make([]float64, length)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Sine returns a sine wave starting at phase 0.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// Impulse returns a unit impulse at pos. Out-of-range positions give silence.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// Ones returns length samples of 1.
func Ones(length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = 1
	}

	return out
}

// DecayingNoise returns a synthetic reverb tail: seeded noise shaped by an
// exponential envelope that falls by 60 dB over rt60 seconds.
func DecayingNoise(seed uint64, length int, sampleRate, rt60 float64) []float64 {
	out := Noise(seed, 1, length)
	k := math.Log(1000) / (rt60 * sampleRate)

	for i := range out {
		out[i] *= math.Exp(-k * float64(i))
	}

	return out
}

// Delay returns x shifted right by n samples, keeping the length.
func Delay(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	if n < len(x) {
		copy(out[n:], x)
	}

	return out
}
