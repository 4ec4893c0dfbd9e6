package ir

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-reverb/dsp/core"
)

// Errors returned by IR analysis functions.
var (
	ErrEmptyIR           = errors.New("ir: impulse response is empty")
	ErrInvalidSampleRate = errors.New("ir: sample rate must be positive")
	ErrNoDecay           = errors.New("ir: insufficient decay for RT calculation")
)

const (
	// DecayThreshold is the fraction of total energy (-60 dB) at which
	// [Analyzer.RT60] stops the backward integration.
	DecayThreshold = 1e-6

	// EarlyWindow is the span in seconds examined by
	// [Analyzer.EarlyReflectionDensity].
	EarlyWindow = 0.080

	// PeakThreshold is the fraction of the early window's peak amplitude a
	// local maximum must exceed to count as a reflection.
	PeakThreshold = 0.1
)

// Characteristics summarizes a true-stereo impulse response for automatic
// stereo width selection.
type Characteristics struct {
	Correlation            float64 // Pearson correlation of LL and RR
	RT60                   float64 // decay time of LL in seconds
	T30                    float64 // regression decay time of LL in seconds, 0 without 25 dB of decay
	PreDelay               float64 // seconds from the start of LL to its absolute peak
	EarlyReflectionDensity float64 // peaks per second in the first 80 ms of LL
	SuggestedWidth         float64 // 0.5 + |Correlation|*0.5
}

// Analyzer computes IR metrics from impulse response data.
type Analyzer struct {
	SampleRate float64
}

// NewAnalyzer creates an IR analyzer with the given sample rate.
func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{SampleRate: sampleRate}
}

func (a *Analyzer) check(ir []float64) error {
	if len(ir) == 0 {
		return ErrEmptyIR
	}

	if !(a.SampleRate > 0) {
		return ErrInvalidSampleRate
	}

	return nil
}

// Characterize analyzes the direct legs of a true-stereo response.
// The cross legs do not take part.
func (a *Analyzer) Characterize(ll, rr []float64) (Characteristics, error) {
	if err := a.check(ll); err != nil {
		return Characteristics{}, err
	}

	if len(rr) == 0 {
		return Characteristics{}, ErrEmptyIR
	}

	corr := Correlation(ll, rr)

	energy := schroederEnergy(ll)
	rt60 := a.rt60(energy)

	// A response without 25 dB of decay has no T30.
	t30, _ := a.t30(decayCurve(energy))

	return Characteristics{
		Correlation:            corr,
		RT60:                   rt60,
		T30:                    t30,
		PreDelay:               float64(peakIndex(ll)) / a.SampleRate,
		EarlyReflectionDensity: a.earlyReflectionDensity(ll),
		SuggestedWidth:         SuggestedWidth(corr),
	}, nil
}

// SuggestedWidth maps a channel correlation to a stereo width in [0.5, 1]:
// correlated, near-mono responses take more synthetic width without
// phase-cancellation artifacts.
func SuggestedWidth(correlation float64) float64 {
	return 0.5 + math.Abs(core.ClampOr(correlation, -1, 1, 0))*0.5
}

// Correlation returns the Pearson correlation coefficient of a and b over
// their common length. The denominator is offset by [core.Epsilon], so silent
// or constant input yields 0 instead of NaN.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}

	da := centered(a[:n])
	db := centered(b[:n])

	cov := vecmath.DotProduct(da, db)
	den := math.Sqrt(vecmath.DotProduct(da, da)*vecmath.DotProduct(db, db)) + core.Epsilon

	return core.Clamp(cov/den, -1, 1)
}

func centered(x []float64) []float64 {
	mean := vecmath.Sum(x) / float64(len(x))

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - mean
	}

	return out
}

// DecayCurve returns the energy decay curve of ir in dB: the Schroeder
// backward integral of the squared response relative to its total energy.
// Samples after the last non-zero one sit at -200 dB; a silent response
// yields all zeros.
func (a *Analyzer) DecayCurve(ir []float64) ([]float64, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyIR
	}

	return decayCurve(schroederEnergy(ir)), nil
}

// schroederEnergy returns the backward cumulative sum of squared samples.
func schroederEnergy(ir []float64) []float64 {
	out := make([]float64, len(ir))

	var sum float64
	for i := len(ir) - 1; i >= 0; i-- {
		sum += ir[i] * ir[i]
		out[i] = sum
	}

	return out
}

// decayCurve converts backward energy to dB relative to energy[0], in place.
func decayCurve(energy []float64) []float64 {
	total := energy[0]
	if total <= 0 {
		clear(energy)
		return energy
	}

	for i, e := range energy {
		if e <= 0 {
			energy[i] = -200
		} else {
			energy[i] = 10 * math.Log10(e/total)
		}
	}

	return energy
}

// RT60 returns the time in seconds at which the remaining (backward
// integrated) energy first falls below [DecayThreshold] of the total. A
// silent response has an RT60 of 0; a response that never decays that far
// reports its full duration.
func (a *Analyzer) RT60(ir []float64) (float64, error) {
	if err := a.check(ir); err != nil {
		return 0, err
	}

	return a.rt60(schroederEnergy(ir)), nil
}

func (a *Analyzer) rt60(energy []float64) float64 {
	total := energy[0]
	if total <= 0 {
		return 0
	}

	limit := total * DecayThreshold
	if i := slices.IndexFunc(energy, func(e float64) bool { return e < limit }); i >= 0 {
		return float64(i) / a.SampleRate
	}

	return float64(len(energy)) / a.SampleRate
}

// T30 fits a line to the decay curve between -5 and -35 dB and extrapolates
// it to -60 dB. When the response does not decay by 35 dB the -5 to -25 dB
// range (T20) is used instead; with less decay than that T30 returns
// [ErrNoDecay].
func (a *Analyzer) T30(ir []float64) (float64, error) {
	if err := a.check(ir); err != nil {
		return 0, err
	}

	return a.t30(decayCurve(schroederEnergy(ir)))
}

func (a *Analyzer) t30(curve []float64) (float64, error) {
	for _, lo := range []float64{-35, -25} {
		if slope := decaySlope(curve, -5, lo); slope < 0 {
			return -60 / (slope * a.SampleRate), nil
		}
	}

	return 0, ErrNoDecay
}

// decaySlope returns the least-squares slope in dB per sample of curve over
// the span from its first value at or below hi to its first value at or
// below lo, or 0 when the curve does not cover that span.
func decaySlope(curve []float64, hi, lo float64) float64 {
	start := slices.IndexFunc(curve, func(v float64) bool { return v <= hi })
	if start < 0 {
		return 0
	}

	span := slices.IndexFunc(curve[start:], func(v float64) bool { return v <= lo })
	if span <= 0 {
		return 0
	}

	seg := curve[start : start+span+1]
	n := float64(len(seg))

	// x runs 0..n-1, so its sums have closed forms.
	sumX := n * (n - 1) / 2
	sumXX := (n - 1) * n * (2*n - 1) / 6
	sumY := vecmath.Sum(seg)

	var sumXY float64
	for i, y := range seg {
		sumXY += float64(i) * y
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}

// EarlyReflectionDensity counts local amplitude maxima in the first
// [EarlyWindow] seconds that exceed [PeakThreshold] of the window's peak, and
// returns the count per second.
func (a *Analyzer) EarlyReflectionDensity(ir []float64) (float64, error) {
	if err := a.check(ir); err != nil {
		return 0, err
	}

	return a.earlyReflectionDensity(ir), nil
}

func (a *Analyzer) earlyReflectionDensity(ir []float64) float64 {
	n := min(len(ir), int(math.Round(EarlyWindow*a.SampleRate)))
	if n < 3 {
		return 0
	}

	window := ir[:n]

	peak := vecmath.MaxAbs(window)
	if peak <= 0 {
		return 0
	}

	threshold := peak * PeakThreshold
	count := 0

	for i := 1; i < n-1; i++ {
		v := math.Abs(window[i])
		if v > threshold && v > math.Abs(window[i-1]) && v >= math.Abs(window[i+1]) {
			count++
		}
	}

	return float64(count) * a.SampleRate / float64(n)
}

// PreDelay returns the time in seconds from the start of ir to its absolute
// peak, the arrival of the direct sound. A silent response has no pre-delay.
func (a *Analyzer) PreDelay(ir []float64) (float64, error) {
	if err := a.check(ir); err != nil {
		return 0, err
	}

	return float64(peakIndex(ir)) / a.SampleRate, nil
}

// peakIndex returns the first index holding the largest magnitude, 0 for a
// silent response.
func peakIndex(ir []float64) int {
	peak := vecmath.MaxAbs(ir)
	if peak <= 0 {
		return 0
	}

	return max(0, slices.IndexFunc(ir, func(v float64) bool { return math.Abs(v) == peak }))
}
