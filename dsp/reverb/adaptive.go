package reverb

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reverb/dsp/core"
	"github.com/cwbudde/algo-reverb/dsp/impulse"
	"github.com/cwbudde/algo-reverb/measure/ir"
)

// AdaptiveTrueStereoConvolver is a [TrueStereoConvolver] that analyzes its
// impulse response at construction and can derive the stereo width from the
// correlation of the LL and RR legs.
//
// With auto width enabled the width follows [ir.SuggestedWidth]; disabling it
// restores the last manually set width.
type AdaptiveTrueStereoConvolver struct {
	inner *TrueStereoConvolver
	chars ir.Characteristics

	manualWidth float64
	auto        bool
}

// NewAdaptiveTrueStereoConvolver builds the four legs like
// [NewTrueStereoConvolver] and characterizes the LL and RR legs.
// [WithAutoWidth] enables auto width from the start.
func NewAdaptiveTrueStereoConvolver(ts impulse.TrueStereo, opts ...Option) (*AdaptiveTrueStereoConvolver, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	chars, err := ir.NewAnalyzer(ts.SampleRate).Characterize(ts.LL, ts.RR)
	if err != nil {
		return nil, fmt.Errorf("reverb: analyzing impulse response: %w", err)
	}

	inner, err := newTrueStereo(ts, &cfg)
	if err != nil {
		return nil, err
	}

	a := &AdaptiveTrueStereoConvolver{
		inner:       inner,
		chars:       chars,
		manualWidth: inner.Width(),
	}

	a.SetAutoWidth(cfg.autoWidth)

	cfg.log.WithFields(logrus.Fields{
		"function":        "NewAdaptiveTrueStereoConvolver",
		"correlation":     chars.Correlation,
		"rt60":            chars.RT60,
		"t30":             chars.T30,
		"pre_delay":       chars.PreDelay,
		"early_density":   chars.EarlyReflectionDensity,
		"suggested_width": chars.SuggestedWidth,
		"auto_width":      cfg.autoWidth,
	}).Debug("Characterized impulse response")

	return a, nil
}

// Characteristics returns the analysis computed at construction.
func (a *AdaptiveTrueStereoConvolver) Characteristics() ir.Characteristics { return a.chars }

// SetAutoWidth enables or disables the analysis-derived width.
func (a *AdaptiveTrueStereoConvolver) SetAutoWidth(enabled bool) {
	a.auto = enabled
	if enabled {
		a.inner.SetWidth(a.chars.SuggestedWidth)
		return
	}

	a.inner.SetWidth(a.manualWidth)
}

// AutoWidth reports whether the analysis-derived width is active.
func (a *AdaptiveTrueStereoConvolver) AutoWidth() bool { return a.auto }

// SetWidth sets the manual width, clamped to [0, 2]. It takes effect
// immediately unless auto width is enabled. NaN is ignored.
func (a *AdaptiveTrueStereoConvolver) SetWidth(width float64) {
	a.manualWidth = core.ClampOr(width, MinWidth, MaxWidth, a.manualWidth)
	if !a.auto {
		a.inner.SetWidth(a.manualWidth)
	}
}

// Width returns the width currently applied.
func (a *AdaptiveTrueStereoConvolver) Width() float64 { return a.inner.Width() }

// SetCrossFeed sets the cross-feed amount, clamped to [0, 1].
func (a *AdaptiveTrueStereoConvolver) SetCrossFeed(amount float64) { a.inner.SetCrossFeed(amount) }

// SetMix sets the dry/wet mix, clamped to [0, 1].
func (a *AdaptiveTrueStereoConvolver) SetMix(mix float64) { a.inner.SetMix(mix) }

// Process convolves a stereo block. See [TrueStereoConvolver.Process].
func (a *AdaptiveTrueStereoConvolver) Process(inL, inR []float64) (outL, outR []float64) {
	return a.inner.Process(inL, inR)
}

// ProcessTo convolves a stereo block in place of outL and outR.
func (a *AdaptiveTrueStereoConvolver) ProcessTo(outL, outR, inL, inR []float64) int {
	return a.inner.ProcessTo(outL, outR, inL, inR)
}

// ProcessMS convolves a mid/side blended stereo block.
func (a *AdaptiveTrueStereoConvolver) ProcessMS(inL, inR []float64, amount float64) (outL, outR []float64) {
	return a.inner.ProcessMS(inL, inR, amount)
}

// ProcessMSTo is the allocation-free form of ProcessMS.
func (a *AdaptiveTrueStereoConvolver) ProcessMSTo(outL, outR, inL, inR []float64, amount float64) int {
	return a.inner.ProcessMSTo(outL, outR, inL, inR, amount)
}

// Latency returns the processing delay in samples.
func (a *AdaptiveTrueStereoConvolver) Latency() int { return a.inner.Latency() }

// Reset clears the streaming state.
func (a *AdaptiveTrueStereoConvolver) Reset() { a.inner.Reset() }
