package reverb

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reverb/dsp/conv"
	"github.com/cwbudde/algo-reverb/dsp/ircache"
)

// Engine is a streaming mono convolver. Output is delayed by Latency samples.
// [conv.NonUniformConvolver] and [conv.UniformConvolver] implement it.
type Engine interface {
	// ProcessTo convolves src into dst and returns the number of samples
	// written, the shorter of both lengths.
	ProcessTo(dst, src []float64) int
	// Process returns the convolution of src in a new slice of equal length.
	Process(src []float64) []float64
	Latency() int
	Reset()
}

var (
	_ Engine = (*conv.NonUniformConvolver)(nil)
	_ Engine = (*conv.UniformConvolver)(nil)
)

// buildLeg creates the engine for one IR channel.
func buildLeg(ir []float64, sampleRate float64, cfg *config) (Engine, error) {
	var (
		e   Engine
		err error
	)

	switch {
	case cfg.uniformBlock > 0:
		e, err = conv.NewUniformConvolver(ir, cfg.uniformBlock)
	case cfg.cache != nil:
		e, err = BuildConvolver(cfg.cache, ir, sampleRate, cfg.strategy)
	default:
		e, err = conv.NewNonUniformConvolver(ir, conv.NewScheme(cfg.strategy, len(ir)))
	}

	if err != nil {
		return nil, err
	}

	warnTruncated(cfg.log, e)

	return e, nil
}

// warnTruncated logs a warning when e drops the tail of its impulse response
// because the partition scheme could not cover it.
func warnTruncated(log logrus.FieldLogger, e Engine) {
	c, ok := e.(*conv.NonUniformConvolver)
	if !ok || !c.Truncated() {
		return
	}

	scheme := c.Scheme()

	log.WithFields(logrus.Fields{
		"function":   "buildLeg",
		"ir_length":  c.IRLength(),
		"covered":    scheme.Length,
		"partitions": scheme.Len(),
	}).Warn("Impulse response longer than the partition scheme, tail dropped")
}

// BuildConvolver returns a non-uniform convolver for ir, taking its spectra
// from cache when present. A miss transforms the IR and stores the result;
// concurrent calls for the same IR share one transform. A cached entry
// partitioned with a different strategy is rebuilt and replaced.
func BuildConvolver(cache *ircache.Cache, ir []float64, sampleRate float64, strategy conv.Strategy) (*conv.NonUniformConvolver, error) {
	if len(ir) == 0 {
		return nil, conv.ErrEmptyImpulseResponse
	}

	scheme := conv.NewScheme(strategy, len(ir))
	hash := ircache.ComputeSamplesHash(ir, sampleRate, 1)

	var built *conv.NonUniformConvolver

	build := func() (*ircache.CachedSpectrum, error) {
		c, err := conv.NewNonUniformConvolver(ir, scheme)
		if err != nil {
			return nil, err
		}

		built = c

		return ircache.NewCachedSpectrum(c, sampleRate, 1, hash), nil
	}

	spec, err := cache.GetOrBuild(hash, build)
	if err != nil {
		return nil, err
	}

	if built != nil {
		return built, nil
	}

	if !slices.Equal(spec.Sizes(), scheme.Sizes) {
		spec, err = build()
		if err != nil {
			return nil, err
		}

		if err := cache.PutByHash(hash, spec); err != nil {
			return nil, fmt.Errorf("reverb: replacing cached spectrum: %w", err)
		}

		return built, nil
	}

	c, err := spec.Convolver()
	if err != nil {
		return nil, fmt.Errorf("reverb: cached spectrum %s: %w", hash.Prefix(), err)
	}

	return c, nil
}
