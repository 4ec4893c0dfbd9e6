package reverb

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-reverb/dsp/core"
)

// ConvolutionReverb applies a room impulse response to a mono signal as a
// wet/dry send effect:
//
//	out = dry*in + wet*(in * ir)
//
// The wet path runs on a single [Engine] chosen by the same options as the
// stereo convolvers. Width, cross-feed and mix options are ignored.
type ConvolutionReverb struct {
	engine Engine
	wet    float64
	dry    float64
	buf    []float64
}

// NewConvolutionReverb creates a convolution reverb from a mono IR. Wet and
// dry both start at unity.
func NewConvolutionReverb(kernel []float64, sampleRate float64, opts ...Option) (*ConvolutionReverb, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	engine, err := buildLeg(kernel, sampleRate, &cfg)
	if err != nil {
		return nil, err
	}

	return &ConvolutionReverb{
		engine: engine,
		wet:    1,
		dry:    1,
		buf:    make([]float64, cfg.maxBlock),
	}, nil
}

// SetWetDry sets the wet and dry levels, clamped to ±16. NaN is ignored.
func (r *ConvolutionReverb) SetWetDry(wet, dry float64) {
	r.wet = core.ClampOr(wet, -maxGain, maxGain, r.wet)
	r.dry = core.ClampOr(dry, -maxGain, maxGain, r.dry)
}

// maxGain bounds the send levels of [ConvolutionReverb].
const maxGain = 16.0

// ProcessInPlace applies the reverb to block. The block length may vary
// between calls.
func (r *ConvolutionReverb) ProcessInPlace(block []float64) {
	for off := 0; off < len(block); {
		m := min(len(r.buf), len(block)-off)
		in := block[off : off+m]
		wet := r.buf[:m]

		r.engine.ProcessTo(wet, in)
		vecmath.ScaleBlockInPlace(wet, r.wet)
		vecmath.ScaleBlockInPlace(in, r.dry)
		vecmath.AddBlockInPlace(in, wet)

		off += m
	}
}

// Reset clears the convolution state.
func (r *ConvolutionReverb) Reset() { r.engine.Reset() }

// Latency returns the reverb latency in samples.
func (r *ConvolutionReverb) Latency() int { return r.engine.Latency() }
