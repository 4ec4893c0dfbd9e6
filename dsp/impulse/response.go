package impulse

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// Errors returned by impulse response constructors and loaders.
var (
	ErrEmpty          = errors.New("impulse: empty impulse response")
	ErrInvalidRate    = errors.New("impulse: invalid sample rate")
	ErrChannelLayout  = errors.New("impulse: unsupported channel layout")
	ErrLengthMismatch = errors.New("impulse: channel length mismatch")
	ErrInvalidFile    = errors.New("impulse: invalid audio file")
)

// Response is a multi-channel impulse response. It is immutable after
// construction; accessors return the underlying slices, which callers must not
// modify.
type Response struct {
	// Samples[ch] holds channel ch. All channels have the same length.
	Samples    [][]float64
	SampleRate float64
}

// New validates and wraps channel data. The slices are used as is.
func New(samples [][]float64, sampleRate float64) (*Response, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}

	if len(samples) == 0 || len(samples[0]) == 0 {
		return nil, ErrEmpty
	}

	for ch, s := range samples {
		if len(s) != len(samples[0]) {
			return nil, fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d",
				ErrLengthMismatch, ch, len(s), len(samples[0]))
		}
	}

	return &Response{Samples: samples, SampleRate: sampleRate}, nil
}

// NewMono wraps a single channel.
func NewMono(samples []float64, sampleRate float64) (*Response, error) {
	return New([][]float64{samples}, sampleRate)
}

// Channels returns the channel count.
func (r *Response) Channels() int { return len(r.Samples) }

// Len returns the length of each channel in samples.
func (r *Response) Len() int {
	if len(r.Samples) == 0 {
		return 0
	}

	return len(r.Samples[0])
}

// Channel returns channel ch, or nil when out of range.
func (r *Response) Channel(ch int) []float64 {
	if ch < 0 || ch >= len(r.Samples) {
		return nil
	}

	return r.Samples[ch]
}

// Duration returns the length in seconds.
func (r *Response) Duration() float64 {
	return float64(r.Len()) / r.SampleRate
}

// Interleaved returns the channels interleaved frame by frame.
func (r *Response) Interleaved() []float64 {
	ch := r.Channels()
	out := make([]float64, r.Len()*ch)

	for c, s := range r.Samples {
		for i, v := range s {
			out[i*ch+c] = v
		}
	}

	return out
}

// Resample converts the response to rate using a polyphase FIR resampler.
// The receiver is returned unchanged when the rates already match.
func (r *Response) Resample(rate float64) (*Response, error) {
	if !(rate > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	if rate == r.SampleRate {
		return r, nil
	}

	out := make([][]float64, len(r.Samples))

	for ch, s := range r.Samples {
		rs, err := resample.NewForRates(r.SampleRate, rate, resample.WithQuality(resample.QualityBest))
		if err != nil {
			return nil, fmt.Errorf("impulse: resampling %v Hz to %v Hz: %w", r.SampleRate, rate, err)
		}

		out[ch] = rs.Process(s)
	}

	return New(out, rate)
}
