package sweep

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-reverb/dsp/conv"
	"github.com/cwbudde/algo-reverb/dsp/impulse"
)

// Errors returned by sweep functions.
var (
	ErrInvalidFrequency  = errors.New("sweep: frequency must be positive")
	ErrInvalidDuration   = errors.New("sweep: duration must be positive")
	ErrInvalidSampleRate = errors.New("sweep: sample rate must be positive")
	ErrFrequencyOrder    = errors.New("sweep: start frequency must be less than end frequency")
	ErrEmptyResponse     = errors.New("sweep: response signal is empty")
	ErrTooLong           = errors.New("sweep: sweep exceeds the convolver capacity")
)

// LogSweep is an exponential sine sweep used to measure impulse responses.
//
// Each octave takes the same time, so the excitation carries equal energy per
// octave and harmonic distortion products end up before the linear response
// after deconvolution.
type LogSweep struct {
	StartFreq  float64 // start frequency in Hz
	EndFreq    float64 // end frequency in Hz
	Duration   float64 // sweep duration in seconds
	SampleRate float64 // sample rate in Hz
}

// Validate checks the sweep parameters.
func (s *LogSweep) Validate() error {
	if !(s.StartFreq > 0) || !(s.EndFreq > 0) {
		return ErrInvalidFrequency
	}

	if s.StartFreq >= s.EndFreq {
		return ErrFrequencyOrder
	}

	if !(s.Duration > 0) {
		return ErrInvalidDuration
	}

	if !(s.SampleRate > 0) {
		return ErrInvalidSampleRate
	}

	return nil
}

// Len returns the sweep length in samples.
func (s *LogSweep) Len() int {
	return int(math.Round(s.Duration * s.SampleRate))
}

// Generate returns the excitation signal
//
//	x(t) = sin(2π f1 T / ln(f2/f1) * (exp(t/T * ln(f2/f1)) - 1))
func (s *LogSweep) Generate() ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, s.Len())
	k := math.Log(s.EndFreq / s.StartFreq)
	scale := 2 * math.Pi * s.StartFreq * s.Duration / k

	for i := range out {
		t := float64(i) / s.SampleRate
		out[i] = math.Sin(scale * (math.Exp(t/s.Duration*k) - 1))
	}

	return out, nil
}

// InverseFilter returns the time-reversed sweep with a 6 dB/octave amplitude
// tilt, normalized so that sweep * inverse peaks at unity.
func (s *LogSweep) InverseFilter() ([]float64, error) {
	x, err := s.Generate()
	if err != nil {
		return nil, err
	}

	n := len(x)
	k := math.Log(s.EndFreq / s.StartFreq)
	norm := s.Duration * s.StartFreq / k * s.SampleRate

	inv := make([]float64, n)
	for i := range inv {
		j := n - 1 - i
		t := float64(j) / s.SampleRate

		// f1/f(t): the instantaneous frequency rises as exp(t/T * k).
		inv[i] = x[j] * math.Exp(-t/s.Duration*k) / norm
	}

	return inv, nil
}

// Deconvolve recovers the causal impulse response from a recording of the
// sweep played through a system. The result has the length of response and
// starts at the arrival of the linear response; harmonic distortion
// products, which precede it, are discarded.
//
// The recording is streamed through a [conv.NonUniformConvolver] holding the
// inverse filter.
func (s *LogSweep) Deconvolve(response []float64) ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if len(response) == 0 {
		return nil, ErrEmptyResponse
	}

	inv, err := s.InverseFilter()
	if err != nil {
		return nil, err
	}

	scheme := conv.Efficient(len(inv))
	if scheme.Length < len(inv) {
		return nil, fmt.Errorf("%w: %d samples, at most %d", ErrTooLong, len(inv), scheme.Length)
	}

	c, err := conv.NewNonUniformConvolver(inv, scheme)
	if err != nil {
		return nil, fmt.Errorf("sweep: inverse filter: %w", err)
	}

	// The linear response starts len(inv)-1 samples into the full
	// convolution, which the convolver delays by its latency.
	skip := len(inv) - 1 + c.Latency()

	in := make([]float64, skip+len(response))
	copy(in, response)
	c.ProcessTo(in, in)

	return in[skip:], nil
}

// Capture deconvolves one recording per channel and returns the measured
// response at the sweep's sample rate. length truncates the result; 0 keeps
// the recording length. Four recordings in the order LL, LR, RL, RR form a
// true-stereo response, see [impulse.NewTrueStereo].
func (s *LogSweep) Capture(recordings [][]float64, length int) (*impulse.Response, error) {
	if len(recordings) == 0 {
		return nil, ErrEmptyResponse
	}

	out := make([][]float64, len(recordings))

	var g errgroup.Group

	for i, rec := range recordings {
		g.Go(func() error {
			ir, err := s.Deconvolve(rec)
			if err != nil {
				return fmt.Errorf("sweep: channel %d: %w", i, err)
			}

			if length > 0 && length < len(ir) {
				ir = ir[:length]
			}

			out[i] = ir

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return impulse.New(out, s.SampleRate)
}
