package impulse

import "fmt"

// TrueStereo holds the four legs of a true-stereo impulse response: LL routes
// the left input to the left output, LR the left input to the right output,
// RL the right input to the left output and RR the right input to the right
// output. All legs have the same length.
type TrueStereo struct {
	LL, LR, RL, RR []float64
	SampleRate     float64
}

// NewTrueStereo maps a response onto the four legs:
//
//   - 1 channel: the same response on LL and RR, silent cross legs.
//   - 2 channels: dual mono, see [FromStereo].
//   - 4 channels: LL, LR, RL, RR in file order, see [FromQuad].
func NewTrueStereo(r *Response) (TrueStereo, error) {
	switch r.Channels() {
	case 1:
		return FromStereo(r.Samples[0], r.Samples[0], r.SampleRate)
	case 2:
		return FromStereo(r.Samples[0], r.Samples[1], r.SampleRate)
	case 4:
		return FromQuad(r.Samples[0], r.Samples[1], r.Samples[2], r.Samples[3], r.SampleRate)
	default:
		return TrueStereo{}, fmt.Errorf("%w: %d channels", ErrChannelLayout, r.Channels())
	}
}

// FromStereo builds a dual-mono true-stereo response: left feeds LL, right
// feeds RR and the cross legs LR and RL are all zero.
func FromStereo(left, right []float64, sampleRate float64) (TrueStereo, error) {
	if err := checkLegs(sampleRate, left, right); err != nil {
		return TrueStereo{}, err
	}

	return TrueStereo{
		LL:         left,
		LR:         make([]float64, len(left)),
		RL:         make([]float64, len(left)),
		RR:         right,
		SampleRate: sampleRate,
	}, nil
}

// FromQuad builds a true-stereo response from four measured legs.
func FromQuad(ll, lr, rl, rr []float64, sampleRate float64) (TrueStereo, error) {
	if err := checkLegs(sampleRate, ll, lr, rl, rr); err != nil {
		return TrueStereo{}, err
	}

	return TrueStereo{LL: ll, LR: lr, RL: rl, RR: rr, SampleRate: sampleRate}, nil
}

// Len returns the leg length in samples.
func (ts TrueStereo) Len() int { return len(ts.LL) }

// Legs returns the legs in LL, LR, RL, RR order.
func (ts TrueStereo) Legs() [4][]float64 {
	return [4][]float64{ts.LL, ts.LR, ts.RL, ts.RR}
}

// Resample converts all legs to rate.
func (ts TrueStereo) Resample(rate float64) (TrueStereo, error) {
	r, err := New([][]float64{ts.LL, ts.LR, ts.RL, ts.RR}, ts.SampleRate)
	if err != nil {
		return TrueStereo{}, err
	}

	r, err = r.Resample(rate)
	if err != nil {
		return TrueStereo{}, err
	}

	return FromQuad(r.Samples[0], r.Samples[1], r.Samples[2], r.Samples[3], r.SampleRate)
}

func checkLegs(sampleRate float64, legs ...[]float64) error {
	if !(sampleRate > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}

	if len(legs[0]) == 0 {
		return ErrEmpty
	}

	for i, leg := range legs {
		if len(leg) != len(legs[0]) {
			return fmt.Errorf("%w: leg %d has %d samples, leg 0 has %d",
				ErrLengthMismatch, i, len(leg), len(legs[0]))
		}
	}

	return nil
}
