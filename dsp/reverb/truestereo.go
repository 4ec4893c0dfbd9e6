package reverb

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-reverb/dsp/core"
	"github.com/cwbudde/algo-reverb/dsp/impulse"
)

// ErrNilEngine is returned when a leg engine is missing.
var ErrNilEngine = errors.New("reverb: nil engine")

// TrueStereoConvolver convolves a stereo signal with the four legs of a
// true-stereo impulse response:
//
//	wetL = LL(inL) + crossFeed*width*RL(inR)
//	wetR = RR(inR) + crossFeed*width*LR(inL)
//	out  = dry*(1-mix) + wet*mix
//
// Construction does all allocation and FFT setup. The process methods are
// allocation-free (except [TrueStereoConvolver.Process] and
// [TrueStereoConvolver.ProcessMS], which return new slices) and never fail.
//
// A TrueStereoConvolver is not safe for concurrent use.
type TrueStereoConvolver struct {
	ll, lr, rl, rr Engine

	width     float64
	crossFeed float64
	mix       float64

	legs [4][]float64
	msL  []float64
	msR  []float64
	tmp  []float64
}

// NewTrueStereoConvolver builds the four legs of ts concurrently. Options
// select the engine type, partition strategy, cache and initial parameters.
func NewTrueStereoConvolver(ts impulse.TrueStereo, opts ...Option) (*TrueStereoConvolver, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	return newTrueStereo(ts, &cfg)
}

func newTrueStereo(ts impulse.TrueStereo, cfg *config) (*TrueStereoConvolver, error) {
	names := [4]string{"LL", "LR", "RL", "RR"}
	irs := ts.Legs()

	var engines [4]Engine

	var g errgroup.Group

	for i := range engines {
		g.Go(func() error {
			if len(irs[i]) == 0 {
				return fmt.Errorf("reverb: leg %s: %w", names[i], impulse.ErrEmpty)
			}

			e, err := buildLeg(irs[i], ts.SampleRate, cfg)
			if err != nil {
				return fmt.Errorf("reverb: leg %s: %w", names[i], err)
			}

			engines[i] = e

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := newFromEngines(engines, cfg)

	cfg.log.WithFields(logrus.Fields{
		"function":    "NewTrueStereoConvolver",
		"ir_length":   ts.Len(),
		"sample_rate": ts.SampleRate,
		"latency":     c.Latency(),
		"strategy":    cfg.strategy.String(),
		"uniform":     cfg.uniformBlock,
		"cached":      cfg.cache != nil,
	}).Info("Built true-stereo convolver")

	return c, nil
}

// NewTrueStereoFromEngines wraps four pre-built leg engines.
func NewTrueStereoFromEngines(ll, lr, rl, rr Engine, opts ...Option) (*TrueStereoConvolver, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	engines := [4]Engine{ll, lr, rl, rr}
	for i, e := range engines {
		if e == nil {
			return nil, fmt.Errorf("%w: leg %d", ErrNilEngine, i)
		}
	}

	return newFromEngines(engines, &cfg), nil
}

func newFromEngines(e [4]Engine, cfg *config) *TrueStereoConvolver {
	c := &TrueStereoConvolver{
		ll:        e[0],
		lr:        e[1],
		rl:        e[2],
		rr:        e[3],
		width:     cfg.width,
		crossFeed: cfg.crossFeed,
		mix:       cfg.mix,
		msL:       make([]float64, cfg.maxBlock),
		msR:       make([]float64, cfg.maxBlock),
		tmp:       make([]float64, cfg.maxBlock),
	}

	for i := range c.legs {
		c.legs[i] = make([]float64, cfg.maxBlock)
	}

	return c
}

// SetWidth sets the stereo width, clamped to [0, 2]. NaN is ignored.
func (c *TrueStereoConvolver) SetWidth(width float64) {
	c.width = core.ClampOr(width, MinWidth, MaxWidth, c.width)
}

// Width returns the stereo width.
func (c *TrueStereoConvolver) Width() float64 { return c.width }

// SetCrossFeed sets the cross-feed amount, clamped to [0, 1]. NaN is ignored.
func (c *TrueStereoConvolver) SetCrossFeed(amount float64) {
	c.crossFeed = core.ClampOr(amount, MinCrossFeed, MaxCrossFeed, c.crossFeed)
}

// CrossFeed returns the cross-feed amount.
func (c *TrueStereoConvolver) CrossFeed() float64 { return c.crossFeed }

// SetMix sets the dry/wet mix, clamped to [0, 1]. NaN is ignored.
func (c *TrueStereoConvolver) SetMix(mix float64) {
	c.mix = core.ClampOr(mix, MinMix, MaxMix, c.mix)
}

// Mix returns the dry/wet mix.
func (c *TrueStereoConvolver) Mix() float64 { return c.mix }

// Latency returns the latency of the LL leg in samples.
func (c *TrueStereoConvolver) Latency() int { return c.ll.Latency() }

// Reset clears the streaming state of all four legs.
func (c *TrueStereoConvolver) Reset() {
	c.ll.Reset()
	c.lr.Reset()
	c.rl.Reset()
	c.rr.Reset()
}

// Process convolves a stereo block and returns new output slices. The output
// length is the shorter of the two inputs.
func (c *TrueStereoConvolver) Process(inL, inR []float64) (outL, outR []float64) {
	n := min(len(inL), len(inR))
	outL = make([]float64, n)
	outR = make([]float64, n)

	c.ProcessTo(outL, outR, inL, inR)

	return outL, outR
}

// ProcessTo convolves a stereo block into outL and outR and returns the
// number of frames written, the minimum of all four lengths. Each output may
// alias the input of the same side.
func (c *TrueStereoConvolver) ProcessTo(outL, outR, inL, inR []float64) int {
	n := min(len(outL), len(outR), len(inL), len(inR))

	for off := 0; off < n; {
		m := min(len(c.tmp), n-off)
		c.processChunk(outL[off:off+m], outR[off:off+m], inL[off:off+m], inR[off:off+m])
		off += m
	}

	return n
}

// ProcessMS blends the inputs toward mid ((L+R)/2) on the left and side
// ((L-R)/2) on the right by amount in [0, 1] before convolving.
func (c *TrueStereoConvolver) ProcessMS(inL, inR []float64, amount float64) (outL, outR []float64) {
	n := min(len(inL), len(inR))
	outL = make([]float64, n)
	outR = make([]float64, n)

	c.ProcessMSTo(outL, outR, inL, inR, amount)

	return outL, outR
}

// ProcessMSTo is the allocation-free form of [TrueStereoConvolver.ProcessMS].
func (c *TrueStereoConvolver) ProcessMSTo(outL, outR, inL, inR []float64, amount float64) int {
	amount = core.ClampOr(amount, 0, 1, 0)
	n := min(len(outL), len(outR), len(inL), len(inR))

	for off := 0; off < n; {
		m := min(len(c.tmp), n-off)

		l, r := inL[off:off+m], inR[off:off+m]
		msL, msR, tmp := c.msL[:m], c.msR[:m], c.tmp[:m]

		// msL = (1-a)*L + a*(L+R)/2
		vecmath.AddMulBlock(tmp, l, r, 0.5*amount)
		vecmath.ScaleBlock(msL, l, 1-amount)
		vecmath.AddBlockInPlace(msL, tmp)

		// msR = (1-a)*R + a*(L-R)/2
		vecmath.ScaleBlock(tmp, r, -1)
		vecmath.AddMulBlock(tmp, l, tmp, 0.5*amount)
		vecmath.ScaleBlock(msR, r, 1-amount)
		vecmath.AddBlockInPlace(msR, tmp)

		c.processChunk(outL[off:off+m], outR[off:off+m], msL, msR)
		off += m
	}

	return n
}

// processChunk runs one chunk of at most len(c.tmp) frames.
func (c *TrueStereoConvolver) processChunk(outL, outR, inL, inR []float64) {
	m := len(inL)
	ll, lr, rl, rr := c.legs[0][:m], c.legs[1][:m], c.legs[2][:m], c.legs[3][:m]

	c.ll.ProcessTo(ll, inL)
	c.lr.ProcessTo(lr, inL)
	c.rl.ProcessTo(rl, inR)
	c.rr.ProcessTo(rr, inR)

	cross := c.crossFeed * c.width

	// ll and rr become the wet signals scaled by mix.
	vecmath.ScaleBlockInPlace(rl, cross)
	vecmath.AddBlockInPlace(ll, rl)
	vecmath.ScaleBlockInPlace(ll, c.mix)

	vecmath.ScaleBlockInPlace(lr, cross)
	vecmath.AddBlockInPlace(rr, lr)
	vecmath.ScaleBlockInPlace(rr, c.mix)

	dry := 1 - c.mix
	for i := range m {
		outL[i] = dry*core.Sanitize(inL[i]) + ll[i]
		outR[i] = dry*core.Sanitize(inR[i]) + rr[i]
	}
}
