package reverb

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reverb/dsp/conv"
	"github.com/cwbudde/algo-reverb/dsp/ircache"
)

const (
	// DefaultWidth keeps the cross legs at unity before cross-feed.
	DefaultWidth = 1.0
	// DefaultCrossFeed routes the full cross legs into the output.
	DefaultCrossFeed = 1.0
	// DefaultMix outputs the wet signal only.
	DefaultMix = 1.0
	// DefaultMaxBlockSize is the chunk size the stereo convolvers process at
	// once; longer buffers are split.
	DefaultMaxBlockSize = 4096

	MinWidth     = 0.0
	MaxWidth     = 2.0
	MinCrossFeed = 0.0
	MaxCrossFeed = 1.0
	MinMix       = 0.0
	MaxMix       = 1.0
)

// ErrInvalidOption is returned for out-of-range construction parameters.
var ErrInvalidOption = errors.New("reverb: invalid option")

// Option configures the convolvers of this package.
type Option func(*config) error

type config struct {
	width     float64
	crossFeed float64
	mix       float64
	autoWidth bool

	strategy     conv.Strategy
	uniformBlock int
	maxBlock     int

	cache *ircache.Cache
	log   logrus.FieldLogger
}

func defaultConfig() config {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	return config{
		width:     DefaultWidth,
		crossFeed: DefaultCrossFeed,
		mix:       DefaultMix,
		strategy:  conv.StrategyOptimal,
		maxBlock:  DefaultMaxBlockSize,
		log:       silent,
	}
}

func applyOptions(opts []Option) (config, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}

	return cfg, nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s must be in [%g, %g]: %v", ErrInvalidOption, name, lo, hi, v)
	}

	return nil
}

// WithWidth sets the initial stereo width in [0, 2].
func WithWidth(width float64) Option {
	return func(cfg *config) error {
		if err := checkRange("width", width, MinWidth, MaxWidth); err != nil {
			return err
		}

		cfg.width = width

		return nil
	}
}

// WithCrossFeed sets the initial cross-feed amount in [0, 1].
func WithCrossFeed(amount float64) Option {
	return func(cfg *config) error {
		if err := checkRange("cross-feed", amount, MinCrossFeed, MaxCrossFeed); err != nil {
			return err
		}

		cfg.crossFeed = amount

		return nil
	}
}

// WithMix sets the initial dry/wet mix in [0, 1]; 0 is dry, 1 is wet.
func WithMix(mix float64) Option {
	return func(cfg *config) error {
		if err := checkRange("mix", mix, MinMix, MaxMix); err != nil {
			return err
		}

		cfg.mix = mix

		return nil
	}
}

// WithAutoWidth makes an [AdaptiveTrueStereoConvolver] start with the width
// suggested by its IR analysis. Other convolvers ignore it.
func WithAutoWidth(enabled bool) Option {
	return func(cfg *config) error {
		cfg.autoWidth = enabled
		return nil
	}
}

// WithStrategy selects the partition scheme of non-uniform legs.
func WithStrategy(s conv.Strategy) Option {
	return func(cfg *config) error {
		switch s {
		case conv.StrategyOptimal, conv.StrategyLowLatency, conv.StrategyEfficient:
			cfg.strategy = s
			return nil
		default:
			return fmt.Errorf("%w: unknown strategy %v", ErrInvalidOption, s)
		}
	}
}

// WithUniformBlockSize switches the legs to uniformly partitioned
// convolution with the given power-of-two block size. 0 restores
// non-uniform partitioning.
func WithUniformBlockSize(n int) Option {
	return func(cfg *config) error {
		if n < 0 || (n > 0 && n&(n-1) != 0) {
			return fmt.Errorf("%w: uniform block size %d is not a power of two", ErrInvalidOption, n)
		}

		cfg.uniformBlock = n

		return nil
	}
}

// WithMaxBlockSize sets the chunk size used by the stereo process methods.
func WithMaxBlockSize(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("%w: max block size %d must be positive", ErrInvalidOption, n)
		}

		cfg.maxBlock = n

		return nil
	}
}

// WithCache resolves non-uniform legs through c, reusing cached spectra.
func WithCache(c *ircache.Cache) Option {
	return func(cfg *config) error {
		cfg.cache = c
		return nil
	}
}

// WithLogger sets the logger for construction events. Output is discarded by
// default.
func WithLogger(log logrus.FieldLogger) Option {
	return func(cfg *config) error {
		if log == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidOption)
		}

		cfg.log = log

		return nil
	}
}
