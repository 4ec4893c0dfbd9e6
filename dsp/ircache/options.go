package ircache

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the default number of spectra kept in memory.
const DefaultCapacity = 16

// ErrInvalidOption is returned for out-of-range configuration values.
var ErrInvalidOption = errors.New("ircache: invalid option")

// Option configures a [Cache].
type Option func(*config) error

type config struct {
	dir      string
	capacity int
	disk     bool
	log      logrus.FieldLogger
}

func defaultConfig() config {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	return config{
		capacity: DefaultCapacity,
		disk:     true,
		log:      silent,
	}
}

// WithCacheDir stores .irspec files in dir instead of next to the source IR.
// In-memory IRs (see [Cache.PutByHash]) are persisted only when a directory is
// configured.
func WithCacheDir(dir string) Option {
	return func(c *config) error {
		c.dir = dir
		return nil
	}
}

// WithCapacity bounds the in-memory tier to n entries.
func WithCapacity(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return fmt.Errorf("%w: capacity %d must be positive", ErrInvalidOption, n)
		}

		c.capacity = n

		return nil
	}
}

// WithDiskTier enables or disables reading and writing .irspec files.
func WithDiskTier(enabled bool) Option {
	return func(c *config) error {
		c.disk = enabled
		return nil
	}
}

// WithLogger sets the logger for cache events. Output is discarded by default.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) error {
		if log == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidOption)
		}

		c.log = log

		return nil
	}
}
