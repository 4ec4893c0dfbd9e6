package conv

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-reverb/dsp/core"
)

// UniformConvolver implements uniformly partitioned overlap-add convolution
// with a frequency-domain delay line.
//
// The impulse response is split into equal blocks of blockSize samples. Every
// completed input block is transformed once and stored in the FDL; the output
// block is the inverse transform of the sum of all FDL spectra multiplied with
// their matching IR block spectra.
//
// Latency equals blockSize. A UniformConvolver is not safe for concurrent use.
type UniformConvolver struct {
	blockSize int
	fftSize   int
	irLength  int

	plan     *algofft.Plan[complex128]
	segments [][]complex128

	fdl    [][]complex128
	fdlPos int

	input   []float64
	output  []float64
	overlap []float64
	pos     int

	accum []complex128
}

// NewUniformConvolver creates a uniform convolver for ir. blockSize must be a
// positive power of two.
func NewUniformConvolver(ir []float64, blockSize int) (*UniformConvolver, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	if !isPowerOf2(blockSize) {
		return nil, fmt.Errorf("%w: %d is not a positive power of two", ErrInvalidBlockSize, blockSize)
	}

	fftSize := 2 * blockSize

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: uniform FFT init (size=%d): %w", fftSize, err)
	}

	count := (len(ir) + blockSize - 1) / blockSize

	c := &UniformConvolver{
		blockSize: blockSize,
		fftSize:   fftSize,
		irLength:  len(ir),
		plan:      plan,
		segments:  make([][]complex128, count),
		fdl:       make([][]complex128, count),
		input:     make([]float64, blockSize),
		output:    make([]float64, blockSize),
		overlap:   make([]float64, blockSize),
		accum:     make([]complex128, fftSize),
	}

	for k := range count {
		c.segments[k] = make([]complex128, fftSize)
		c.fdl[k] = make([]complex128, fftSize)

		clear(c.accum)

		chunk := ir[k*blockSize : min((k+1)*blockSize, len(ir))]
		for i, v := range chunk {
			c.accum[i] = complex(v, 0)
		}

		err = plan.Forward(c.segments[k], c.accum)
		if err != nil {
			return nil, fmt.Errorf("conv: uniform IR transform (block=%d): %w", k, err)
		}
	}

	if err := warmPlan(plan, c.accum); err != nil {
		return nil, fmt.Errorf("conv: uniform FFT warm-up (size=%d): %w", fftSize, err)
	}

	return c, nil
}

// Latency returns the processing delay in samples.
func (c *UniformConvolver) Latency() int { return c.blockSize }

// BlockSize returns the partition size.
func (c *UniformConvolver) BlockSize() int { return c.blockSize }

// Segments returns the number of IR blocks.
func (c *UniformConvolver) Segments() int { return len(c.segments) }

// IRLength returns the impulse response length in samples.
func (c *UniformConvolver) IRLength() int { return c.irLength }

// ProcessSample feeds one input sample and returns one output sample.
func (c *UniformConvolver) ProcessSample(x float64) float64 {
	y := c.output[c.pos]
	c.input[c.pos] = core.Sanitize(x)

	c.pos++
	if c.pos == c.blockSize {
		c.processBlock()
		c.pos = 0
	}

	return y
}

func (c *UniformConvolver) processBlock() {
	slot := c.fdl[c.fdlPos]
	for i, v := range c.input {
		slot[i] = complex(v, 0)
	}

	clear(slot[c.blockSize:])

	_ = c.plan.Forward(slot, slot)

	clear(c.accum)

	n := len(c.fdl)
	for k, seg := range c.segments {
		past := c.fdl[(c.fdlPos-k+n)%n]
		for i, h := range seg {
			c.accum[i] += past[i] * h
		}
	}

	_ = c.plan.Inverse(c.accum, c.accum)

	for i := range c.blockSize {
		c.output[i] = real(c.accum[i]) + c.overlap[i]
		c.overlap[i] = core.FlushDenormals(real(c.accum[c.blockSize+i]))
	}

	c.fdlPos = (c.fdlPos + 1) % n
}

// ProcessTo convolves src into dst and returns the number of samples written.
func (c *UniformConvolver) ProcessTo(dst, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = c.ProcessSample(src[i])
	}

	return n
}

// Process convolves src and returns a newly allocated block of the same length.
func (c *UniformConvolver) Process(src []float64) []float64 {
	out := make([]float64, len(src))
	c.ProcessTo(out, src)

	return out
}

// Reset clears all streaming state.
func (c *UniformConvolver) Reset() {
	for _, slot := range c.fdl {
		clear(slot)
	}

	clear(c.input)
	clear(c.output)
	clear(c.overlap)
	clear(c.accum)

	c.fdlPos = 0
	c.pos = 0
}
