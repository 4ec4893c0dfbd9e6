package conv

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-reverb/dsp/core"
)

// NonUniformConvolver convolves a sample stream with a long impulse response
// split into partitions of growing size.
//
// Every partition runs its own block FFT convolution and adds finished blocks
// into one shared output timeline at the position its IR offset dictates. The
// output is the full convolution delayed by [NonUniformConvolver.Latency]
// samples, the size of the first partition.
//
// A NonUniformConvolver is not safe for concurrent use.
type NonUniformConvolver struct {
	scheme     PartitionScheme
	irLength   int
	partitions []*Partition

	ring    []float64
	ringPos int
}

// NewNonUniformConvolver partitions ir according to scheme and transforms
// every segment. The scheme may cover fewer samples than ir, in which case the
// tail beyond scheme.Length is dropped.
func NewNonUniformConvolver(ir []float64, scheme PartitionScheme) (*NonUniformConvolver, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	if err := scheme.Validate(); err != nil {
		return nil, err
	}

	if scheme.Length > len(ir) {
		return nil, fmt.Errorf("%w: scheme covers %d samples, IR has %d",
			ErrInvalidScheme, scheme.Length, len(ir))
	}

	partitions := make([]*Partition, len(scheme.Sizes))
	offset := 0

	for i, size := range scheme.Sizes {
		p, err := NewPartition(ir[offset:offset+size], offset, scheme.MinLatency)
		if err != nil {
			return nil, fmt.Errorf("conv: partition %d: %w", i, err)
		}

		partitions[i] = p
		offset += size
	}

	return newNonUniform(scheme, len(ir), partitions), nil
}

// NewNonUniformFromSpectra rebuilds a convolver from exported partition
// spectra, skipping the forward transforms of the IR. irLength is the length
// of the source response and must cover the partitions.
func NewNonUniformFromSpectra(spectra []PartitionSpectrum, irLength int) (*NonUniformConvolver, error) {
	sizes := make([]int, len(spectra))
	for i, spec := range spectra {
		sizes[i] = spec.Size
	}

	scheme, err := NewPartitionScheme(sizes)
	if err != nil {
		return nil, err
	}

	if irLength < scheme.Length {
		return nil, fmt.Errorf("%w: spectra cover %d samples, IR length is %d",
			ErrSpectrumMismatch, scheme.Length, irLength)
	}

	partitions := make([]*Partition, len(spectra))
	offset := 0

	for i, spec := range spectra {
		p, err := NewPartitionFromSpectrum(spec, offset, scheme.MinLatency)
		if err != nil {
			return nil, fmt.Errorf("conv: partition %d: %w", i, err)
		}

		partitions[i] = p
		offset += spec.Size
	}

	return newNonUniform(scheme, irLength, partitions), nil
}

func newNonUniform(scheme PartitionScheme, irLength int, partitions []*Partition) *NonUniformConvolver {
	reach := 0
	for _, p := range partitions {
		reach = max(reach, p.Delay()+p.Size())
	}

	return &NonUniformConvolver{
		scheme:     scheme,
		irLength:   irLength,
		partitions: partitions,
		ring:       make([]float64, reach+1),
	}
}

// Scheme returns the partition scheme in use.
func (c *NonUniformConvolver) Scheme() PartitionScheme {
	return PartitionScheme{
		Sizes:      append([]int(nil), c.scheme.Sizes...),
		Length:     c.scheme.Length,
		MinLatency: c.scheme.MinLatency,
	}
}

// IRLength returns the length of the impulse response the convolver was
// built from.
func (c *NonUniformConvolver) IRLength() int { return c.irLength }

// Latency returns the processing delay in samples.
func (c *NonUniformConvolver) Latency() int { return c.scheme.MinLatency }

// Truncated reports whether the scheme covers fewer samples than the impulse
// response, which happens when the response needs more than [MaxPartitions]
// partitions. The samples beyond [PartitionScheme.Length] are not convolved.
func (c *NonUniformConvolver) Truncated() bool { return c.scheme.Length < c.irLength }

// Partitions returns the number of partitions.
func (c *NonUniformConvolver) Partitions() int { return len(c.partitions) }

// Spectra returns copies of all partition spectra in scheme order.
func (c *NonUniformConvolver) Spectra() []PartitionSpectrum {
	out := make([]PartitionSpectrum, len(c.partitions))
	for i, p := range c.partitions {
		out[i] = p.Spectrum()
	}

	return out
}

// ProcessSample feeds one input sample and returns one output sample.
// Non-finite input is treated as silence.
func (c *NonUniformConvolver) ProcessSample(x float64) float64 {
	x = core.Sanitize(x)

	for _, p := range c.partitions {
		if p.ProcessSample(x) {
			c.accumulate(p.Output(), c.ringPos+1+p.Delay())
		}
	}

	y := c.ring[c.ringPos]
	c.ring[c.ringPos] = 0

	c.ringPos++
	if c.ringPos == len(c.ring) {
		c.ringPos = 0
	}

	return y
}

// accumulate adds block into the output timeline starting at ring index start
// (taken modulo the ring length).
func (c *NonUniformConvolver) accumulate(block []float64, start int) {
	n := len(c.ring)
	start %= n

	first := min(len(block), n-start)
	vecmath.AddBlockInPlace(c.ring[start:start+first], block[:first])

	if first < len(block) {
		rest := block[first:]
		vecmath.AddBlockInPlace(c.ring[:len(rest)], rest)
	}
}

// ProcessTo convolves src into dst and returns the number of samples written,
// the shorter of the two lengths. dst and src may alias.
func (c *NonUniformConvolver) ProcessTo(dst, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = c.ProcessSample(src[i])
	}

	return n
}

// Process convolves src and returns a newly allocated output block of the same
// length.
func (c *NonUniformConvolver) Process(src []float64) []float64 {
	out := make([]float64, len(src))
	c.ProcessTo(out, src)

	return out
}

// Reset clears all streaming state. Spectra and scheme are kept.
func (c *NonUniformConvolver) Reset() {
	for _, p := range c.partitions {
		p.Reset()
	}

	clear(c.ring)
	c.ringPos = 0
}
