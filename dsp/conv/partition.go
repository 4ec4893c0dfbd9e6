package conv

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-reverb/dsp/core"
)

// MaxFDLSegments caps the depth of a partition's frequency-domain delay line.
// Delay beyond the FDL's reach is applied on the convolver's output timeline.
const MaxFDLSegments = 4

// PartitionSpectrum is the transformed IR segment of one partition.
// Coeffs has the partition's FFT size.
type PartitionSpectrum struct {
	Size   int
	Coeffs []complex128
}

// Clone returns a deep copy of s.
func (s PartitionSpectrum) Clone() PartitionSpectrum {
	return PartitionSpectrum{
		Size:   s.Size,
		Coeffs: append([]complex128(nil), s.Coeffs...),
	}
}

// FFTSize returns the transform size used for a partition of size samples:
// twice the size, rounded up to a power of two. The zero padding keeps the
// circular convolution from wrapping around.
func FFTSize(size int) int {
	return nextPowerOf2(2 * size)
}

// Partition is one fixed-size block convolution unit of a
// [NonUniformConvolver].
//
// It owns an FFT plan, the immutable spectrum of its IR segment, a
// frequency-domain delay line (FDL) of past input spectra and the overlap-add
// tail. The FDL reaches back over the whole blocks that separate the
// partition's IR offset from the start of the response; what is left over is
// reported by [Partition.Delay] and applied by the owning convolver.
//
// A Partition is not safe for concurrent use.
type Partition struct {
	size    int
	fftSize int
	offset  int
	delay   int

	plan       *algofft.Plan[complex128]
	irSpectrum []complex128

	fdl    [][]complex128
	fdlPos int

	input    []float64
	inputPos int
	overlap  []float64
	output   []float64
	work     []complex128
}

// NewPartition creates a partition for the IR segment starting at offset
// within the full response. latency is the owning convolver's latency (its
// first partition size). The segment length is the partition size.
func NewPartition(segment []float64, offset, latency int) (*Partition, error) {
	size := len(segment)
	if size == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	p, err := newPartition(size, offset, latency)
	if err != nil {
		return nil, err
	}

	for i, v := range segment {
		p.work[i] = complex(v, 0)
	}

	err = p.plan.Forward(p.irSpectrum, p.work)
	if err != nil {
		return nil, fmt.Errorf("conv: partition IR transform (size=%d): %w", size, err)
	}

	clear(p.work)

	return p, nil
}

// NewPartitionFromSpectrum rebuilds a partition from a previously exported
// spectrum without transforming the IR again.
func NewPartitionFromSpectrum(spec PartitionSpectrum, offset, latency int) (*Partition, error) {
	if spec.Size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrSpectrumMismatch, spec.Size)
	}

	if want := FFTSize(spec.Size); len(spec.Coeffs) != want {
		return nil, fmt.Errorf("%w: size %d needs %d coefficients, got %d",
			ErrSpectrumMismatch, spec.Size, want, len(spec.Coeffs))
	}

	p, err := newPartition(spec.Size, offset, latency)
	if err != nil {
		return nil, err
	}

	copy(p.irSpectrum, spec.Coeffs)

	return p, nil
}

func newPartition(size, offset, latency int) (*Partition, error) {
	if latency <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: offset %d, latency %d", ErrInvalidScheme, offset, latency)
	}

	slack := offset + latency - size
	if slack < 0 {
		return nil, fmt.Errorf("%w: size %d at offset %d with latency %d",
			ErrNonCausalScheme, size, offset, latency)
	}

	fftSize := FFTSize(size)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: partition FFT init (size=%d): %w", fftSize, err)
	}

	segments := min(MaxFDLSegments, slack/size+1)

	fdl := make([][]complex128, segments)
	for i := range fdl {
		fdl[i] = make([]complex128, fftSize)
	}

	p := &Partition{
		size:       size,
		fftSize:    fftSize,
		offset:     offset,
		delay:      slack - (segments-1)*size,
		plan:       plan,
		irSpectrum: make([]complex128, fftSize),
		fdl:        fdl,
		input:      make([]float64, size),
		overlap:    make([]float64, size),
		output:     make([]float64, size),
		work:       make([]complex128, fftSize),
	}

	if err := warmPlan(plan, p.work); err != nil {
		return nil, fmt.Errorf("conv: partition FFT warm-up (size=%d): %w", fftSize, err)
	}

	return p, nil
}

// warmPlan runs one in-place forward and inverse transform over the zeroed
// scratch so the plan's lazily built tables exist before the first block is
// processed. scratch is left zeroed.
func warmPlan(plan *algofft.Plan[complex128], scratch []complex128) error {
	if err := plan.Forward(scratch, scratch); err != nil {
		return err
	}

	if err := plan.Inverse(scratch, scratch); err != nil {
		return err
	}

	clear(scratch)

	return nil
}

// Size returns the block length in samples.
func (p *Partition) Size() int { return p.size }

// FFTSize returns the transform length.
func (p *Partition) FFTSize() int { return p.fftSize }

// Offset returns the partition's start sample within the impulse response.
func (p *Partition) Offset() int { return p.offset }

// FDLSegments returns the number of input spectra kept in the delay line.
func (p *Partition) FDLSegments() int { return len(p.fdl) }

// Delay returns the number of samples, beyond the next one, by which a
// finished block must be shifted on the output timeline.
func (p *Partition) Delay() int { return p.delay }

// Output returns the most recent block output. The slice is owned by the
// partition and overwritten by the next completed block.
func (p *Partition) Output() []float64 { return p.output }

// Spectrum returns a copy of the partition's IR spectrum.
func (p *Partition) Spectrum() PartitionSpectrum {
	return PartitionSpectrum{
		Size:   p.size,
		Coeffs: append([]complex128(nil), p.irSpectrum...),
	}
}

// ProcessSample appends x to the input block. When the block is full it is
// convolved and ProcessSample reports true; the result is then available
// from [Partition.Output].
func (p *Partition) ProcessSample(x float64) bool {
	p.input[p.inputPos] = x
	p.inputPos++

	if p.inputPos < p.size {
		return false
	}

	p.processBlock()
	p.inputPos = 0

	return true
}

// processBlock transforms the current input block into the FDL, multiplies the
// spectrum whose age matches the partition offset with the IR spectrum and
// overlap-adds the result.
func (p *Partition) processBlock() {
	slot := p.fdl[p.fdlPos]
	for i, v := range p.input {
		slot[i] = complex(v, 0)
	}

	clear(slot[p.size:])

	// Plan lengths are fixed at construction, the transforms cannot fail here.
	_ = p.plan.Forward(slot, slot)

	oldest := p.fdl[(p.fdlPos+1)%len(p.fdl)]
	for i, h := range p.irSpectrum {
		p.work[i] = oldest[i] * h
	}

	// Inverse is normalized by 1/fftSize.
	_ = p.plan.Inverse(p.work, p.work)

	for i := range p.size {
		p.output[i] = real(p.work[i]) + p.overlap[i]
		p.overlap[i] = core.FlushDenormals(real(p.work[p.size+i]))
	}

	p.fdlPos = (p.fdlPos + 1) % len(p.fdl)
}

// Reset clears the input block, the delay line and the overlap tail.
// The IR spectrum is kept.
func (p *Partition) Reset() {
	clear(p.input)
	clear(p.overlap)
	clear(p.output)
	clear(p.work)

	for _, slot := range p.fdl {
		clear(slot)
	}

	p.inputPos = 0
	p.fdlPos = 0
}
