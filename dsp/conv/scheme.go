package conv

import (
	"fmt"
	"strings"
)

const (
	// MaxPartitions caps the number of partitions of one convolver.
	// Schemes that would need more cover only the first MaxPartitions blocks.
	MaxPartitions = 256

	optimalStartSize  = 64
	optimalMaxSize    = 4096
	optimalRepeat     = 4
	lowLatencyFill    = 4096
	efficientFill     = 8192
	defaultSchemeName = "optimal"
)

var (
	lowLatencyLeading = []int{32, 32, 64, 64, 128, 128, 256, 256, 512, 512}
	efficientLeading  = []int{256, 256, 512, 512, 1024, 1024}
)

// Strategy selects how a [PartitionScheme] trades latency against FFT work.
type Strategy int

const (
	// StrategyOptimal starts at 64 samples and doubles every four partitions
	// up to 4096.
	StrategyOptimal Strategy = iota
	// StrategyLowLatency starts at 32 samples and fills with 4096-sample blocks.
	StrategyLowLatency
	// StrategyEfficient starts at 256 samples and fills with 8192-sample blocks.
	StrategyEfficient
)

// String returns the lower-case strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyOptimal:
		return "optimal"
	case StrategyLowLatency:
		return "low-latency"
	case StrategyEfficient:
		return "efficient"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name as produced by [Strategy.String].
// "lowlatency" and "low_latency" are accepted as well. An empty name selects
// [StrategyOptimal].
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "-", " ", "-").Replace(n)

	switch n {
	case "", defaultSchemeName:
		return StrategyOptimal, nil
	case "low-latency", "lowlatency":
		return StrategyLowLatency, nil
	case "efficient":
		return StrategyEfficient, nil
	default:
		return StrategyOptimal, fmt.Errorf("%w: unknown strategy %q", ErrInvalidScheme, name)
	}
}

// PartitionScheme is an ordered list of partition sizes that decompose an
// impulse response for non-uniform convolution.
//
// Sizes sum to Length. MinLatency equals Sizes[0]. The zero value describes
// an empty impulse response.
type PartitionScheme struct {
	Sizes      []int
	Length     int
	MinLatency int
}

// NewScheme builds the scheme for an impulse response of n samples using the
// given strategy. Unknown strategies fall back to [Optimal].
func NewScheme(strategy Strategy, n int) PartitionScheme {
	switch strategy {
	case StrategyLowLatency:
		return LowLatency(n)
	case StrategyEfficient:
		return Efficient(n)
	default:
		return Optimal(n)
	}
}

// Optimal starts with 64-sample partitions and doubles the size after every
// four partitions, capping at 4096 samples. Responses longer than
// [MaxPartitions] partitions can cover (966400 samples) are truncated; the
// returned Length is then less than n.
func Optimal(n int) PartitionScheme {
	b := newSchemeBuilder(n)

	size := optimalStartSize
	for count := 0; b.add(size); {
		count++
		if count == optimalRepeat && size < optimalMaxSize {
			size <<= 1
			count = 0
		}
	}

	return b.scheme()
}

// LowLatency uses 32-sample leading partitions growing to 512 samples and
// fills the remainder with 4096-sample blocks.
//
// A 4096-sample block at offset 1984 would have to be delivered before its
// input is complete, so the fill is preceded by the largest power-of-two
// blocks that are schedulable at that point: 1024 and 2048 for a full-length
// response, giving 32x2 64x2 128x2 256x2 512x2 1024x1 2048x1 4096xN.
func LowLatency(n int) PartitionScheme {
	b := newSchemeBuilder(n)
	b.addAll(lowLatencyLeading)
	b.fill(lowLatencyFill)

	return b.scheme()
}

// Efficient uses 256 to 1024-sample leading partitions and fills the
// remainder with 8192-sample blocks.
//
// As with [LowLatency], power-of-two ramp blocks precede the fill until an
// 8192-sample block is schedulable: 2048 and 4096 for a full-length response,
// giving 256x2 512x2 1024x2 2048x1 4096x1 8192xN.
func Efficient(n int) PartitionScheme {
	b := newSchemeBuilder(n)
	b.addAll(efficientLeading)
	b.fill(efficientFill)

	return b.scheme()
}

// NewPartitionScheme validates a custom list of partition sizes.
func NewPartitionScheme(sizes []int) (PartitionScheme, error) {
	s := PartitionScheme{Sizes: append([]int(nil), sizes...)}
	for _, size := range sizes {
		s.Length += size
	}

	if len(sizes) > 0 {
		s.MinLatency = sizes[0]
	}

	if err := s.Validate(); err != nil {
		return PartitionScheme{}, err
	}

	return s, nil
}

// Validate checks the scheme invariants: at least one partition, positive
// sizes that sum to Length, no more than [MaxPartitions] entries and causal
// scheduling of every partition.
func (s PartitionScheme) Validate() error {
	if len(s.Sizes) == 0 {
		return fmt.Errorf("%w: no partitions", ErrInvalidScheme)
	}

	if len(s.Sizes) > MaxPartitions {
		return fmt.Errorf("%w: %d partitions exceed maximum %d", ErrInvalidScheme, len(s.Sizes), MaxPartitions)
	}

	if s.MinLatency != s.Sizes[0] {
		return fmt.Errorf("%w: min latency %d != first size %d", ErrInvalidScheme, s.MinLatency, s.Sizes[0])
	}

	offset := 0
	for i, size := range s.Sizes {
		if size <= 0 {
			return fmt.Errorf("%w: partition %d has size %d", ErrInvalidScheme, i, size)
		}

		if offset+s.MinLatency < size {
			return fmt.Errorf("%w: partition %d (size %d) starts at %d", ErrNonCausalScheme, i, size, offset)
		}

		offset += size
	}

	if offset != s.Length {
		return fmt.Errorf("%w: sizes sum to %d, length is %d", ErrInvalidScheme, offset, s.Length)
	}

	return nil
}

// Len returns the number of partitions.
func (s PartitionScheme) Len() int {
	return len(s.Sizes)
}

// Offsets returns the start sample of every partition within the IR.
func (s PartitionScheme) Offsets() []int {
	offsets := make([]int, len(s.Sizes))

	pos := 0
	for i, size := range s.Sizes {
		offsets[i] = pos
		pos += size
	}

	return offsets
}

// MaxSize returns the largest partition size, or 0 for an empty scheme.
func (s PartitionScheme) MaxSize() int {
	largest := 0
	for _, size := range s.Sizes {
		largest = max(largest, size)
	}

	return largest
}

// String renders the sizes run-length encoded, e.g. "64x4 128x4 4096x3".
func (s PartitionScheme) String() string {
	if len(s.Sizes) == 0 {
		return "empty"
	}

	var sb strings.Builder

	for i := 0; i < len(s.Sizes); {
		j := i
		for j < len(s.Sizes) && s.Sizes[j] == s.Sizes[i] {
			j++
		}

		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}

		fmt.Fprintf(&sb, "%dx%d", s.Sizes[i], j-i)
		i = j
	}

	return sb.String()
}

// schemeBuilder appends partitions until the IR is covered or the partition
// budget is exhausted. The last partition is truncated to the remainder.
type schemeBuilder struct {
	sizes     []int
	remaining int
	offset    int
}

func newSchemeBuilder(n int) *schemeBuilder {
	return &schemeBuilder{remaining: max(0, n)}
}

// add appends one partition of up to size samples and reports whether more
// partitions may follow.
func (b *schemeBuilder) add(size int) bool {
	if b.remaining == 0 || len(b.sizes) == MaxPartitions {
		return false
	}

	size = min(size, b.remaining)
	b.sizes = append(b.sizes, size)
	b.offset += size
	b.remaining -= size

	return b.remaining > 0 && len(b.sizes) < MaxPartitions
}

func (b *schemeBuilder) addAll(sizes []int) {
	for _, size := range sizes {
		if !b.add(size) {
			return
		}
	}
}

// fill covers the remainder with blocks of the given size. A block of size
// n needs offset+latency >= n; until that holds the builder ramps up with the
// largest power-of-two block that is already schedulable.
func (b *schemeBuilder) fill(size int) {
	if len(b.sizes) == 0 {
		return
	}

	latency := b.sizes[0]
	for b.offset+latency < size {
		if !b.add(prevPowerOf2(b.offset + latency)) {
			return
		}
	}

	for b.add(size) {
	}
}

func (b *schemeBuilder) scheme() PartitionScheme {
	s := PartitionScheme{
		Sizes:  b.sizes,
		Length: b.offset,
	}

	if len(b.sizes) > 0 {
		s.MinLatency = b.sizes[0]
	}

	return s
}
