package conv

import (
	"errors"
	"slices"
	"testing"
)

// checkScheme asserts the structural invariants every generated scheme holds.
func checkScheme(t *testing.T, s PartitionScheme, n int) {
	t.Helper()

	if len(s.Sizes) == 0 {
		t.Fatalf("n=%d: empty scheme", n)
	}

	if len(s.Sizes) > MaxPartitions {
		t.Fatalf("n=%d: %d partitions exceed %d", n, len(s.Sizes), MaxPartitions)
	}

	if s.MinLatency != s.Sizes[0] {
		t.Fatalf("n=%d: MinLatency %d != Sizes[0] %d", n, s.MinLatency, s.Sizes[0])
	}

	if s.Sizes[0] > 128 {
		t.Fatalf("n=%d: first partition %d > 128", n, s.Sizes[0])
	}

	sum := 0
	for _, size := range s.Sizes {
		sum += size
	}

	if sum != s.Length {
		t.Fatalf("n=%d: sizes sum to %d, Length %d", n, sum, s.Length)
	}

	if len(s.Sizes) < MaxPartitions && s.Length != n {
		t.Fatalf("n=%d: Length %d does not cover the IR", n, s.Length)
	}

	if err := s.Validate(); err != nil {
		t.Fatalf("n=%d: Validate: %v", n, err)
	}
}

func TestOptimal(t *testing.T) {
	s := Optimal(1000)

	want := []int{64, 64, 64, 64, 128, 128, 128, 128, 232}
	if !slices.Equal(s.Sizes, want) {
		t.Fatalf("Optimal(1000) = %v, want %v", s.Sizes, want)
	}

	if s.MinLatency != 64 || s.Length != 1000 {
		t.Fatalf("MinLatency=%d Length=%d, want 64 and 1000", s.MinLatency, s.Length)
	}
}

func TestOptimalCapsPartitionSize(t *testing.T) {
	s := Optimal(200000)
	checkScheme(t, s, 200000)

	if got := s.MaxSize(); got != optimalMaxSize {
		t.Fatalf("MaxSize = %d, want %d", got, optimalMaxSize)
	}
}

func TestLowLatency(t *testing.T) {
	s := LowLatency(48000)
	checkScheme(t, s, 48000)

	if !slices.Equal(s.Sizes[:len(lowLatencyLeading)], lowLatencyLeading) {
		t.Fatalf("leading sizes = %v, want %v", s.Sizes[:len(lowLatencyLeading)], lowLatencyLeading)
	}

	if s.MinLatency != 32 {
		t.Fatalf("MinLatency = %d, want 32", s.MinLatency)
	}

	if s.MaxSize() != lowLatencyFill {
		t.Fatalf("MaxSize = %d, want %d", s.MaxSize(), lowLatencyFill)
	}
}

func TestEfficient(t *testing.T) {
	s := Efficient(96000)

	if s.MinLatency != 256 {
		t.Fatalf("MinLatency = %d, want 256", s.MinLatency)
	}

	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if s.Length != 96000 {
		t.Fatalf("Length = %d, want 96000", s.Length)
	}

	if s.MaxSize() != efficientFill {
		t.Fatalf("MaxSize = %d, want %d", s.MaxSize(), efficientFill)
	}
}

func TestFillRampBlocks(t *testing.T) {
	tests := []struct {
		name   string
		scheme PartitionScheme
		want   string
	}{
		{"low-latency", LowLatency(48000), "32x2 64x2 128x2 256x2 512x2 1024x1 2048x1 4096x10 1984x1"},
		{"efficient", Efficient(96000), "256x2 512x2 1024x2 2048x1 4096x1 8192x10 4352x1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scheme.String(); got != tt.want {
				t.Fatalf("scheme = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOptimalTruncatesAtMaxPartitions(t *testing.T) {
	const n = 2000000

	s := Optimal(n)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if s.Len() != MaxPartitions {
		t.Fatalf("Len = %d, want %d", s.Len(), MaxPartitions)
	}

	if s.Length != 966400 {
		t.Fatalf("Length = %d, want 966400", s.Length)
	}
}

func TestSchemeShortIR(t *testing.T) {
	tests := []struct {
		name   string
		scheme PartitionScheme
		want   []int
	}{
		{"optimal one sample", Optimal(1), []int{1}},
		{"optimal below first size", Optimal(50), []int{50}},
		{"low-latency 40", LowLatency(40), []int{32, 8}},
		{"efficient 300", Efficient(300), []int{256, 44}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !slices.Equal(tt.scheme.Sizes, tt.want) {
				t.Fatalf("sizes = %v, want %v", tt.scheme.Sizes, tt.want)
			}

			if err := tt.scheme.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestSchemeEmptyIR(t *testing.T) {
	for _, s := range []PartitionScheme{Optimal(0), LowLatency(0), Efficient(-5)} {
		if s.Len() != 0 || s.Length != 0 {
			t.Fatalf("scheme for empty IR = %+v, want empty", s)
		}

		if err := s.Validate(); !errors.Is(err, ErrInvalidScheme) {
			t.Fatalf("Validate empty scheme: got %v, want ErrInvalidScheme", err)
		}
	}
}

func TestSchemeProperties(t *testing.T) {
	lengths := []int{1, 63, 64, 65, 511, 1024, 4095, 4096, 4097, 10000, 44100, 96000, 480000}

	for _, strategy := range []Strategy{StrategyOptimal, StrategyLowLatency, StrategyEfficient} {
		for _, n := range lengths {
			s := NewScheme(strategy, n)
			if strategy == StrategyEfficient && n > 128 {
				// Efficient starts above the 128-sample first-partition bound.
				if err := s.Validate(); err != nil {
					t.Fatalf("%v n=%d: Validate: %v", strategy, n, err)
				}

				continue
			}

			checkScheme(t, s, n)
		}
	}
}

func TestSchemeLatencyOrdering(t *testing.T) {
	const n = 48000

	low := LowLatency(n).MinLatency
	opt := Optimal(n).MinLatency
	eff := Efficient(n).MinLatency

	if !(low <= opt && opt <= eff) {
		t.Fatalf("latencies low=%d optimal=%d efficient=%d not ordered", low, opt, eff)
	}
}

func TestSchemeClampsAtMaxPartitions(t *testing.T) {
	// 256 partitions of the capped 4096 size cannot cover this IR.
	n := 4096 * (MaxPartitions + 10)

	s := Optimal(n)
	if s.Len() != MaxPartitions {
		t.Fatalf("Len = %d, want %d", s.Len(), MaxPartitions)
	}

	if s.Length >= n {
		t.Fatalf("Length = %d, want truncated below %d", s.Length, n)
	}

	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewPartitionScheme(t *testing.T) {
	s, err := NewPartitionScheme([]int{64, 128})
	if err != nil {
		t.Fatalf("NewPartitionScheme: %v", err)
	}

	if s.Length != 192 || s.MinLatency != 64 {
		t.Fatalf("got Length=%d MinLatency=%d, want 192 and 64", s.Length, s.MinLatency)
	}

	if !slices.Equal(s.Offsets(), []int{0, 64}) {
		t.Fatalf("Offsets = %v, want [0 64]", s.Offsets())
	}

	tests := []struct {
		name  string
		sizes []int
		want  error
	}{
		{"empty", nil, ErrInvalidScheme},
		{"zero size", []int{64, 0}, ErrInvalidScheme},
		{"non causal", []int{64, 256}, ErrNonCausalScheme},
		{"too many", make([]int, MaxPartitions+1), ErrInvalidScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPartitionScheme(tt.sizes); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"", StrategyOptimal},
		{"optimal", StrategyOptimal},
		{"Low-Latency", StrategyLowLatency},
		{"low_latency", StrategyLowLatency},
		{"lowlatency", StrategyLowLatency},
		{" efficient ", StrategyEfficient},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", tt.in, err)
		}

		if got != tt.want {
			t.Fatalf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}

		if roundTrip, _ := ParseStrategy(got.String()); roundTrip != got {
			t.Fatalf("String round trip of %v gave %v", got, roundTrip)
		}
	}

	if _, err := ParseStrategy("fastest"); !errors.Is(err, ErrInvalidScheme) {
		t.Fatalf("unknown strategy: got %v, want ErrInvalidScheme", err)
	}
}

func TestSchemeString(t *testing.T) {
	if got := Optimal(1000).String(); got != "64x4 128x4 232x1" {
		t.Fatalf("String = %q", got)
	}

	if got := (PartitionScheme{}).String(); got != "empty" {
		t.Fatalf("empty String = %q", got)
	}
}
