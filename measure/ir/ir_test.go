package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-reverb/internal/testutil"
)

// makeExponentialDecay generates a synthetic IR with known RT60.
// h(t) = exp(-6.908 * t / rt60) where 6.908 = ln(10^3) ensures -60 dB at rt60.
func makeExponentialDecay(sampleRate, rt60, durationSec float64) []float64 {
	n := int(sampleRate * durationSec)
	ir := make([]float64, n)
	decayRate := math.Log(1000) / rt60

	for i := range ir {
		ir[i] = math.Exp(-decayRate * float64(i) / sampleRate)
	}

	return ir
}

func TestRT60ExponentialDecay(t *testing.T) {
	const sampleRate = 48000.0

	for _, rt60 := range []float64{0.3, 1.0, 2.0} {
		ir := makeExponentialDecay(sampleRate, rt60, 3*rt60)

		got, err := NewAnalyzer(sampleRate).RT60(ir)
		if err != nil {
			t.Fatalf("RT60: %v", err)
		}

		if math.Abs(got-rt60) > 2/sampleRate+1e-3*rt60 {
			t.Errorf("RT60 = %.5f s, want %.5f s", got, rt60)
		}
	}
}

func TestRT60EdgeCases(t *testing.T) {
	a := NewAnalyzer(1000)

	if rt, err := a.RT60(make([]float64, 100)); err != nil || rt != 0 {
		t.Fatalf("silent IR: RT60 = %v, %v; want 0", rt, err)
	}

	// Constant IR never decays by 60 dB before its last sample.
	if rt, _ := a.RT60(testutil.Ones(500)); math.Abs(rt-0.5) > 1e-12 {
		t.Fatalf("constant IR: RT60 = %v, want full duration 0.5", rt)
	}

	if _, err := a.RT60(nil); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("empty IR: got %v", err)
	}

	if _, err := NewAnalyzer(0).RT60([]float64{1}); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("zero rate: got %v", err)
	}
}

func TestT30ExponentialDecay(t *testing.T) {
	const sampleRate = 48000.0

	ir := makeExponentialDecay(sampleRate, 1.0, 3.0)

	got, err := NewAnalyzer(sampleRate).T30(ir)
	if err != nil {
		t.Fatalf("T30: %v", err)
	}

	if math.Abs(got-1.0) > 0.05 {
		t.Fatalf("T30 = %.3f s, want about 1.0 s", got)
	}

	if _, err := NewAnalyzer(sampleRate).T30(testutil.Ones(100)); !errors.Is(err, ErrNoDecay) {
		t.Fatalf("flat IR: got %v, want ErrNoDecay", err)
	}
}

func TestDecayCurve(t *testing.T) {
	a := NewAnalyzer(48000)

	s, err := a.DecayCurve(makeExponentialDecay(48000, 0.5, 1.5))
	if err != nil {
		t.Fatalf("DecayCurve: %v", err)
	}

	if s[0] != 0 {
		t.Fatalf("S(0) = %v dB, want 0", s[0])
	}

	for i := 1; i < len(s); i++ {
		if s[i] > s[i-1] {
			t.Fatalf("curve rises at %d: %v > %v", i, s[i], s[i-1])
		}
	}

	// 0.5 s of decay at 60 dB per 0.5 s: about -60 dB half way through.
	if v := s[24000]; math.Abs(v+60) > 0.5 {
		t.Fatalf("S(0.5 s) = %.2f dB, want about -60", v)
	}

	tail, _ := a.DecayCurve([]float64{1, 1, 0, 0})
	testutil.RequireSliceNearlyEqual(t, tail, []float64{0, 10 * math.Log10(0.5), -200, -200}, 1e-12)

	silent, _ := a.DecayCurve(make([]float64, 10))
	testutil.RequireSliceNearlyEqual(t, silent, make([]float64, 10), 0)

	if _, err := a.DecayCurve(nil); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("empty IR: got %v", err)
	}
}

func TestCorrelation(t *testing.T) {
	x := testutil.Noise(42, 1, 4096)

	neg := make([]float64, len(x))
	for i, v := range x {
		neg[i] = -2 * v
	}

	tests := []struct {
		name string
		a, b []float64
		want float64
		tol  float64
	}{
		{"identical", x, x, 1, 1e-9},
		{"inverted and scaled", x, neg, -1, 1e-9},
		{"independent", x, testutil.Noise(7, 1, 4096), 0, 0.1},
		{"silent", make([]float64, 16), make([]float64, 16), 0, 0},
		{"empty", nil, x, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Correlation(tt.a, tt.b); math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("Correlation = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEarlyReflectionDensity(t *testing.T) {
	const sampleRate = 1000.0 // 80 ms window = 80 samples

	ir := make([]float64, 200)
	ir[0] = 1
	ir[10] = 0.5
	ir[30] = -0.4
	ir[50] = 0.05 // below 10% of the window peak
	ir[70] = 0.2
	ir[150] = 0.9 // outside the window

	got, err := NewAnalyzer(sampleRate).EarlyReflectionDensity(ir)
	if err != nil {
		t.Fatalf("EarlyReflectionDensity: %v", err)
	}

	// Three reflections in 80 ms; the direct sound at index 0 has no left
	// neighbor and is not counted.
	want := 3 / 0.080
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("density = %v, want %v", got, want)
	}

	if d, _ := NewAnalyzer(sampleRate).EarlyReflectionDensity(make([]float64, 100)); d != 0 {
		t.Fatalf("silent density = %v, want 0", d)
	}
}

func TestCharacterizeIdenticalLegs(t *testing.T) {
	ll := testutil.DecayingNoise(1, 24000, 48000, 0.4)

	c, err := NewAnalyzer(48000).Characterize(ll, ll)
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}

	if math.Abs(c.Correlation-1) > 1e-9 {
		t.Fatalf("Correlation = %v, want 1", c.Correlation)
	}

	if math.Abs(c.SuggestedWidth-1) > 1e-9 {
		t.Fatalf("SuggestedWidth = %v, want 1", c.SuggestedWidth)
	}

	if c.RT60 <= 0 || c.EarlyReflectionDensity <= 0 {
		t.Fatalf("RT60 = %v, density = %v; want positive", c.RT60, c.EarlyReflectionDensity)
	}
}

func TestCharacterizeSilentLegs(t *testing.T) {
	c, err := NewAnalyzer(48000).Characterize(make([]float64, 512), make([]float64, 512))
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}

	if c.Correlation != 0 || c.RT60 != 0 || c.T30 != 0 || c.PreDelay != 0 ||
		c.EarlyReflectionDensity != 0 || c.SuggestedWidth != 0.5 {
		t.Fatalf("silent characteristics = %+v", c)
	}

	if _, err := NewAnalyzer(48000).Characterize([]float64{1}, nil); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("empty RR: got %v", err)
	}
}

func TestSuggestedWidth(t *testing.T) {
	tests := []struct{ corr, want float64 }{
		{0, 0.5},
		{1, 1},
		{-1, 1},
		{0.5, 0.75},
		{math.NaN(), 0.5},
	}

	for _, tt := range tests {
		if got := SuggestedWidth(tt.corr); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("SuggestedWidth(%v) = %v, want %v", tt.corr, got, tt.want)
		}
	}
}

func TestPreDelay(t *testing.T) {
	a := NewAnalyzer(1000)

	tests := []struct {
		name string
		ir   []float64
		want float64
	}{
		{"negative peak", []float64{0.1, -0.9, 0.5}, 0.001},
		{"first of equal peaks", []float64{0, 0, 0.5, -0.5, 0.5}, 0.002},
		{"silent", make([]float64, 8), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.PreDelay(tt.ir)
			if err != nil || got != tt.want {
				t.Fatalf("PreDelay = %v, %v; want %v", got, err, tt.want)
			}
		})
	}

	if _, err := a.PreDelay(nil); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("empty IR: got %v", err)
	}
}

func TestCharacterizeDecayAndPreDelay(t *testing.T) {
	const sampleRate = 48000.0

	// 10 ms of silence before a 0.8 s exponential decay.
	decay := makeExponentialDecay(sampleRate, 0.8, 2.0)
	ll := append(make([]float64, 480), decay...)

	c, err := NewAnalyzer(sampleRate).Characterize(ll, ll)
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}

	if math.Abs(c.PreDelay-0.010) > 1e-12 {
		t.Fatalf("PreDelay = %v s, want 0.010", c.PreDelay)
	}

	if math.Abs(c.T30-0.8) > 0.05 {
		t.Fatalf("T30 = %.3f s, want about 0.8", c.T30)
	}

	// Flat responses have an RT60 but no T30.
	flat, err := NewAnalyzer(sampleRate).Characterize(testutil.Ones(100), testutil.Ones(100))
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}

	if flat.T30 != 0 || flat.RT60 <= 0 {
		t.Fatalf("flat IR: T30 = %v, RT60 = %v", flat.T30, flat.RT60)
	}
}
