package reverb

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-reverb/dsp/impulse"
	"github.com/cwbudde/algo-reverb/internal/testutil"
	"github.com/cwbudde/algo-reverb/measure/ir"
)

func stereoIR(t *testing.T, left, right []float64) impulse.TrueStereo {
	t.Helper()

	ts, err := impulse.FromStereo(left, right, testRate)
	if err != nil {
		t.Fatalf("FromStereo: %v", err)
	}

	return ts
}

func TestAdaptiveSuggestedWidth(t *testing.T) {
	const n = 20000

	base := testutil.DecayingNoise(1, n, testRate, 0.3)
	inverted := make([]float64, n)

	for i, v := range base {
		inverted[i] = -v
	}

	tests := []struct {
		name  string
		right []float64
		want  float64
		tol   float64
	}{
		{"identical", base, 1, 1e-9},
		{"inverted", inverted, 1, 1e-9},
		{"uncorrelated", testutil.DecayingNoise(2, n, testRate, 0.3), 0.5, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAdaptiveTrueStereoConvolver(stereoIR(t, base, tt.right), WithAutoWidth(true))
			if err != nil {
				t.Fatalf("NewAdaptiveTrueStereoConvolver: %v", err)
			}

			chars := a.Characteristics()
			if math.Abs(chars.SuggestedWidth-tt.want) > tt.tol {
				t.Fatalf("SuggestedWidth = %v, want %v ± %v", chars.SuggestedWidth, tt.want, tt.tol)
			}

			if !a.AutoWidth() || a.Width() != chars.SuggestedWidth {
				t.Fatalf("auto width %v applied %v, want %v", a.AutoWidth(), a.Width(), chars.SuggestedWidth)
			}

			if chars.RT60 <= 0 {
				t.Fatalf("RT60 = %v, want positive", chars.RT60)
			}
		})
	}
}

func TestAdaptiveManualWidth(t *testing.T) {
	ir := testutil.DecayingNoise(3, 4000, testRate, 0.1)

	a, err := NewAdaptiveTrueStereoConvolver(stereoIR(t, ir, ir), WithWidth(0.3))
	if err != nil {
		t.Fatal(err)
	}

	if a.AutoWidth() || a.Width() != 0.3 {
		t.Fatalf("initial: auto %v width %v, want manual 0.3", a.AutoWidth(), a.Width())
	}

	a.SetAutoWidth(true)

	if a.Width() != a.Characteristics().SuggestedWidth {
		t.Fatalf("auto width = %v, want %v", a.Width(), a.Characteristics().SuggestedWidth)
	}

	// Manual changes are remembered but not applied while auto is on.
	a.SetWidth(0.5)

	if a.Width() != a.Characteristics().SuggestedWidth {
		t.Fatalf("SetWidth overrode auto width: %v", a.Width())
	}

	a.SetAutoWidth(false)

	if a.Width() != 0.5 {
		t.Fatalf("restored width = %v, want 0.5", a.Width())
	}

	a.SetWidth(5)

	if a.Width() != MaxWidth {
		t.Fatalf("clamped width = %v, want %v", a.Width(), MaxWidth)
	}
}

func TestAdaptiveProcessMatchesTrueStereo(t *testing.T) {
	ts := quadIR(t, 600)

	a, err := NewAdaptiveTrueStereoConvolver(ts, WithWidth(0.7), WithMix(0.8))
	if err != nil {
		t.Fatal(err)
	}

	c, err := NewTrueStereoConvolver(ts, WithWidth(0.7), WithMix(0.8))
	if err != nil {
		t.Fatal(err)
	}

	if a.Latency() != c.Latency() {
		t.Fatalf("Latency = %d, want %d", a.Latency(), c.Latency())
	}

	a.SetCrossFeed(0.4)
	c.SetCrossFeed(0.4)
	a.SetMix(0.9)
	c.SetMix(0.9)

	inL := testutil.Noise(1, 1, 1500)
	inR := testutil.Noise(2, 1, 1500)

	wantL, wantR := c.Process(inL, inR)
	gotL, gotR := a.Process(inL, inR)

	testutil.RequireSliceNearlyEqual(t, gotL, wantL, 0)
	testutil.RequireSliceNearlyEqual(t, gotR, wantR, 0)

	a.Reset()
	c.Reset()

	wantL, wantR = c.ProcessMS(inL, inR, 0.5)

	gotL = make([]float64, len(inL))
	gotR = make([]float64, len(inR))
	a.ProcessMSTo(gotL, gotR, inL, inR, 0.5)

	testutil.RequireSliceNearlyEqual(t, gotL, wantL, 0)
	testutil.RequireSliceNearlyEqual(t, gotR, wantR, 0)
}

func TestAdaptiveErrors(t *testing.T) {
	ts := quadIR(t, 100)
	ts.SampleRate = 0

	if _, err := NewAdaptiveTrueStereoConvolver(ts); !errors.Is(err, ir.ErrInvalidSampleRate) {
		t.Errorf("zero rate: got %v, want ir.ErrInvalidSampleRate", err)
	}

	if _, err := NewAdaptiveTrueStereoConvolver(quadIR(t, 100), WithCrossFeed(-1)); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("cross-feed -1: got %v, want ErrInvalidOption", err)
	}
}
