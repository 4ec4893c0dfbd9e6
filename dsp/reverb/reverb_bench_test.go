package reverb

import (
	"testing"

	"github.com/cwbudde/algo-reverb/internal/testutil"
)

func benchmarkTrueStereo(b *testing.B, irSeconds float64, block int) {
	b.Helper()

	n := int(irSeconds * testRate)
	ts := quadIR(b, n)

	c, err := NewTrueStereoConvolver(ts, WithMix(0.5))
	if err != nil {
		b.Fatal(err)
	}

	inL := testutil.Noise(1, 1, block)
	inR := testutil.Noise(2, 1, block)
	outL := make([]float64, block)
	outR := make([]float64, block)

	b.SetBytes(int64(block * 2 * 8))
	b.ReportAllocs()

	for b.Loop() {
		c.ProcessTo(outL, outR, inL, inR)
	}
}

func BenchmarkTrueStereo_1s_256(b *testing.B) { benchmarkTrueStereo(b, 1, 256) }
func BenchmarkTrueStereo_3s_512(b *testing.B) { benchmarkTrueStereo(b, 3, 512) }
