package ircache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeSamplesHashDeterministic(t *testing.T) {
	samples := []float64{0.5, -0.25, 0.125, 0}

	a := ComputeSamplesHash(samples, 48000, 1)
	b := ComputeSamplesHash(append([]float64(nil), samples...), 48000, 1)

	if a != b {
		t.Fatalf("identical inputs hashed differently: %s vs %s", a, b)
	}

	perturbed := append([]float64(nil), samples...)
	perturbed[2] += 1e-12

	tests := []struct {
		name string
		hash Hash
	}{
		{"sample", ComputeSamplesHash(perturbed, 48000, 1)},
		{"rate", ComputeSamplesHash(samples, 44100, 1)},
		{"channels", ComputeSamplesHash(samples, 48000, 2)},
		{"length", ComputeSamplesHash(samples[:3], 48000, 1)},
	}

	for _, tt := range tests {
		if tt.hash == a {
			t.Errorf("changing %s did not change the hash", tt.name)
		}
	}
}

func TestComputeSamplesHashLongInput(t *testing.T) {
	// Crosses the chunk boundary of the encoder.
	samples := make([]float64, 3*samplesHashChunk+7)
	for i := range samples {
		samples[i] = float64(i)
	}

	a := ComputeSamplesHash(samples, 48000, 1)

	samples[len(samples)-1]++
	if ComputeSamplesHash(samples, 48000, 1) == a {
		t.Fatal("last sample not covered by the hash")
	}
}

func TestComputeHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ir.wav")

	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}

	// SHA-256("abc").
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if h.String() != want {
		t.Fatalf("hash = %s, want %s", h, want)
	}

	if h.Prefix() != want[:16] {
		t.Fatalf("prefix = %s, want %s", h.Prefix(), want[:16])
	}

	if _, err := ComputeHash(filepath.Join(dir, "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}

	if !(Hash{}).IsZero() || h.IsZero() {
		t.Fatal("IsZero mismatch")
	}

	if r, _ := HashReader(strings.NewReader("abc")); r != h {
		t.Fatalf("HashReader = %s, want %s", r, h)
	}
}
