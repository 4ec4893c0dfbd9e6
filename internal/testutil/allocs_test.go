package testutil

import "testing"

var allocSink []float64

func TestCountAllocs(t *testing.T) {
	if n := CountAllocs(func() {}); n != 0 {
		t.Fatalf("empty func: %d allocations", n)
	}

	n := CountAllocs(func() {
		allocSink = make([]float64, 1024)
	})
	if n == 0 {
		t.Fatal("make([]float64, 1024) was not counted")
	}

	RequireNoAllocs(t, "copy", func() {
		copy(allocSink, allocSink[1:])
	})
}
