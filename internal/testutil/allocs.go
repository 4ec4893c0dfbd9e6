package testutil

import (
	"runtime"
	"testing"
)

// CountAllocs returns the number of heap allocations made while f runs.
// Unlike testing.AllocsPerRun there is no warm-up call, so allocations made
// only on first use are counted.
func CountAllocs(f func()) uint64 {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	var before, after runtime.MemStats

	runtime.ReadMemStats(&before)
	f()
	runtime.ReadMemStats(&after)

	return after.Mallocs - before.Mallocs
}

// RequireNoAllocs fails t if f allocates.
func RequireNoAllocs(t testing.TB, name string, f func()) {
	t.Helper()

	if n := CountAllocs(f); n != 0 {
		t.Fatalf("%s: %d allocations, want 0", name, n)
	}
}
