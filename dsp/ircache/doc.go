// Package ircache persists precomputed impulse-response spectra.
//
// Transforming a long impulse response into partition spectra is the most
// expensive step of building a convolver. The [Cache] keeps the result keyed
// by the SHA-256 of the IR: a bounded in-memory tier with least-recently-used
// eviction in front of an optional disk tier of .irspec files.
//
// # File format
//
// All fields are little-endian:
//
//	magic        [4]byte  "IRSP"
//	version      uint32   1
//	source_hash  [32]byte
//	ir_length    uint64
//	sample_rate  float64
//	channels     uint8
//	partitions   uint32
//	per partition:
//	  size         uint32
//	  num_complex  uint32
//	  num_complex x (re float64, im float64)
//
// A file whose source hash does not match the IR it was looked up for is
// stale: [Cache.Get] deletes it and reports a miss.
package ircache
