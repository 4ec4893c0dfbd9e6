// Package conv implements the block convolution engines behind the
// convolution reverb.
//
// The package offers:
//
//   - [PartitionScheme]: block-size plans that decompose an impulse response
//     into partitions of increasing size ([Optimal], [LowLatency], [Efficient]).
//   - [Partition]: one fixed-size block convolver with a precomputed IR
//     spectrum, a frequency-domain delay line and overlap-add state.
//   - [NonUniformConvolver]: a chain of partitions that realizes the full
//     convolution at the latency of the smallest partition.
//   - [UniformConvolver]: the single-size, uniformly partitioned convolver.
//   - [Direct]: time-domain reference convolution.
//
// # Usage
//
// Construction performs every FFT plan, IR transform and buffer allocation
// and must happen off the audio thread:
//
//	scheme := conv.Optimal(len(ir))
//	c, err := conv.NewNonUniformConvolver(ir, scheme)
//
// The processing methods never allocate (except [NonUniformConvolver.Process],
// which returns a fresh slice) and never fail:
//
//	c.ProcessTo(out, in) // out is delayed by c.Latency() samples
//
// # Spectra
//
// The transformed IR segments can be exported with
// [NonUniformConvolver.Spectra] and later fed to [NewNonUniformFromSpectra],
// which skips the forward transforms. The ircache package persists them.
//
// # Latency
//
// The algorithmic latency equals the first partition size: the engine has to
// collect that many samples before it can run its first transform. Later
// partitions cover the slowly decaying tail and run in larger, less frequent
// blocks. Every partition must be causal, i.e. offset + latency >= size.
package conv
