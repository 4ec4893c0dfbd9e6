// Package ir analyzes impulse responses for the convolution reverb.
//
// The metrics derive from the Schroeder backward integration of the squared
// impulse response and from simple time-domain statistics:
//
//   - RT60: time until the remaining energy falls 60 dB below the total
//   - T30: regression-based reverberation time (-5 to -35 dB, extrapolated)
//   - Pre-delay: time to the absolute peak, the arrival of the direct sound
//   - Correlation: Pearson correlation between two channels
//   - Early reflection density: local peaks per second in the first 80 ms
//
// [Analyzer.Characterize] combines them into the [Characteristics] used to
// derive an automatic stereo width.
//
// # Usage
//
//	analyzer := ir.NewAnalyzer(48000)
//	c, err := analyzer.Characterize(ts.LL, ts.RR)
//	fmt.Printf("RT60 = %.2f s, T30 = %.2f s, width = %.2f\n", c.RT60, c.T30, c.SuggestedWidth)
package ir
