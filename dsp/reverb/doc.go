// Package reverb provides convolution reverb processors built on the
// partitioned convolvers of package conv.
//
// Included processors:
//   - TrueStereoConvolver: four-leg (LL, LR, RL, RR) stereo convolution with
//     width, cross-feed and dry/wet mix controls.
//   - AdaptiveTrueStereoConvolver: TrueStereoConvolver that derives its width
//     from the inter-channel correlation of the impulse response.
//   - ConvolutionReverb: mono wet/dry send reverb.
//
// Construction transforms the impulse response and allocates all buffers; it
// belongs off the audio thread. With [WithCache] the IR spectra are taken from
// and stored into an [ircache.Cache]. The process methods do not allocate
// (apart from the slice-returning conveniences) and never fail.
package reverb
