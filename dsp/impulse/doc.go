// Package impulse loads impulse responses and arranges them for true-stereo
// convolution.
//
// [Load] and [Decode] read WAV files of any channel count; [Response.Resample]
// converts a response to the engine sample rate. [NewTrueStereo] maps mono,
// stereo and four-channel responses onto the LL, LR, RL and RR legs consumed
// by the reverb package.
package impulse
