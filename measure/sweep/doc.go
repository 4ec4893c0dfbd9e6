// Package sweep measures impulse responses with exponential sine sweeps.
//
// Play the excitation from [LogSweep.Generate] through the system, record the
// result and deconvolve it:
//
//	s := &sweep.LogSweep{
//	    StartFreq: 20, EndFreq: 20000,
//	    Duration: 5, SampleRate: 48000,
//	}
//	excitation, _ := s.Generate()
//	// ... play excitation, record one channel per speaker/microphone pair ...
//	resp, _ := s.Capture(recordings, 3*48000)
//	ts, _ := impulse.NewTrueStereo(resp)
//
// Deconvolution streams the recording through the partitioned convolver of
// package conv, so sweeps of several seconds stay cheap.
package sweep
