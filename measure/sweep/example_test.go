package sweep_test

import (
	"fmt"

	"github.com/cwbudde/algo-reverb/measure/sweep"
)

func ExampleLogSweep_Generate() {
	s := &sweep.LogSweep{
		StartFreq:  20,
		EndFreq:    20000,
		Duration:   1,
		SampleRate: 48000,
	}

	signal, err := s.Generate()
	if err != nil {
		panic(err)
	}

	fmt.Printf("Sweep length: %d samples (%.1f s)\n", len(signal), float64(len(signal))/48000)
	fmt.Printf("First sample: %.6f\n", signal[0])

	// Output:
	// Sweep length: 48000 samples (1.0 s)
	// First sample: 0.000000
}

func ExampleLogSweep_Capture() {
	s := &sweep.LogSweep{
		StartFreq:  100,
		EndFreq:    4000,
		Duration:   0.25,
		SampleRate: 16000,
	}

	excitation, err := s.Generate()
	if err != nil {
		panic(err)
	}

	// Room: direct path plus one reflection 100 samples later.
	recording := make([]float64, len(excitation)+200)
	for i, v := range excitation {
		recording[i] += v
		recording[i+100] += 0.3 * v
	}

	resp, err := s.Capture([][]float64{recording}, 1024)
	if err != nil {
		panic(err)
	}

	fmt.Printf("IR: %d channel, %d samples at %.0f Hz\n", resp.Channels(), resp.Len(), resp.SampleRate)

	// Output:
	// IR: 1 channel, 1024 samples at 16000 Hz
}
