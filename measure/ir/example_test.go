package ir_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-reverb/measure/ir"
)

func ExampleAnalyzer_RT60() {
	sampleRate := 48000.0
	decayRate := math.Log(1000) / 1.0 // -60 dB after one second

	irData := make([]float64, int(sampleRate*3))
	for i := range irData {
		irData[i] = math.Exp(-decayRate * float64(i) / sampleRate)
	}

	rt60, err := ir.NewAnalyzer(sampleRate).RT60(irData)
	if err != nil {
		panic(err)
	}

	fmt.Printf("RT60 = %.2f s\n", rt60)

	// Output:
	// RT60 = 1.00 s
}

func ExampleAnalyzer_Characterize() {
	ll := []float64{1, 0, 0.5, 0, 0.25, 0, 0.125}
	rr := []float64{1, 0, 0.5, 0, 0.25, 0, 0.125}

	c, err := ir.NewAnalyzer(100).Characterize(ll, rr)
	if err != nil {
		panic(err)
	}

	fmt.Printf("correlation %.2f, width %.2f\n", c.Correlation, c.SuggestedWidth)

	// Output:
	// correlation 1.00, width 1.00
}
