package features

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sonar/algorithms/windowing"
)

// poveyExponent raises the Hann window to give Kaldi's default window
const poveyExponent = 0.85

// WindowGenerator builds frame window functions. Hann, Hamming and
// rectangular coefficients come from sonido-sonar's symmetric windows,
// which use the same 2*pi*i/(N-1) phase as Kaldi. Sine and the
// configurable Blackman window have no counterpart there.
type WindowGenerator struct {
	blackmanCoeff float64
}

func NewWindowGenerator(blackmanCoeff float64) *WindowGenerator {
	return &WindowGenerator{blackmanCoeff: blackmanCoeff}
}

// Generate returns a symmetric window of the given length
func (wg *WindowGenerator) Generate(windowType WindowType, size int) ([]float64, error) {
	if size < 2 {
		return nil, fmt.Errorf("window size must be at least 2, got %d", size)
	}

	switch windowType {
	case WindowHanning:
		return windowing.NewHann(size, true).GetCoefficients(), nil
	case WindowHamming:
		return windowing.NewHamming(size, true).GetCoefficients(), nil
	case WindowPovey:
		// hann raised to 0.85, zero at both edges
		window := windowing.NewHann(size, true).GetCoefficients()
		for i, w := range window {
			window[i] = math.Pow(w, poveyExponent)
		}
		return window, nil
	case WindowRectangular:
		return windowing.NewRectangular(size).GetCoefficients(), nil
	case WindowSine:
		return wg.sine(size), nil
	case WindowBlackman:
		return wg.blackman(size), nil
	default:
		return nil, fmt.Errorf("invalid window type %q", windowType)
	}
}

func (wg *WindowGenerator) sine(size int) []float64 {
	window := make([]float64, size)
	a := 2 * math.Pi / float64(size-1)
	for i := range window {
		window[i] = math.Sin(0.5 * a * float64(i))
	}
	return window
}

// blackman uses the caller's coefficient; sonido-sonar fixes it at 0.42
func (wg *WindowGenerator) blackman(size int) []float64 {
	window := make([]float64, size)
	a := 2 * math.Pi / float64(size-1)
	for i := range window {
		x := float64(i)
		window[i] = wg.blackmanCoeff - 0.5*math.Cos(a*x) + (0.5-wg.blackmanCoeff)*math.Cos(2*a*x)
	}
	return window
}
