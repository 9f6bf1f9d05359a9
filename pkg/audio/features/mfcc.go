package features

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gonum.org/v1/gonum/mat"
)

// MFCC computes mel-frequency cepstral coefficients, one row of num_ceps
// values per frame
func MFCC(waveform []float64, opts MFCCOptions) ([][]float64, error) {
	logger := logging.WithFields(logging.Fields{
		"function": "MFCC",
		"num_ceps": opts.NumCeps,
		"samples":  len(waveform),
	})

	if opts.NumCeps < 1 {
		return nil, fmt.Errorf("num-ceps must be positive, got %d", opts.NumCeps)
	}
	if opts.NumCeps > opts.NumMelBins {
		return nil, fmt.Errorf("num-ceps %d cannot be larger than num-mel-bins %d", opts.NumCeps, opts.NumMelBins)
	}

	banks, err := NewMelBanks(opts.MelOptions, opts.SampleFrequency, opts.PaddedWindowSize())
	if err != nil {
		return nil, err
	}

	spectrum, err := analyze(waveform, opts.FrameOptions)
	if err != nil {
		return nil, err
	}
	if spectrum.TimeFrames == 0 {
		return [][]float64{}, nil
	}

	mel := banks.Apply(spectrum.Power)
	logMel := mat.NewDense(len(mel), opts.NumMelBins, nil)
	for t, row := range mel {
		for i, v := range row {
			logMel.Set(t, i, math.Log(math.Max(v, epsilon)))
		}
	}

	var ceps mat.Dense
	ceps.Mul(logMel, DCTMatrix(opts.NumCeps, opts.NumMelBins).T())
	out := denseRows(&ceps)

	var lifter []float64
	if opts.CepstralLifter != 0 {
		lifter = LifterCoeffs(opts.NumCeps, opts.CepstralLifter)
	}

	for t, row := range out {
		for i := range row {
			if lifter != nil {
				row[i] *= lifter[i]
			}
		}
		if opts.UseEnergy {
			row[0] = spectrum.LogEnergy[t]
		}
		if opts.HTKCompat {
			energy := row[0]
			copy(row, row[1:])
			if !opts.UseEnergy {
				energy *= math.Sqrt2
			}
			row[len(row)-1] = energy
		}
	}

	if opts.SubtractMean {
		subtractColumnMean(out)
	}

	logger.Debug("MFCC features extracted", logging.Fields{
		"frames": len(out),
	})

	return out, nil
}

// DCTMatrix returns the first numCeps rows of the orthonormal DCT-II of size
// numBins
func DCTMatrix(numCeps, numBins int) *mat.Dense {
	m := mat.NewDense(numCeps, numBins, nil)
	n := float64(numBins)

	first := math.Sqrt(1.0 / n)
	for j := range numBins {
		m.Set(0, j, first)
	}

	norm := math.Sqrt(2.0 / n)
	for k := 1; k < numCeps; k++ {
		for j := range numBins {
			m.Set(k, j, norm*math.Cos(math.Pi/n*(float64(j)+0.5)*float64(k)))
		}
	}
	return m
}

// LifterCoeffs returns the sinusoidal cepstral liftering weights
func LifterCoeffs(numCeps int, lifter float64) []float64 {
	coeffs := make([]float64, numCeps)
	for i := range coeffs {
		coeffs[i] = 1.0 + 0.5*lifter*math.Sin(math.Pi*float64(i)/lifter)
	}
	return coeffs
}
