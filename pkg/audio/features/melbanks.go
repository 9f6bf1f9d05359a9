package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MelScale converts a frequency in Hz to the mel scale
func MelScale(freq float64) float64 {
	return 1127.0 * math.Log(1.0+freq/700.0)
}

// InverseMelScale converts mel back to Hz
func InverseMelScale(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// VtlnWarpFreq applies the piecewise linear VTLN warping to a frequency.
// Frequencies outside [lowFreq, highFreq] are returned unchanged.
func VtlnWarpFreq(vtlnLowCutoff, vtlnHighCutoff, lowFreq, highFreq, warpFactor, freq float64) float64 {
	if freq < lowFreq || freq > highFreq {
		return freq
	}

	l := vtlnLowCutoff * math.Max(1.0, warpFactor)
	h := vtlnHighCutoff * math.Min(1.0, warpFactor)
	scale := 1.0 / warpFactor
	fl := scale * l
	fh := scale * h

	scaleLeft := (fl - lowFreq) / (l - lowFreq)
	scaleRight := (highFreq - fh) / (highFreq - h)

	switch {
	case freq < l:
		return lowFreq + scaleLeft*(freq-lowFreq)
	case freq < h:
		return scale * freq
	default:
		return highFreq + scaleRight*(freq-highFreq)
	}
}

// VtlnWarpMelFreq is VtlnWarpFreq applied in the mel domain
func VtlnWarpMelFreq(vtlnLowCutoff, vtlnHighCutoff, lowFreq, highFreq, warpFactor, mel float64) float64 {
	return MelScale(VtlnWarpFreq(vtlnLowCutoff, vtlnHighCutoff, lowFreq, highFreq, warpFactor, InverseMelScale(mel)))
}

// MelBanks is a bank of triangular filters over the power spectrum
type MelBanks struct {
	// Weights is num_bins x (padded/2 + 1); the Nyquist column is always zero
	Weights     *mat.Dense
	CenterFreqs []float64
}

// NewMelBanks builds the filter bank for a padded window length
func NewMelBanks(opts MelOptions, sampleFreq float64, paddedWindowSize int) (*MelBanks, error) {
	numBins := opts.NumMelBins
	if numBins < 3 {
		return nil, fmt.Errorf("must have at least 3 mel bins, got %d", numBins)
	}
	if paddedWindowSize%2 != 0 {
		return nil, fmt.Errorf("padded window size %d must be even", paddedWindowSize)
	}

	numFFTBins := paddedWindowSize / 2
	nyquist := 0.5 * sampleFreq

	lowFreq := opts.LowFreq
	highFreq := opts.HighFreq
	if highFreq <= 0 {
		highFreq += nyquist
	}
	if lowFreq < 0 || lowFreq >= nyquist || highFreq <= 0 || highFreq > nyquist || highFreq <= lowFreq {
		return nil, fmt.Errorf("bad values in options: low-freq %v and high-freq %v vs. nyquist %v",
			lowFreq, highFreq, nyquist)
	}

	vtlnLow := opts.VtlnLow
	vtlnHigh := opts.VtlnHigh
	if vtlnHigh < 0 {
		vtlnHigh += nyquist
	}
	warp := opts.VtlnWarp
	if warp != 1.0 && (vtlnLow < 0 || vtlnLow <= lowFreq || vtlnLow >= highFreq ||
		vtlnHigh <= 0 || vtlnHigh >= highFreq || vtlnHigh <= vtlnLow) {
		return nil, fmt.Errorf("bad values in options: vtln-low %v and vtln-high %v, versus low-freq %v and high-freq %v",
			vtlnLow, vtlnHigh, lowFreq, highFreq)
	}

	fftBinWidth := sampleFreq / float64(paddedWindowSize)
	melLow := MelScale(lowFreq)
	melHigh := MelScale(highFreq)
	melDelta := (melHigh - melLow) / float64(numBins+1)

	weights := mat.NewDense(numBins, numFFTBins+1, nil)
	centers := make([]float64, numBins)

	for bin := range numBins {
		left := melLow + float64(bin)*melDelta
		center := melLow + float64(bin+1)*melDelta
		right := melLow + float64(bin+2)*melDelta

		if warp != 1.0 {
			left = VtlnWarpMelFreq(vtlnLow, vtlnHigh, lowFreq, highFreq, warp, left)
			center = VtlnWarpMelFreq(vtlnLow, vtlnHigh, lowFreq, highFreq, warp, center)
			right = VtlnWarpMelFreq(vtlnLow, vtlnHigh, lowFreq, highFreq, warp, right)
		}
		centers[bin] = InverseMelScale(center)

		nonEmpty := false
		for i := range numFFTBins {
			mel := MelScale(fftBinWidth * float64(i))
			if mel <= left || mel >= right {
				continue
			}
			var w float64
			if mel <= center {
				w = (mel - left) / (center - left)
			} else {
				w = (right - mel) / (right - center)
			}
			weights.Set(bin, i, w)
			nonEmpty = true
		}
		if !nonEmpty {
			return nil, fmt.Errorf("mel bin %d covers no FFT bins, num-mel-bins %d may be too large", bin, numBins)
		}
	}

	return &MelBanks{Weights: weights, CenterFreqs: centers}, nil
}

// Apply projects power spectra (frames x fft bins) onto the mel bins
func (mb *MelBanks) Apply(power [][]float64) [][]float64 {
	if len(power) == 0 {
		return [][]float64{}
	}
	rows, cols := len(power), len(power[0])
	spectra := mat.NewDense(rows, cols, nil)
	for r, row := range power {
		spectra.SetRow(r, row)
	}

	var out mat.Dense
	out.Mul(spectra, mb.Weights.T())
	return denseRows(&out)
}

// denseRows copies a gonum matrix into row slices
func denseRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for r := range rows {
		out[r] = make([]float64, cols)
		copy(out[r], m.RawRowView(r))
	}
	return out
}
