package features

import "math"

// Spectrogram computes the log power spectrum of every frame. Column 0
// carries the frame's log energy instead of the DC bin.
func Spectrogram(waveform []float64, opts SpectrogramOptions) ([][]float64, error) {
	spectrum, err := analyze(waveform, opts.FrameOptions)
	if err != nil {
		return nil, err
	}
	if spectrum.TimeFrames == 0 {
		return [][]float64{}, nil
	}

	out := spectrum.Power
	for t, row := range out {
		for k, p := range row {
			row[k] = math.Log(math.Max(p, epsilon))
		}
		row[0] = spectrum.LogEnergy[t]
	}

	if opts.SubtractMean {
		subtractColumnMean(out)
	}
	return out, nil
}
