package features

import (
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Fbank computes mel filterbank features, one row per frame. With
// use_energy the log energy is the first column, or the last one under
// htk_compat.
func Fbank(waveform []float64, opts FbankOptions) ([][]float64, error) {
	logger := logging.WithFields(logging.Fields{
		"function":     "Fbank",
		"num_mel_bins": opts.NumMelBins,
		"samples":      len(waveform),
	})

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

	if !opts.UsePower {
		for _, row := range spectrum.Power {
			for k, p := range row {
				row[k] = math.Sqrt(p)
			}
		}
	}

	mel := banks.Apply(spectrum.Power)
	if opts.UseLogFbank {
		for _, row := range mel {
			for i, v := range row {
				row[i] = math.Log(math.Max(v, epsilon))
			}
		}
	}

	out := mel
	if opts.UseEnergy {
		out = make([][]float64, len(mel))
		for t, row := range mel {
			withEnergy := make([]float64, 0, len(row)+1)
			if opts.HTKCompat {
				withEnergy = append(append(withEnergy, row...), spectrum.LogEnergy[t])
			} else {
				withEnergy = append(append(withEnergy, spectrum.LogEnergy[t]), row...)
			}
			out[t] = withEnergy
		}
	}

	if opts.SubtractMean {
		subtractColumnMean(out)
	}

	logger.Debug("Fbank features extracted", logging.Fields{
		"frames": len(out),
		"dim":    len(out[0]),
	})

	return out, nil
}
