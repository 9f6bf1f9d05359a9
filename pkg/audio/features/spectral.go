package features

import (
	"math"
	"math/rand"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// epsilon is the single precision machine epsilon used by Kaldi as the
// floor before every log
const epsilon = 1.1920928955078125e-07

// SpectralAnalyzer provides the FFT and power spectrum used by every feature
type SpectralAnalyzer struct {
	fftSize int
	logger  logging.Logger
}

// SpectrumResult holds per-frame power spectra and log energies
type SpectrumResult struct {
	Power      [][]float64 `json:"power"`       // frames x (fft_size/2 + 1)
	LogEnergy  []float64   `json:"log_energy"`  // per frame, after the energy floor
	TimeFrames int         `json:"time_frames"` // number of frames
	FreqBins   int         `json:"freq_bins"`   // fft_size/2 + 1
	FFTSize    int         `json:"fft_size"`    // padded window size
	HopSize    int         `json:"hop_size"`    // window shift in samples
}

func NewSpectralAnalyzer(fftSize int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		fftSize: fftSize,
		logger: logging.WithFields(logging.Fields{
			"component": "spectral_analyzer",
			"fft_size":  fftSize,
		}),
	}
}

// FFT computes the complex spectrum of a real signal using mjibson/go-dsp
func (sa *SpectralAnalyzer) FFT(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// PowerSpectrum returns |X(k)|^2 for k in [0, N/2]
func (sa *SpectralAnalyzer) PowerSpectrum(frame []float64) []float64 {
	spectrum := sa.FFT(frame)
	bins := len(frame)/2 + 1
	power := make([]float64, bins)
	for k := range bins {
		re, im := real(spectrum[k]), imag(spectrum[k])
		power[k] = re*re + im*im
	}
	return power
}

// analyze frames the waveform and computes power spectra plus the log energy
// each feature type reports in its energy slot
func analyze(waveform []float64, opts FrameOptions) (*SpectrumResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fe, err := newFrameExtractor(opts)
	if err != nil {
		return nil, err
	}

	sa := NewSpectralAnalyzer(fe.padded)
	result := &SpectrumResult{
		FFTSize:  fe.padded,
		FreqBins: fe.padded/2 + 1,
		HopSize:  fe.shift,
	}

	if float64(len(waveform)) < opts.MinDuration*opts.SampleFrequency {
		sa.logger.Debug("Waveform shorter than min duration", logging.Fields{
			"samples":      len(waveform),
			"min_duration": opts.MinDuration,
		})
		return result, nil
	}

	numFrames := fe.NumFrames(len(waveform))
	result.TimeFrames = numFrames
	result.Power = make([][]float64, numFrames)
	result.LogEnergy = make([]float64, numFrames)

	floor := opts.logEnergyFloor()
	frame := make([]float64, fe.padded)

	for f := range numFrames {
		rawLogEnergy := fe.Extract(waveform, f, frame)

		logEnergy := rawLogEnergy
		if !opts.RawEnergy {
			logEnergy = math.Log(math.Max(floats.Dot(frame, frame), epsilon))
		}
		if logEnergy < floor {
			logEnergy = floor
		}

		result.LogEnergy[f] = logEnergy
		result.Power[f] = sa.PowerSpectrum(frame)
	}

	sa.logger.Debug("Spectrum computed", logging.Fields{
		"frames":    numFrames,
		"freq_bins": result.FreqBins,
		"hop_size":  fe.shift,
	})

	return result, nil
}

// frameExtractor cuts windowed frames out of a waveform the way Kaldi's
// ExtractWindow does
type frameExtractor struct {
	opts   FrameOptions
	window []float64
	shift  int
	size   int
	padded int
	rng    *rand.Rand
}

func newFrameExtractor(opts FrameOptions) (*frameExtractor, error) {
	size := opts.WindowSize()
	window, err := NewWindowGenerator(opts.BlackmanCoeff).Generate(opts.WindowType, size)
	if err != nil {
		return nil, err
	}

	fe := &frameExtractor{
		opts:   opts,
		window: window,
		shift:  opts.WindowShift(),
		size:   size,
		padded: opts.PaddedWindowSize(),
	}
	if opts.Dither != 0 {
		fe.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return fe, nil
}

// NumFrames returns how many frames a waveform of numSamples produces
func (fe *frameExtractor) NumFrames(numSamples int) int {
	if fe.opts.SnipEdges {
		if numSamples < fe.size {
			return 0
		}
		return 1 + (numSamples-fe.size)/fe.shift
	}
	return (numSamples + fe.shift/2) / fe.shift
}

// firstSample is the index of the first sample of frame f; negative when
// the frame starts before the waveform
func (fe *frameExtractor) firstSample(f int) int {
	if fe.opts.SnipEdges {
		return f * fe.shift
	}
	midpoint := fe.shift*f + fe.shift/2
	return midpoint - fe.size/2
}

// Extract fills dst (len padded) with processed frame f and returns the log
// energy measured before pre-emphasis and windowing
func (fe *frameExtractor) Extract(waveform []float64, f int, dst []float64) float64 {
	n := len(waveform)
	start := fe.firstSample(f)
	frame := dst[:fe.size]

	if start >= 0 && start+fe.size <= n {
		copy(frame, waveform[start:start+fe.size])
	} else {
		// reflect samples that fall outside the waveform
		for i := range fe.size {
			s := start + i
			for s < 0 || s >= n {
				if s < 0 {
					s = -s - 1
				} else {
					s = 2*n - 1 - s
				}
			}
			frame[i] = waveform[s]
		}
	}
	for i := fe.size; i < len(dst); i++ {
		dst[i] = 0
	}

	if fe.rng != nil {
		for i := range frame {
			frame[i] += fe.rng.NormFloat64() * fe.opts.Dither
		}
	}

	if fe.opts.RemoveDCOffset {
		floats.AddConst(-floats.Sum(frame)/float64(fe.size), frame)
	}

	rawLogEnergy := math.Log(math.Max(floats.Dot(frame, frame), epsilon))

	if coeff := fe.opts.PreemphasisCoefficient; coeff != 0 {
		for i := fe.size - 1; i > 0; i-- {
			frame[i] -= coeff * frame[i-1]
		}
		frame[0] -= coeff * frame[0]
	}

	floats.Mul(frame, fe.window)

	return rawLogEnergy
}

// subtractColumnMean removes the per-column mean across frames in place
func subtractColumnMean(m [][]float64) {
	if len(m) == 0 {
		return
	}
	mean := make([]float64, len(m[0]))
	for _, row := range m {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(len(m)), mean)
	for _, row := range m {
		floats.Sub(row, mean)
	}
}
