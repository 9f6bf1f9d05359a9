package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// WindowType names a frame window function
type WindowType string

const (
	WindowHamming     WindowType = "hamming"
	WindowHanning     WindowType = "hanning"
	WindowPovey       WindowType = "povey"
	WindowRectangular WindowType = "rectangular"
	WindowBlackman    WindowType = "blackman"
	WindowSine        WindowType = "sine"
)

// FrameOptions controls how a waveform is cut into windowed frames.
// Durations are in milliseconds, frequencies in Hz.
type FrameOptions struct {
	SampleFrequency        float64    `json:"sample_frequency"`
	FrameShift             float64    `json:"frame_shift"`
	FrameLength            float64    `json:"frame_length"`
	Dither                 float64    `json:"dither"`
	PreemphasisCoefficient float64    `json:"preemphasis_coefficient"`
	RemoveDCOffset         bool       `json:"remove_dc_offset"`
	WindowType             WindowType `json:"window_type"`
	RoundToPowerOfTwo      bool       `json:"round_to_power_of_two"`
	BlackmanCoeff          float64    `json:"blackman_coeff"`
	SnipEdges              bool       `json:"snip_edges"`

	// MinDuration is in seconds; shorter input yields no frames
	MinDuration  float64 `json:"min_duration"`
	SubtractMean bool    `json:"subtract_mean"`

	EnergyFloor float64 `json:"energy_floor"`
	RawEnergy   bool    `json:"raw_energy"`
}

// MelOptions describes the triangular mel filter bank
type MelOptions struct {
	NumMelBins int     `json:"num_mel_bins"`
	LowFreq    float64 `json:"low_freq"`
	HighFreq   float64 `json:"high_freq"`
	VtlnLow    float64 `json:"vtln_low"`
	VtlnHigh   float64 `json:"vtln_high"`
	VtlnWarp   float64 `json:"vtln_warp"`
}

// FbankOptions configures log mel filterbank extraction
type FbankOptions struct {
	FrameOptions
	MelOptions

	UseEnergy   bool `json:"use_energy"`
	UseLogFbank bool `json:"use_log_fbank"`
	UsePower    bool `json:"use_power"`
	HTKCompat   bool `json:"htk_compat"`
}

// SpectrogramOptions configures log power spectrogram extraction
type SpectrogramOptions struct {
	FrameOptions
}

// MFCCOptions configures cepstral coefficient extraction
type MFCCOptions struct {
	FrameOptions
	MelOptions

	NumCeps        int     `json:"num_ceps"`
	CepstralLifter float64 `json:"cepstral_lifter"`
	UseEnergy      bool    `json:"use_energy"`
	HTKCompat      bool    `json:"htk_compat"`
}

// DefaultFrameOptions mirrors Kaldi's defaults except for dither, which
// is off so that output is deterministic.
func DefaultFrameOptions() FrameOptions {
	return FrameOptions{
		SampleFrequency:        16000,
		FrameShift:             10,
		FrameLength:            25,
		Dither:                 0,
		PreemphasisCoefficient: 0.97,
		RemoveDCOffset:         true,
		WindowType:             WindowPovey,
		RoundToPowerOfTwo:      true,
		BlackmanCoeff:          0.42,
		SnipEdges:              true,
		MinDuration:            0,
		SubtractMean:           false,
		EnergyFloor:            0,
		RawEnergy:              true,
	}
}

func DefaultMelOptions() MelOptions {
	return MelOptions{
		NumMelBins: 23,
		LowFreq:    20,
		HighFreq:   0,
		VtlnLow:    100,
		VtlnHigh:   -500,
		VtlnWarp:   1.0,
	}
}

func DefaultFbankOptions() FbankOptions {
	return FbankOptions{
		FrameOptions: DefaultFrameOptions(),
		MelOptions:   DefaultMelOptions(),
		UseEnergy:    false,
		UseLogFbank:  true,
		UsePower:     true,
		HTKCompat:    false,
	}
}

func DefaultSpectrogramOptions() SpectrogramOptions {
	return SpectrogramOptions{FrameOptions: DefaultFrameOptions()}
}

func DefaultMFCCOptions() MFCCOptions {
	return MFCCOptions{
		FrameOptions:   DefaultFrameOptions(),
		MelOptions:     DefaultMelOptions(),
		NumCeps:        13,
		CepstralLifter: 22,
		UseEnergy:      true,
		HTKCompat:      false,
	}
}

// WindowShift is the frame shift in samples. Kaldi stores these options
// as single precision, so they are rounded through float32 first.
func (o FrameOptions) WindowShift() int {
	return int(single(o.SampleFrequency) * 0.001 * single(o.FrameShift))
}

// WindowSize is the frame length in samples
func (o FrameOptions) WindowSize() int {
	return int(single(o.SampleFrequency) * 0.001 * single(o.FrameLength))
}

// PaddedWindowSize is the FFT length
func (o FrameOptions) PaddedWindowSize() int {
	if o.RoundToPowerOfTwo {
		return nextPowerOfTwo(o.WindowSize())
	}
	return o.WindowSize()
}

// Validate checks the frame options for values Kaldi would reject
func (o FrameOptions) Validate() error {
	if o.SampleFrequency <= 0 {
		return fmt.Errorf("sample frequency must be positive, got %v", o.SampleFrequency)
	}
	if o.WindowSize() < 2 {
		return fmt.Errorf("choose a window size %d that is >= 2", o.WindowSize())
	}
	if o.WindowShift() <= 0 {
		return fmt.Errorf("window shift %d must be greater than 0", o.WindowShift())
	}
	if o.PaddedWindowSize()%2 != 0 {
		return fmt.Errorf("padded window size %d must be even", o.PaddedWindowSize())
	}
	if o.PreemphasisCoefficient < 0 || o.PreemphasisCoefficient > 1 {
		return fmt.Errorf("preemphasis coefficient %v must be between [0,1]", o.PreemphasisCoefficient)
	}
	if o.EnergyFloor < 0 {
		return fmt.Errorf("energy floor %v must not be negative", o.EnergyFloor)
	}
	switch o.WindowType {
	case WindowHamming, WindowHanning, WindowPovey, WindowRectangular, WindowBlackman, WindowSine:
	default:
		return fmt.Errorf("invalid window type %q", o.WindowType)
	}
	return nil
}

// logEnergyFloor returns the floor to apply to log energies, or -Inf when
// flooring is disabled
func (o FrameOptions) logEnergyFloor() float64 {
	if o.EnergyFloor > 0 {
		return math.Log(o.EnergyFloor)
	}
	return math.Inf(-1)
}

// DecodeOptions overlays a JSON object of snake_case option names onto
// dst, which should already hold defaults. Unknown keys are rejected.
func DecodeOptions(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode feature options: %w", err)
	}
	return nil
}

func single(v float64) float64 {
	return float64(float32(v))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
