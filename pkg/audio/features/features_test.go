package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// makeSine generates an int16-scaled sine wave
func makeSine(freqHz float64, n int, sampleRate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round(16000 * math.Sin(2*math.Pi*freqHz*float64(i)/sampleRate))
	}
	return out
}

func TestDefaultWindowSizes(t *testing.T) {
	opts := DefaultFrameOptions()

	assert.Equal(t, 160, opts.WindowShift())
	assert.Equal(t, 400, opts.WindowSize())
	assert.Equal(t, 512, opts.PaddedWindowSize())

	opts.RoundToPowerOfTwo = false
	assert.Equal(t, 400, opts.PaddedWindowSize())
}

func TestFrameOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *FrameOptions)
	}{
		{"zero sample rate", func(o *FrameOptions) { o.SampleFrequency = 0 }},
		{"tiny window", func(o *FrameOptions) { o.FrameLength = 0.0625 }},
		{"zero shift", func(o *FrameOptions) { o.FrameShift = 0 }},
		{"preemphasis above one", func(o *FrameOptions) { o.PreemphasisCoefficient = 1.5 }},
		{"odd padded size", func(o *FrameOptions) { o.RoundToPowerOfTwo = false; o.FrameLength = 25.0625 }},
		{"unknown window", func(o *FrameOptions) { o.WindowType = "triangle" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultFrameOptions()
			tt.mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}

	assert.NoError(t, DefaultFrameOptions().Validate())
}

func TestDecodeOptionsOverlaysDefaults(t *testing.T) {
	opts := DefaultFbankOptions()
	err := DecodeOptions([]byte(`{"num_mel_bins": 40, "window_type": "hamming", "snip_edges": false}`), &opts)
	require.NoError(t, err)

	assert.Equal(t, 40, opts.NumMelBins)
	assert.Equal(t, WindowHamming, opts.WindowType)
	assert.False(t, opts.SnipEdges)
	// untouched fields keep their defaults
	assert.Equal(t, 0.97, opts.PreemphasisCoefficient)
	assert.True(t, opts.UseLogFbank)
}

func TestDecodeOptionsRejectsUnknownKeys(t *testing.T) {
	opts := DefaultSpectrogramOptions()
	err := DecodeOptions([]byte(`{"num_mel_bins": 40}`), &opts)
	assert.Error(t, err)
}

func TestWindowGenerator(t *testing.T) {
	wg := NewWindowGenerator(0.42)

	hamming, err := wg.Generate(WindowHamming, 11)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, hamming[0], 1e-12)
	assert.InDelta(t, 1.0, hamming[5], 1e-12)

	povey, err := wg.Generate(WindowPovey, 11)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, povey[0], 1e-12)
	assert.InDelta(t, 1.0, povey[5], 1e-12)

	blackman, err := wg.Generate(WindowBlackman, 11)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, blackman[0], 1e-12)

	rect, err := wg.Generate(WindowRectangular, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, rect)

	_, err = wg.Generate(WindowHamming, 1)
	assert.Error(t, err)
	_, err = wg.Generate("triangle", 8)
	assert.Error(t, err)
}

// The library windows must follow Kaldi's FeatureWindowFunction formulas
func TestWindowsMatchKaldiFormulas(t *testing.T) {
	const size = 400
	a := 2 * math.Pi / float64(size-1)
	kaldi := map[WindowType]func(i float64) float64{
		WindowHanning: func(i float64) float64 { return 0.5 - 0.5*math.Cos(a*i) },
		WindowHamming: func(i float64) float64 { return 0.54 - 0.46*math.Cos(a*i) },
		WindowPovey:   func(i float64) float64 { return math.Pow(0.5-0.5*math.Cos(a*i), 0.85) },
		WindowSine:    func(i float64) float64 { return math.Sin(0.5 * a * i) },
		WindowBlackman: func(i float64) float64 {
			return 0.42 - 0.5*math.Cos(a*i) + 0.08*math.Cos(2*a*i)
		},
	}

	wg := NewWindowGenerator(0.42)
	for windowType, want := range kaldi {
		window, err := wg.Generate(windowType, size)
		require.NoError(t, err, windowType)
		require.Len(t, window, size)
		for i, w := range window {
			require.InDelta(t, want(float64(i)), w, 1e-12, "%s[%d]", windowType, i)
		}
	}
}

func TestNumFrames(t *testing.T) {
	opts := DefaultFrameOptions()

	fe, err := newFrameExtractor(opts)
	require.NoError(t, err)
	assert.Equal(t, 4, fe.NumFrames(1000))
	assert.Equal(t, 0, fe.NumFrames(399))
	assert.Equal(t, 1, fe.NumFrames(400))

	opts.SnipEdges = false
	fe, err = newFrameExtractor(opts)
	require.NoError(t, err)
	assert.Equal(t, 6, fe.NumFrames(1000))
	assert.Equal(t, -120, fe.firstSample(0))
}

func TestExtractReflectsAtEdges(t *testing.T) {
	opts := DefaultFrameOptions()
	opts.SnipEdges = false
	opts.RemoveDCOffset = false
	opts.PreemphasisCoefficient = 0
	opts.WindowType = WindowRectangular

	fe, err := newFrameExtractor(opts)
	require.NoError(t, err)

	wave := make([]float64, 1000)
	for i := range wave {
		wave[i] = float64(i)
	}

	frame := make([]float64, fe.padded)
	fe.Extract(wave, 0, frame)

	// frame 0 starts at sample -120
	assert.Equal(t, 119.0, frame[0])
	assert.Equal(t, 0.0, frame[119])
	assert.Equal(t, 0.0, frame[120])
	assert.Equal(t, 279.0, frame[399])
	// zero padding up to the FFT size
	assert.Equal(t, 0.0, frame[400])
	assert.Equal(t, 0.0, frame[511])
}

func TestExtractRawEnergyIsPreWindow(t *testing.T) {
	opts := DefaultFrameOptions()
	opts.RemoveDCOffset = false

	fe, err := newFrameExtractor(opts)
	require.NoError(t, err)

	wave := make([]float64, 400)
	for i := range wave {
		wave[i] = 2
	}
	frame := make([]float64, fe.padded)
	logEnergy := fe.Extract(wave, 0, frame)

	assert.InDelta(t, math.Log(400*4), logEnergy, 1e-12)
}

func TestMelScaleRoundTrip(t *testing.T) {
	assert.InDelta(t, 1127*math.Ln2, MelScale(700), 1e-9)
	for _, hz := range []float64{0, 100, 1000, 4000, 8000} {
		assert.InDelta(t, hz, InverseMelScale(MelScale(hz)), 1e-6)
	}
}

func TestVtlnWarpFreq(t *testing.T) {
	// no warping is the identity
	for _, f := range []float64{20, 150, 1000, 7000, 7999} {
		assert.InDelta(t, f, VtlnWarpFreq(100, 7500, 20, 8000, 1.0, f), 1e-9)
	}
	// outside [low, high] passes through
	assert.Equal(t, 10.0, VtlnWarpFreq(100, 7500, 20, 8000, 1.2, 10))
	// band edges are fixed points
	assert.InDelta(t, 20.0, VtlnWarpFreq(100, 7500, 20, 8000, 1.2, 20), 1e-9)
	assert.InDelta(t, 8000.0, VtlnWarpFreq(100, 7500, 20, 8000, 0.9, 8000), 1e-9)
	// the middle region scales by 1/warp
	assert.InDelta(t, 1000/1.2, VtlnWarpFreq(100, 7500, 20, 8000, 1.2, 1000), 1e-9)
}

func TestNewMelBanks(t *testing.T) {
	banks, err := NewMelBanks(DefaultMelOptions(), 16000, 512)
	require.NoError(t, err)

	rows, cols := banks.Weights.Dims()
	assert.Equal(t, 23, rows)
	assert.Equal(t, 257, cols)
	assert.Len(t, banks.CenterFreqs, 23)

	for r := range rows {
		row := banks.Weights.RawRowView(r)
		assert.Zero(t, row[cols-1], "nyquist bin must be unused")
		assert.GreaterOrEqual(t, floats.Min(row), 0.0)
		assert.LessOrEqual(t, floats.Max(row), 1.0)
		assert.Greater(t, floats.Sum(row), 0.0)
	}
	assert.False(t, floats.HasNaN(banks.CenterFreqs))
	assert.Less(t, banks.CenterFreqs[0], banks.CenterFreqs[22])
}

func TestNewMelBanksAcceptsThreeBins(t *testing.T) {
	opts := DefaultMelOptions()
	opts.NumMelBins = 3

	banks, err := NewMelBanks(opts, 16000, 512)
	require.NoError(t, err)
	rows, _ := banks.Weights.Dims()
	assert.Equal(t, 3, rows)
}

func TestNewMelBanksRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *MelOptions)
	}{
		{"too few bins", func(o *MelOptions) { o.NumMelBins = 2 }},
		{"high above nyquist", func(o *MelOptions) { o.HighFreq = 9000 }},
		{"low above high", func(o *MelOptions) { o.LowFreq = 5000; o.HighFreq = 4000 }},
		{"too many bins", func(o *MelOptions) { o.NumMelBins = 200 }},
		{"vtln low below low freq", func(o *MelOptions) { o.VtlnWarp = 1.1; o.VtlnLow = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultMelOptions()
			tt.mutate(&opts)
			_, err := NewMelBanks(opts, 16000, 512)
			assert.Error(t, err)
		})
	}
}

func TestDCTMatrixIsOrthonormal(t *testing.T) {
	d := DCTMatrix(23, 23)

	var product mat.Dense
	product.Mul(d, d.T())

	identity := mat.NewDiagDense(23, nil)
	for i := range 23 {
		identity.SetDiag(i, 1)
	}
	assert.True(t, mat.EqualApprox(&product, identity, 1e-12))
}

func TestLifterCoeffs(t *testing.T) {
	c := LifterCoeffs(13, 22)
	require.Len(t, c, 13)
	assert.Equal(t, 1.0, c[0])
	assert.InDelta(t, 1+11*math.Sin(math.Pi*12/22), c[12], 1e-12)
}

func TestFbankShapes(t *testing.T) {
	wave := makeSine(440, 16000, 16000)

	opts := DefaultFbankOptions()
	out, err := Fbank(wave, opts)
	require.NoError(t, err)
	require.Len(t, out, 98)
	assert.Len(t, out[0], 23)

	opts.UseEnergy = true
	withEnergy, err := Fbank(wave, opts)
	require.NoError(t, err)
	require.Len(t, withEnergy[0], 24)
	assert.InDeltaSlice(t, out[5], withEnergy[5][1:], 1e-9)

	opts.HTKCompat = true
	htk, err := Fbank(wave, opts)
	require.NoError(t, err)
	assert.Equal(t, withEnergy[5][0], htk[5][23])
	assert.InDeltaSlice(t, out[5], htk[5][:23], 1e-9)
}

func TestFbankSilenceHitsFloor(t *testing.T) {
	out, err := Fbank(make([]float64, 1600), DefaultFbankOptions())
	require.NoError(t, err)
	for _, row := range out {
		for _, v := range row {
			assert.InDelta(t, math.Log(epsilon), v, 1e-9)
		}
	}
}

func TestFbankMagnitudeSpectrum(t *testing.T) {
	wave := makeSine(1000, 4000, 16000)

	opts := DefaultFbankOptions()
	opts.UsePower = false
	opts.UseLogFbank = false
	magnitude, err := Fbank(wave, opts)
	require.NoError(t, err)

	spectrum, err := analyze(wave, opts.FrameOptions)
	require.NoError(t, err)
	banks, err := NewMelBanks(opts.MelOptions, opts.SampleFrequency, opts.PaddedWindowSize())
	require.NoError(t, err)

	row := make([]float64, len(spectrum.Power[3]))
	for k, p := range spectrum.Power[3] {
		row[k] = math.Sqrt(p)
	}
	for bin := range opts.NumMelBins {
		want := floats.Dot(banks.Weights.RawRowView(bin), row)
		assert.InDelta(t, want, magnitude[3][bin], 1e-6*math.Max(1, want))
	}
}

func TestSpectrogramEnergyColumn(t *testing.T) {
	wave := makeSine(300, 800, 16000)

	opts := DefaultSpectrogramOptions()
	opts.RemoveDCOffset = false
	opts.PreemphasisCoefficient = 0
	opts.WindowType = WindowRectangular

	out, err := Spectrogram(wave, opts)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Len(t, out[0], 257)

	for f := range out {
		frame := wave[f*160 : f*160+400]
		assert.InDelta(t, math.Log(floats.Dot(frame, frame)), out[f][0], 1e-9)
	}
}

func TestSpectrogramEnergyFloor(t *testing.T) {
	opts := DefaultSpectrogramOptions()
	opts.EnergyFloor = 1.0

	out, err := Spectrogram(make([]float64, 400), opts)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0][0])
	assert.InDelta(t, math.Log(epsilon), out[0][1], 1e-9)
}

func TestMFCCShapesAndEnergy(t *testing.T) {
	wave := makeSine(220, 8000, 16000)

	opts := DefaultMFCCOptions()
	out, err := MFCC(wave, opts)
	require.NoError(t, err)
	require.Len(t, out, 48)
	require.Len(t, out[0], 13)

	spectrum, err := analyze(wave, opts.FrameOptions)
	require.NoError(t, err)
	assert.InDelta(t, spectrum.LogEnergy[7], out[7][0], 1e-9)

	opts.HTKCompat = true
	htk, err := MFCC(wave, opts)
	require.NoError(t, err)
	assert.InDelta(t, out[7][0], htk[7][12], 1e-9)
	assert.InDeltaSlice(t, out[7][1:], htk[7][:12], 1e-9)
}

func TestMFCCHTKCompatWithoutEnergyScalesC0(t *testing.T) {
	wave := makeSine(220, 4000, 16000)

	opts := DefaultMFCCOptions()
	opts.UseEnergy = false
	plain, err := MFCC(wave, opts)
	require.NoError(t, err)

	opts.HTKCompat = true
	htk, err := MFCC(wave, opts)
	require.NoError(t, err)

	assert.InDelta(t, plain[2][0]*math.Sqrt2, htk[2][12], 1e-9)
}

func TestMFCCRejectsTooManyCeps(t *testing.T) {
	opts := DefaultMFCCOptions()
	opts.NumCeps = 30
	_, err := MFCC(make([]float64, 1600), opts)
	assert.Error(t, err)
}

func TestSubtractMean(t *testing.T) {
	wave := makeSine(500, 4000, 16000)

	opts := DefaultFbankOptions()
	opts.SubtractMean = true
	out, err := Fbank(wave, opts)
	require.NoError(t, err)

	for col := range out[0] {
		sum := 0.0
		for _, row := range out {
			sum += row[col]
		}
		assert.InDelta(t, 0.0, sum/float64(len(out)), 1e-9)
	}
}

func TestMinDurationAndShortInput(t *testing.T) {
	opts := DefaultFbankOptions()
	opts.MinDuration = 1.0
	out, err := Fbank(make([]float64, 8000), opts)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Spectrogram(make([]float64, 100), DefaultSpectrogramOptions())
	require.NoError(t, err)
	assert.Empty(t, out)
}
