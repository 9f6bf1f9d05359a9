package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

var (
	ErrInvalidFile       = errors.New("not a valid WAV file")
	ErrUnsupportedFormat = errors.New("unsupported WAV sample format")
	ErrNoChannel         = errors.New("channel index out of range")
)

// Waveform holds decoded PCM samples split per channel
type Waveform struct {
	SampleRate int         `json:"sample_rate"`
	BitDepth   int         `json:"bit_depth"`
	Channels   [][]float64 `json:"-"`
}

// NumSamples returns the number of samples per channel
func (w *Waveform) NumSamples() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// Channel returns the samples of a single channel
func (w *Waveform) Channel(i int) ([]float64, error) {
	if i < 0 || i >= len(w.Channels) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoChannel, i, len(w.Channels))
	}
	return w.Channels[i], nil
}

// Load reads a PCM WAV file. Without normalize the samples keep their
// integer values (e.g. -32768..32767 for 16 bit), which is what Kaldi sees.
func Load(path string, normalize bool) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	w, err := Decode(f, normalize)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return w, nil
}

// Decode reads a PCM WAV stream
func Decode(r io.ReadSeeker, normalize bool) (*Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	numChans := int(d.NumChans)
	bitDepth := int(d.BitDepth)
	if numChans <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, numChans)
	}
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("%w: %d bit samples", ErrUnsupportedFormat, bitDepth)
	}

	frames := len(buf.Data) / numChans
	channels := make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}

	scale := 1.0
	offset := 0.0
	if normalize {
		scale = 1.0 / float64(int64(1)<<(bitDepth-1))
		if bitDepth == 8 {
			// 8 bit WAV is unsigned
			offset = 128
		}
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < numChans; c++ {
			channels[c][i] = (float64(buf.Data[i*numChans+c]) - offset) * scale
		}
	}

	return &Waveform{
		SampleRate: int(d.SampleRate),
		BitDepth:   bitDepth,
		Channels:   channels,
	}, nil
}
