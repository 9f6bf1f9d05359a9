package compliance

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/kaldi-compliance/pkg/audio/features"
)

// FeatureKind identifies one of the feature transforms under test
type FeatureKind string

const (
	KindFbank       FeatureKind = "fbank"
	KindSpectrogram FeatureKind = "spectrogram"
	KindMFCC        FeatureKind = "mfcc"
)

// AllKinds lists every kind in suite order
func AllKinds() []FeatureKind {
	return []FeatureKind{KindFbank, KindSpectrogram, KindMFCC}
}

// ParseFeatureKind accepts a kind name, case-insensitively
func ParseFeatureKind(s string) (FeatureKind, error) {
	kind := FeatureKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AllKinds() {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown feature kind %q (want fbank, spectrogram or mfcc)", s)
}

// Command is the Kaldi executable producing this feature
func (k FeatureKind) Command() string {
	return "compute-" + string(k) + "-feats"
}

// ParamsFile is the JSON-lines file enumerating the kind's parameter sets
func (k FeatureKind) ParamsFile() string {
	return "kaldi_test_" + string(k) + "_args.jsonl"
}

// Tolerance is the fixed comparison tolerance for the kind
func (k FeatureKind) Tolerance() Tolerance {
	switch k {
	case KindFbank:
		return Tolerance{RTol: 1e-4, ATol: 1e-8}
	case KindSpectrogram:
		return Tolerance{RTol: 1e-4, ATol: 1e-6}
	case KindMFCC:
		return Tolerance{RTol: 1e-4, ATol: 1e-5}
	default:
		return Tolerance{}
	}
}

// Extract runs the library implementation of the kind over a waveform
// with the given parameters applied on top of the library defaults
func (k FeatureKind) Extract(waveform []float64, params Params) ([][]float64, error) {
	data := params.JSON()

	switch k {
	case KindFbank:
		opts := features.DefaultFbankOptions()
		if err := features.DecodeOptions(data, &opts); err != nil {
			return nil, err
		}
		return features.Fbank(waveform, opts)
	case KindSpectrogram:
		opts := features.DefaultSpectrogramOptions()
		if err := features.DecodeOptions(data, &opts); err != nil {
			return nil, err
		}
		return features.Spectrogram(waveform, opts)
	case KindMFCC:
		opts := features.DefaultMFCCOptions()
		if err := features.DecodeOptions(data, &opts); err != nil {
			return nil, err
		}
		return features.MFCC(waveform, opts)
	default:
		return nil, fmt.Errorf("unknown feature kind %q", k)
	}
}
