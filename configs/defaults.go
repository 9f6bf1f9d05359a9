package configs

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultAssetDir is relative to the working directory and only fits
	// runs from a checkout; config files resolve their own relative paths
	DefaultAssetDir     = "pkg/compliance/testdata"
	DefaultWaveFileName = "kaldi_file.wav"
	DefaultUtteranceKey = "foo"
	DefaultKaldiTimeout = 60 * time.Second
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("verbose") {
		v.Set("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}
	if !v.IsSet("utterance_key") {
		v.Set("utterance_key", DefaultUtteranceKey)
	}

	// Kaldi defaults; empty locations fall back to $PATH and $KALDI_ROOT
	if !v.IsSet("kaldi.bin_dir") {
		v.Set("kaldi.bin_dir", "")
	}
	if !v.IsSet("kaldi.root") {
		v.Set("kaldi.root", "")
	}
	if !v.IsSet("kaldi.timeout") {
		v.Set("kaldi.timeout", DefaultKaldiTimeout)
	}

	// Asset defaults, relative to the asset directory unless set explicitly
	if !v.IsSet("data.asset_dir") {
		v.Set("data.asset_dir", DefaultAssetDir)
	}
	assetDir := v.GetString("data.asset_dir")
	if !v.IsSet("data.params_dir") {
		v.Set("data.params_dir", assetDir)
	}
	if !v.IsSet("data.wave_file") {
		v.Set("data.wave_file", filepath.Join(assetDir, DefaultWaveFileName))
	}

	// Output defaults
	if !v.IsSet("output.precision") {
		v.Set("output.precision", 6)
	}
	if !v.IsSet("output.show_skipped") {
		v.Set("output.show_skipped", true)
	}
}

// GetDefaultConfig returns a config with all defaults applied
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		UtteranceKey: DefaultUtteranceKey,
		Kaldi:        GetDefaultKaldiConfig(),
		Data:         GetDefaultDataConfig(),
		Output:       GetDefaultOutputConfig(),
	}
}

// GetDefaultKaldiConfig returns default Kaldi settings
func GetDefaultKaldiConfig() KaldiConfig {
	return KaldiConfig{
		Timeout: DefaultKaldiTimeout,
	}
}

// GetDefaultDataConfig returns default asset locations
func GetDefaultDataConfig() DataConfig {
	return DataConfig{
		AssetDir:  DefaultAssetDir,
		ParamsDir: DefaultAssetDir,
		WaveFile:  filepath.Join(DefaultAssetDir, DefaultWaveFileName),
	}
}

// GetDefaultOutputConfig returns default output settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Precision:   6,
		ShowSkipped: true,
	}
}
