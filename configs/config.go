package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`

	// UtteranceKey is the scp/ark key exchanged with Kaldi
	UtteranceKey string `mapstructure:"utterance_key"`

	// Kaldi toolkit location and execution
	Kaldi KaldiConfig `mapstructure:"kaldi"`

	// Test assets
	Data DataConfig `mapstructure:"data"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`
}

// KaldiConfig controls how the reference tools are found and run
type KaldiConfig struct {
	BinDir  string        `mapstructure:"bin_dir"`
	Root    string        `mapstructure:"root"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DataConfig locates the waveform asset and parameter files
type DataConfig struct {
	AssetDir  string `mapstructure:"asset_dir"`
	ParamsDir string `mapstructure:"params_dir"`
	WaveFile  string `mapstructure:"wave_file"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Precision   int  `mapstructure:"precision"`
	ShowSkipped bool `mapstructure:"show_skipped"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	return LoadFromViper(viper.GetViper())
}

// LoadFromViper decodes a config from the given viper instance after
// filling in defaults for anything unset
func LoadFromViper(v *viper.Viper) (*Config, error) {
	if err := resolveConfigPaths(v); err != nil {
		return nil, err
	}
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// dataPathKeys are resolved against the config file's directory when the
// file gives them as relative paths
var dataPathKeys = []string{"data.asset_dir", "data.params_dir", "data.wave_file"}

// resolveConfigPaths rewrites relative data paths read from the config file
// so they do not depend on the working directory. Values coming from flags
// or the environment are left alone.
func resolveConfigPaths(v *viper.Viper) error {
	file := v.ConfigFileUsed()
	if file == "" {
		return nil
	}

	fromFile := viper.New()
	fromFile.SetConfigFile(file)
	if err := fromFile.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", file, err)
	}

	base, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}

	for _, key := range dataPathKeys {
		path := fromFile.GetString(key)
		if path == "" || filepath.IsAbs(path) || v.GetString(key) != path {
			continue
		}
		v.Set(key, filepath.Join(base, path))
	}
	return nil
}

// ValidateAssets checks that the parameter directory and the waveform
// exist, pointing at data.asset_dir when they do not
func ValidateAssets(config *Config) error {
	if info, err := os.Stat(config.Data.ParamsDir); err != nil || !info.IsDir() {
		return fmt.Errorf("params directory %q not found: set data.asset_dir or data.params_dir (--params-dir)", config.Data.ParamsDir)
	}
	if _, err := os.Stat(config.Data.WaveFile); err != nil {
		return fmt.Errorf("wave file %q not found: set data.asset_dir or data.wave_file (--wave-file)", config.Data.WaveFile)
	}
	return nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Kaldi.Timeout <= 0 {
		return fmt.Errorf("kaldi timeout must be positive")
	}

	if config.Data.ParamsDir == "" {
		return fmt.Errorf("params directory must be set")
	}

	if config.Data.WaveFile == "" {
		return fmt.Errorf("wave file must be set")
	}

	if config.UtteranceKey == "" || strings.ContainsAny(config.UtteranceKey, " \t\n") {
		return fmt.Errorf("utterance key %q must be a single non-empty token", config.UtteranceKey)
	}

	switch config.OutputFormat {
	case "json", "yaml", "table":
	default:
		return fmt.Errorf("unsupported output format: %s", config.OutputFormat)
	}

	if config.Output.Precision < 0 {
		return fmt.Errorf("output precision cannot be negative")
	}

	return nil
}
