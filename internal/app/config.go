package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/kaldi-compliance/configs"
	"github.com/RyanBlaney/kaldi-compliance/pkg/zaplog"
)

// loadAndMergeConfig loads the base configuration and applies CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	baseConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	config := mergeConfig(baseConfig, ctx)

	if !ctx.Verbose && !ctx.Quiet {
		level, err := zaplog.ParseLevel(config.LogLevel)
		if err != nil {
			return nil, err
		}
		ctx.Logger.SetLevel(level)
	}

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// mergeConfig overrides base settings with non-zero CLI flags
func mergeConfig(config *configs.Config, ctx *Context) *configs.Config {
	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.Timeout > 0 {
		config.Kaldi.Timeout = ctx.Timeout
	}
	if ctx.BinDir != "" {
		config.Kaldi.BinDir = ctx.BinDir
	}
	if ctx.KaldiRoot != "" {
		config.Kaldi.Root = ctx.KaldiRoot
	}
	if ctx.UtteranceKey != "" {
		config.UtteranceKey = ctx.UtteranceKey
	}
	if ctx.ParamsDir != "" {
		config.Data.ParamsDir = ctx.ParamsDir
	}
	if ctx.WaveFile != "" {
		config.Data.WaveFile = ctx.WaveFile
	}
	if ctx.Verbose {
		config.Verbose = true
	}
	return config
}

// GenerateExampleConfig writes a YAML configuration holding every default
func GenerateExampleConfig(outputFile string) error {
	cfg := configs.GetDefaultConfig()

	example := map[string]any{
		"verbose":       cfg.Verbose,
		"log_level":     cfg.LogLevel,
		"output_format": cfg.OutputFormat,
		"utterance_key": cfg.UtteranceKey,
		"kaldi": map[string]any{
			"bin_dir": cfg.Kaldi.BinDir,
			"root":    cfg.Kaldi.Root,
			"timeout": cfg.Kaldi.Timeout.String(),
		},
		"data": map[string]any{
			"asset_dir":  cfg.Data.AssetDir,
			"params_dir": cfg.Data.ParamsDir,
			"wave_file":  cfg.Data.WaveFile,
		},
		"output": map[string]any{
			"precision":    cfg.Output.Precision,
			"show_skipped": cfg.Output.ShowSkipped,
		},
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
