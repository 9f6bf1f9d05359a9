package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/kaldi-compliance/configs"
	"github.com/RyanBlaney/kaldi-compliance/pkg/compliance"
	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
	"github.com/RyanBlaney/kaldi-compliance/pkg/zaplog"
)

// ErrCasesFailed is returned by Run when at least one case failed or errored
var ErrCasesFailed = errors.New("compliance cases failed")

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile   string
	OutputFile   string
	OutputFormat string
	Kinds        []string
	Timeout      time.Duration
	BinDir       string
	KaldiRoot    string
	UtteranceKey string
	ParamsDir    string
	WaveFile     string
	Verbose      bool
	Quiet        bool

	// Out receives formatted output when no OutputFile is given
	Out io.Writer

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// ComplianceApp handles the compliance suite lifecycle
type ComplianceApp struct {
	ctx    *Context
	config *configs.Config
	kinds  []compliance.FeatureKind
	logger logging.Logger
}

// NewComplianceApp creates a new compliance application
func NewComplianceApp(ctx *Context) (*ComplianceApp, error) {
	// Set up logging
	logger := setupLogging(ctx)
	ctx.Logger = logger

	// Load configuration
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	kinds := make([]compliance.FeatureKind, 0, len(ctx.Kinds))
	for _, name := range ctx.Kinds {
		kind, err := compliance.ParseFeatureKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}

	if ctx.Out == nil {
		ctx.Out = os.Stdout
	}

	logger.Debug("Compliance application initialized", logging.Fields{
		"config_file":   ctx.ConfigFile,
		"output_format": config.OutputFormat,
		"wave_file":     config.Data.WaveFile,
		"params_dir":    config.Data.ParamsDir,
		"timeout":       config.Kaldi.Timeout.Seconds(),
		"kinds":         len(kinds),
	})

	return &ComplianceApp{
		ctx:    ctx,
		config: config,
		kinds:  kinds,
		logger: logger,
	}, nil
}

// Config returns the merged configuration
func (app *ComplianceApp) Config() *configs.Config {
	return app.config
}

// Runner builds a Kaldi runner from the configuration
func (app *ComplianceApp) Runner() *kaldi.Runner {
	locator := kaldi.Locator{
		BinDir:    app.config.Kaldi.BinDir,
		KaldiRoot: app.config.Kaldi.Root,
	}
	return kaldi.NewRunner(locator, app.config.Kaldi.Timeout, app.logger).WithKey(app.config.UtteranceKey)
}

// Run executes the suite and writes the report. It returns ErrCasesFailed
// when any case failed or errored.
func (app *ComplianceApp) Run(ctx context.Context) error {
	app.logger.Debug("Starting compliance run", logging.Fields{
		"kinds": fmt.Sprint(app.kinds),
	})

	if err := configs.ValidateAssets(app.config); err != nil {
		return err
	}

	checker, err := compliance.NewChecker(app.Runner(), app.config.Data.WaveFile, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create checker: %w", err)
	}

	suite := compliance.NewSuite(checker, app.config.Data.ParamsDir, app.logger)
	report, err := suite.Run(ctx, app.kinds...)
	if err != nil && report == nil {
		return fmt.Errorf("compliance run failed: %w", err)
	}

	if outErr := app.outputResults(report); outErr != nil {
		return fmt.Errorf("failed to output results: %w", outErr)
	}
	if err != nil {
		return err
	}

	if !report.OK() {
		return fmt.Errorf("%w: %d failed, %d errored", ErrCasesFailed, report.Summary.Failed, report.Summary.Errored)
	}
	return nil
}

// outputResults handles all result output
func (app *ComplianceApp) outputResults(report *compliance.Report) error {
	formatter, err := NewFormatter(app.config.OutputFormat, app.config.Output.Precision, app.config.Output.ShowSkipped)
	if err != nil {
		return err
	}

	data, err := formatter.Format(report)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	return app.write(data)
}

// write sends output to the configured file or writer
func (app *ComplianceApp) write(data []byte) error {
	if app.ctx.OutputFile != "" {
		return app.writeToFile(data)
	}
	_, err := app.ctx.Out.Write(data)
	return err
}

// writeToFile writes output data to the specified file
func (app *ComplianceApp) writeToFile(data []byte) error {
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Info("Results written to file", logging.Fields{
		"file": app.ctx.OutputFile,
		"size": len(data),
	})
	return nil
}

// setupLogging configures logging based on context. Without an injected
// logger a zap console logger on stderr becomes the global logger, so the
// feature library logs through it as well.
func setupLogging(ctx *Context) logging.Logger {
	if ctx.Logger == nil {
		logger := zaplog.NewConsole(os.Stderr, logging.InfoLevel)
		logging.SetGlobalLogger(logger)
		ctx.Logger = logger
	}

	switch {
	case ctx.Quiet:
		ctx.Logger.SetLevel(logging.ErrorLevel)
	case ctx.Verbose:
		ctx.Logger.SetLevel(logging.DebugLevel)
	}
	return ctx.Logger
}
