package compliance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/kaldi-compliance/pkg/audio/wav"
	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
)

// Case is one parameter set of one feature kind
type Case struct {
	Kind   FeatureKind `json:"kind" yaml:"kind"`
	Index  int         `json:"index" yaml:"index"`
	Params Params      `json:"-" yaml:"-"`
}

// Name identifies the case, e.g. fbank_07
func (c Case) Name() string {
	return fmt.Sprintf("%s_%02d", c.Kind, c.Index)
}

// Status is the outcome of a case
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusErrored Status = "errored"
)

// Result records the outcome of checking one case
type Result struct {
	Case     Case          `json:"case" yaml:"case"`
	Name     string        `json:"name" yaml:"name"`
	Args     string        `json:"args" yaml:"args"`
	Status   Status        `json:"status" yaml:"status"`
	Rows     int           `json:"rows" yaml:"rows"`
	Cols     int           `json:"cols" yaml:"cols"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`

	Err      error          `json:"-" yaml:"-"`
	Mismatch *MismatchError `json:"-" yaml:"-"`
}

// Checker runs the library and Kaldi on the same waveform and compares
type Checker struct {
	runner   *kaldi.Runner
	waveFile string
	waveform []float64
	logger   logging.Logger
}

// NewChecker loads the waveform asset without normalisation and keeps its
// first channel
func NewChecker(runner *kaldi.Runner, waveFile string, logger logging.Logger) (*Checker, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	abs, err := filepath.Abs(waveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wave file: %w", err)
	}

	w, err := wav.Load(abs, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load wave file: %w", err)
	}
	samples, err := w.Channel(0)
	if err != nil {
		return nil, fmt.Errorf("failed to load wave file: %w", err)
	}

	logger = logger.WithFields(logging.Fields{"component": "compliance_checker"})
	logger.Debug("Loaded waveform", logging.Fields{
		"path":        abs,
		"sample_rate": w.SampleRate,
		"samples":     len(samples),
	})

	return &Checker{
		runner:   runner,
		waveFile: abs,
		waveform: samples,
		logger:   logger,
	}, nil
}

// WaveFile returns the absolute path handed to Kaldi
func (c *Checker) WaveFile() string {
	return c.waveFile
}

// Check runs one case. It never returns an error; failures are reported
// through the result status.
func (c *Checker) Check(ctx context.Context, tc Case) Result {
	start := time.Now()
	command := kaldi.Command(tc.Kind.Command(), tc.Params.Options())

	result := Result{
		Case: tc,
		Name: tc.Name(),
		Args: tc.Params.String(),
	}
	finish := func(status Status, err error) Result {
		result.Status = status
		result.Err = err
		if err != nil {
			result.Message = err.Error()
		}
		result.Duration = time.Since(start)
		return result
	}

	logger := c.logger.WithFields(logging.Fields{"case": tc.Name()})

	if !c.runner.Locator().Available(tc.Kind.Command()) {
		logger.Debug("Kaldi executable not available, skipping", logging.Fields{
			"command": tc.Kind.Command(),
		})
		return finish(StatusSkipped, fmt.Errorf("%s not found", tc.Kind.Command()))
	}

	actual, err := tc.Kind.Extract(c.waveform, tc.Params)
	if err != nil {
		logger.Error(err, "Feature extraction failed")
		return finish(StatusErrored, fmt.Errorf("failed to extract %s: %w", tc.Kind, err))
	}
	result.Rows, result.Cols = shape(actual)

	expected, err := c.runner.Run(ctx, command, kaldi.ScpInput(c.waveFile))
	if err != nil {
		if kaldi.IsNotFound(err) {
			return finish(StatusSkipped, err)
		}
		if len(actual) == 0 && producedNoOutput(err) {
			logger.Debug("Neither side produced frames", logging.Fields{
				"code": kaldi.Code(err),
			})
			return finish(StatusPassed, nil)
		}
		logger.Error(err, "Kaldi reference run failed")
		return finish(StatusErrored, fmt.Errorf("failed to run kaldi: %w", err))
	}

	if err := Compare(actual, expected, tc.Kind.Tolerance()); err != nil {
		var mismatch *MismatchError
		if errors.As(err, &mismatch) {
			result.Mismatch = mismatch
		}
		logger.Warn("Output differs from Kaldi", logging.Fields{"reason": err.Error()})
		return finish(StatusFailed, err)
	}

	logger.Debug("Case passed", logging.Fields{
		"rows": result.Rows,
		"cols": result.Cols,
	})
	return finish(StatusPassed, nil)
}

// producedNoOutput reports whether Kaldi skipped the utterance, as it does
// for input shorter than min_duration. The tool then writes nothing for the
// key and exits non-zero when no utterance succeeded.
func producedNoOutput(err error) bool {
	var kerr *kaldi.Error
	if !errors.As(err, &kerr) {
		return false
	}
	switch kerr.Code {
	case kaldi.ErrCodeMissingKey:
		return true
	case kaldi.ErrCodeExec:
		return strings.Contains(kerr.Stderr, "producing no output")
	default:
		return false
	}
}
