package compliance

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Summary counts results by status
type Summary struct {
	Total   int `json:"total" yaml:"total"`
	Passed  int `json:"passed" yaml:"passed"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Errored int `json:"errored" yaml:"errored"`
}

// Add counts one result status
func (s *Summary) Add(status Status) {
	s.Total++
	switch status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusErrored:
		s.Errored++
	}
}

// Report is the outcome of a suite run
type Report struct {
	WaveFile  string        `json:"wave_file" yaml:"wave_file"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Summary   Summary       `json:"summary" yaml:"summary"`
	Results   []Result      `json:"results" yaml:"results"`
}

// OK reports whether no case failed or errored
func (r *Report) OK() bool {
	return r.Summary.Failed == 0 && r.Summary.Errored == 0
}

// Suite enumerates cases from the params files and checks them in order
type Suite struct {
	checker   *Checker
	paramsDir string
	logger    logging.Logger
}

func NewSuite(checker *Checker, paramsDir string, logger logging.Logger) *Suite {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Suite{
		checker:   checker,
		paramsDir: paramsDir,
		logger:    logger.WithFields(logging.Fields{"component": "compliance_suite"}),
	}
}

// Cases loads every parameter set of the given kinds, or of all kinds when
// none are given
func (s *Suite) Cases(kinds ...FeatureKind) ([]Case, error) {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}

	var cases []Case
	for _, kind := range kinds {
		sets, err := LoadParams(filepath.Join(s.paramsDir, kind.ParamsFile()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s cases: %w", kind, err)
		}
		for i, params := range sets {
			cases = append(cases, Case{Kind: kind, Index: i, Params: params})
		}
	}
	return cases, nil
}

// Run checks every case synchronously. Cancelling ctx stops the run after
// the current case.
func (s *Suite) Run(ctx context.Context, kinds ...FeatureKind) (*Report, error) {
	cases, err := s.Cases(kinds...)
	if err != nil {
		return nil, err
	}

	report := &Report{
		WaveFile:  s.checker.WaveFile(),
		StartedAt: time.Now(),
		Results:   make([]Result, 0, len(cases)),
	}

	s.logger.Info("Starting compliance run", logging.Fields{
		"cases": len(cases),
	})

	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("compliance run interrupted: %w", err)
		}
		result := s.checker.Check(ctx, tc)
		report.Results = append(report.Results, result)
		report.Summary.Add(result.Status)
	}
	report.Duration = time.Since(report.StartedAt)

	s.logger.Info("Compliance run completed", logging.Fields{
		"passed":  report.Summary.Passed,
		"failed":  report.Summary.Failed,
		"skipped": report.Summary.Skipped,
		"errored": report.Summary.Errored,
	})

	return report, nil
}
