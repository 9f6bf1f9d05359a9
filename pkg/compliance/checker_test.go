package compliance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
	"github.com/RyanBlaney/kaldi-compliance/pkg/zaplog"
)

// CheckerTestSuite drives the checker against fake Kaldi executables
type CheckerTestSuite struct {
	suite.Suite
	binDir   string
	waveFile string
	waveform []float64
	logger   logging.Logger
	logs     *observer.ObservedLogs
}

func (s *CheckerTestSuite) SetupTest() {
	// Keep any real Kaldi installation out of the lookup
	s.T().Setenv("PATH", s.T().TempDir())
	s.T().Setenv("KALDI_ROOT", "")

	s.binDir = s.T().TempDir()
	s.waveFile = filepath.Join("testdata", "kaldi_file.wav")
	s.waveform = loadTestWaveform(s.T())

	core, logs := observer.New(zapcore.DebugLevel)
	s.logger = zaplog.New(core)
	s.logs = logs
}

// installFake writes an executable that drains stdin and prints the given
// matrix as a text archive under the default key
func (s *CheckerTestSuite) installFake(kind FeatureKind, m [][]float64) {
	arkPath := filepath.Join(s.binDir, string(kind)+".ark")
	f, err := os.Create(arkPath)
	s.Require().NoError(err)
	s.Require().NoError(kaldi.WriteTextMatrix(f, kaldi.DefaultKey, m))
	s.Require().NoError(f.Close())

	s.installScript(kind, "/bin/cat > /dev/null\nexec /bin/cat "+arkPath+"\n")
}

func (s *CheckerTestSuite) installScript(kind FeatureKind, body string) {
	path := filepath.Join(s.binDir, kind.Command())
	s.Require().NoError(os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

func (s *CheckerTestSuite) newChecker(timeout time.Duration) *Checker {
	runner := kaldi.NewRunner(kaldi.Locator{BinDir: s.binDir}, timeout, s.logger)
	checker, err := NewChecker(runner, s.waveFile, s.logger)
	s.Require().NoError(err)
	return checker
}

func (s *CheckerTestSuite) extract(kind FeatureKind, params Params) [][]float64 {
	m, err := kind.Extract(s.waveform, params)
	s.Require().NoError(err)
	return m
}

func (s *CheckerTestSuite) TestPassed() {
	params, err := ParseParams(`{"dither": 0.0, "num_mel_bins": 30}`)
	s.Require().NoError(err)
	s.installFake(KindFbank, s.extract(KindFbank, params))

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindFbank, Index: 4, Params: params})

	s.Equal(StatusPassed, result.Status, result.Message)
	s.Equal("fbank_04", result.Name)
	s.Equal("dither=0.0 num_mel_bins=30", result.Args)
	s.Equal(73, result.Rows)
	s.Equal(30, result.Cols)
	s.NoError(result.Err)
}

func (s *CheckerTestSuite) TestFailedOnMismatch() {
	expected := s.extract(KindMFCC, nil)
	expected[10][3] += 1.0
	s.installFake(KindMFCC, expected)

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindMFCC})

	s.Equal(StatusFailed, result.Status)
	s.Require().NotNil(result.Mismatch)
	s.Equal(1, result.Mismatch.Count)
	s.Equal(10, result.Mismatch.Row)
	s.Equal(3, result.Mismatch.Col)
	s.Equal(1, s.logs.FilterMessage("Output differs from Kaldi").Len())
}

func (s *CheckerTestSuite) TestFailedOnShape() {
	expected := s.extract(KindSpectrogram, nil)
	s.installFake(KindSpectrogram, expected[:len(expected)-1])

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindSpectrogram})

	s.Equal(StatusFailed, result.Status)
	s.Require().NotNil(result.Mismatch)
	s.True(result.Mismatch.ShapeMismatch())
}

func (s *CheckerTestSuite) TestSkippedWithoutExecutable() {
	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindMFCC})

	s.Equal(StatusSkipped, result.Status)
	s.Contains(result.Message, "compute-mfcc-feats")
}

func (s *CheckerTestSuite) TestErroredWhenKaldiFails() {
	s.installScript(KindFbank, "echo 'ERROR: unknown option' >&2\nexit 1\n")

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindFbank})

	s.Equal(StatusErrored, result.Status)
	s.Equal(kaldi.ErrCodeExec, kaldi.Code(result.Err))
	s.Contains(result.Message, "ERROR: unknown option")
}

func (s *CheckerTestSuite) TestErroredOnBadParams() {
	s.installFake(KindFbank, [][]float64{{0}})
	params, err := ParseParams(`{"num_mel_bins": 2}`)
	s.Require().NoError(err)

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindFbank, Params: params})

	s.Equal(StatusErrored, result.Status)
	s.Contains(result.Message, "failed to extract fbank")
}

func (s *CheckerTestSuite) TestPassedWhenBothSidesSkipShortInput() {
	params, err := ParseParams(`{"dither": 0.0, "min_duration": 10.0}`)
	s.Require().NoError(err)
	s.Empty(s.extract(KindFbank, params))

	tests := []struct {
		name   string
		script string
	}{
		{"no entry", "/bin/cat > /dev/null\n"},
		{"no entry and failure", "/bin/cat > /dev/null\n" +
			"echo 'WARNING (compute-fbank-feats) File: foo is too short (0.75 sec): producing no output.' >&2\n" +
			"echo 'Done 0 out of 1 utterances.' >&2\nexit 1\n"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.installScript(KindFbank, tt.script)
			result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindFbank, Params: params})
			s.Equal(StatusPassed, result.Status, result.Message)
			s.Equal(0, result.Rows)
		})
	}
}

func (s *CheckerTestSuite) TestErroredWhenOnlyKaldiSkips() {
	s.installScript(KindMFCC, "/bin/cat > /dev/null\n")

	result := s.newChecker(10*time.Second).Check(context.Background(), Case{Kind: KindMFCC})

	s.Equal(StatusErrored, result.Status)
	s.Equal(kaldi.ErrCodeMissingKey, kaldi.Code(result.Err))
}

func (s *CheckerTestSuite) TestSuiteRun() {
	paramsDir := s.T().TempDir()
	write := func(kind FeatureKind, content string) {
		s.Require().NoError(os.WriteFile(filepath.Join(paramsDir, kind.ParamsFile()), []byte(content), 0o644))
	}
	write(KindFbank, "{\"dither\": 0.0}\n{\"dither\": 0.0, \"num_mel_bins\": 40}\n")
	write(KindSpectrogram, "{\"dither\": 0.0}\n")
	write(KindMFCC, "{\"dither\": 0.0}\n")

	// Only the first fbank case matches the fake output
	first, err := ParseParams(`{"dither": 0.0}`)
	s.Require().NoError(err)
	s.installFake(KindFbank, s.extract(KindFbank, first))
	s.installScript(KindMFCC, "exit 3\n")

	checker := s.newChecker(10 * time.Second)
	report, err := NewSuite(checker, paramsDir, s.logger).Run(context.Background())
	s.Require().NoError(err)

	s.Equal(Summary{Total: 4, Passed: 1, Failed: 1, Skipped: 1, Errored: 1}, report.Summary)
	s.False(report.OK())
	s.Require().Len(report.Results, 4)
	s.Equal("fbank_00", report.Results[0].Name)
	s.Equal("fbank_01", report.Results[1].Name)
	s.Equal("spectrogram_00", report.Results[2].Name)
	s.Equal("mfcc_00", report.Results[3].Name)
	s.True(filepath.IsAbs(report.WaveFile))
}

func (s *CheckerTestSuite) TestSuiteSelectedKinds() {
	checker := s.newChecker(10 * time.Second)
	st := NewSuite(checker, "testdata", s.logger)

	cases, err := st.Cases(KindMFCC)
	s.Require().NoError(err)
	s.Len(cases, 8)
	for i, c := range cases {
		s.Equal(KindMFCC, c.Kind)
		s.Equal(i, c.Index)
	}

	report, err := st.Run(context.Background(), KindSpectrogram)
	s.Require().NoError(err)
	s.Equal(7, report.Summary.Skipped)
	s.True(report.OK())

	_, err = NewSuite(checker, s.T().TempDir(), s.logger).Cases()
	s.Error(err)
}

func (s *CheckerTestSuite) TestSuiteCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewSuite(s.newChecker(time.Second), "testdata", s.logger).Run(ctx)
	s.Error(err)
	s.Require().NotNil(report)
	s.Empty(report.Results)
}

func TestCheckerTestSuite(t *testing.T) {
	suite.Run(t, new(CheckerTestSuite))
}

func TestNewCheckerMissingWave(t *testing.T) {
	runner := kaldi.NewRunner(kaldi.Locator{}, time.Second, nil)
	_, err := NewChecker(runner, filepath.Join(t.TempDir(), "missing.wav"), nil)
	require.Error(t, err)
}
