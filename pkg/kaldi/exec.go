package kaldi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// DefaultKey is the utterance key fed to Kaldi and looked up in its output
const DefaultKey = "foo"

// pipeWaitDelay bounds how long Run waits for stdout and stderr to close
// once the tool has been killed
const pipeWaitDelay = 500 * time.Millisecond

// Locator finds Kaldi executables. Lookup order is BinDir, $PATH, then
// <KaldiRoot>/src/featbin, with KaldiRoot falling back to $KALDI_ROOT.
type Locator struct {
	BinDir    string
	KaldiRoot string
}

// Find resolves an executable name to a path
func (l Locator) Find(name string) (string, error) {
	if l.BinDir != "" {
		if path, ok := executable(filepath.Join(l.BinDir, name)); ok {
			return path, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	root := l.KaldiRoot
	if root == "" {
		root = os.Getenv("KALDI_ROOT")
	}
	if root != "" {
		if path, ok := executable(filepath.Join(root, "src", "featbin", name)); ok {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

// Available reports whether Find would succeed
func (l Locator) Available(name string) bool {
	_, err := l.Find(name)
	return err == nil
}

func executable(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return "", false
	}
	return path, true
}

// InputType selects how the waveform reaches the Kaldi tool's stdin
type InputType string

const (
	InputScp InputType = "scp"
	InputArk InputType = "ark"
)

// Input is what gets written to the tool's stdin under the runner's key
type Input struct {
	Type   InputType
	Path   string      // scp: the rxfilename
	Matrix [][]float64 // ark: the matrix to encode
}

func ScpInput(path string) Input {
	return Input{Type: InputScp, Path: path}
}

func ArkInput(m [][]float64) Input {
	return Input{Type: InputArk, Matrix: m}
}

// Runner executes Kaldi command-line tools and decodes their archive output
type Runner struct {
	locator Locator
	timeout time.Duration
	key     string
	logger  logging.Logger
}

func NewRunner(locator Locator, timeout time.Duration, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Runner{
		locator: locator,
		timeout: timeout,
		key:     DefaultKey,
		logger:  logger.WithFields(logging.Fields{"component": "kaldi_runner"}),
	}
}

// WithKey returns a copy of the runner using a different utterance key
func (r *Runner) WithKey(key string) *Runner {
	clone := *r
	clone.key = key
	return &clone
}

// Locator returns the locator the runner resolves executables with
func (r *Runner) Locator() Locator {
	return r.locator
}

// Run executes command, feeds input on stdin and returns the matrix stored
// under the runner's key in the archive written to stdout
func (r *Runner) Run(ctx context.Context, command []string, input Input) ([][]float64, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}
	name := command[0]

	path, err := r.locator.Find(name)
	if err != nil {
		return nil, NewError(ErrCodeNotFound, name, "cannot run command", err)
	}

	var stdin bytes.Buffer
	switch input.Type {
	case InputScp:
		fmt.Fprintf(&stdin, "%s %s\n", r.key, input.Path)
	case InputArk:
		if err := WriteMatrix(&stdin, r.key, input.Matrix); err != nil {
			return nil, fmt.Errorf("failed to encode ark input: %w", err)
		}
	default:
		return nil, fmt.Errorf("unexpected input type %q", input.Type)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger := r.logger.WithFields(logging.Fields{
		"command": name,
		"input":   string(input.Type),
	})
	logger.Debug("Running Kaldi command", logging.Fields{
		"args": strings.Join(command[1:], " "),
	})

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, command[1:]...)
	cmd.Stdin = &stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay
	isolateProcess(cmd)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return nil, NewError(ErrCodeTimeout, name,
				fmt.Sprintf("command timed out after %s", time.Since(start).Round(time.Millisecond)), ctxErr)
		case ctxErr != nil:
			return nil, NewError(ErrCodeCanceled, name, "command canceled", ctxErr)
		}
		kerr := NewError(ErrCodeExec, name, "command failed", err)
		kerr.Stderr = strings.TrimSpace(stderr.String())
		return nil, kerr
	}

	entries, err := ReadArk(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", name, err)
	}

	for _, entry := range entries {
		if entry.Key == r.key {
			logger.Debug("Kaldi command completed", logging.Fields{
				"rows":        len(entry.Matrix),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			return entry.Matrix, nil
		}
	}

	kerr := NewError(ErrCodeMissingKey, name, fmt.Sprintf("no output for key %q", r.key), nil)
	kerr.Stderr = strings.TrimSpace(stderr.String())
	return nil, kerr
}
