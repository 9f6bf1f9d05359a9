package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/kaldi-compliance/internal/app"
)

var (
	// Flags shared by the commands that talk to Kaldi or read the assets
	binDir    string
	kaldiRoot string
	timeout   time.Duration
	paramsDir string
	waveFile  string
	uttKey    string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [fbank|spectrogram|mfcc...]",
	Short: "Compare feature output against Kaldi",
	Long: `Run every parameter set of the selected feature kinds (all kinds when none
are given) through the feature library and the matching Kaldi executable,
then report which cases match within tolerance.

Tolerances are fixed per feature:
  fbank        rtol 1e-4  atol 1e-8
  spectrogram  rtol 1e-4  atol 1e-6
  mfcc         rtol 1e-4  atol 1e-5

Examples:
  # Check everything with Kaldi on $PATH
  kaldi-compliance check

  # Only mfcc, with Kaldi built under /opt/kaldi
  kaldi-compliance check mfcc --kaldi-root /opt/kaldi

  # Machine readable report
  kaldi-compliance check -o json --output-file report.json`,
	ValidArgs: []string{"fbank", "spectrogram", "mfcc"},
	Args:      cobra.OnlyValidArgs,
	RunE:      runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addKaldiFlags(checkCmd)
}

// addKaldiFlags registers the Kaldi and asset location flags on a command
func addKaldiFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&binDir, "bin-dir", "",
		"directory holding the Kaldi feature binaries")
	cmd.Flags().StringVar(&kaldiRoot, "kaldi-root", "",
		"Kaldi checkout, binaries are looked up in <root>/src/featbin (default $KALDI_ROOT)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0,
		"timeout for a single Kaldi invocation (default 60s)")
	cmd.Flags().StringVar(&paramsDir, "params-dir", "",
		"directory holding kaldi_test_<kind>_args.jsonl")
	cmd.Flags().StringVar(&waveFile, "wave-file", "",
		"waveform asset fed to both implementations")
	cmd.Flags().StringVar(&uttKey, "key", "",
		"utterance key used in the scp and ark streams")
}

func newAppContext(kinds []string) *app.Context {
	return &app.Context{
		ConfigFile:   configFile,
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
		Kinds:        kinds,
		Timeout:      timeout,
		BinDir:       binDir,
		KaldiRoot:    kaldiRoot,
		UtteranceKey: uttKey,
		ParamsDir:    paramsDir,
		WaveFile:     waveFile,
		Verbose:      verbose,
		Quiet:        quiet,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	application, err := app.NewComplianceApp(newAppContext(args))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return application.Run(ctx)
}
