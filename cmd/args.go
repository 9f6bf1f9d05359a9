package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/kaldi-compliance/internal/app"
)

// argsCmd represents the args command
var argsCmd = &cobra.Command{
	Use:   "args <fbank|spectrogram|mfcc>",
	Short: "Print the Kaldi command line of every case",
	Long: `Print, one per line, the Kaldi command the suite runs for each parameter
set of a feature kind. Useful to reproduce a failing case by hand:

  kaldi-compliance args mfcc | sed -n 3p
  echo "foo kaldi_file.wav" | compute-mfcc-feats --dither=0.0 ... scp:- ark,t:-`,
	ValidArgs: []string{"fbank", "spectrogram", "mfcc"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runArgs,
}

func init() {
	rootCmd.AddCommand(argsCmd)

	argsCmd.Flags().StringVar(&paramsDir, "params-dir", "",
		"directory holding kaldi_test_<kind>_args.jsonl")
}

func runArgs(cmd *cobra.Command, args []string) error {
	application, err := app.NewComplianceApp(newAppContext(nil))
	if err != nil {
		return err
	}

	commands, err := application.Commands(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, command := range commands {
		fmt.Fprintln(out, strings.Join(command, " "))
	}
	return nil
}
