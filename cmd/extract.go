package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/kaldi-compliance/internal/app"
)

var (
	extractParams []string
	extractFormat string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <fbank|spectrogram|mfcc> <wav-file>",
	Short: "Compute a feature matrix with the library",
	Long: `Compute one feature matrix for a WAV file with the feature library and
print it. Options use Kaldi's snake_case names and are given as key=value.
The matrix is printed as a Kaldi text archive by default, which makes it
easy to diff against copy-feats ark:- ark,t:- output.

Examples:
  kaldi-compliance extract fbank speech.wav --param num_mel_bins=40
  kaldi-compliance extract mfcc speech.wav --param htk_compat=true --format json`,
	Args: cobra.ExactArgs(2),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringArrayVarP(&extractParams, "param", "p", nil,
		"feature option as key=value, repeatable")
	extractCmd.Flags().StringVar(&extractFormat, "format", "ark",
		"matrix format (ark, json, yaml)")
	extractCmd.Flags().StringVar(&uttKey, "key", "",
		"utterance key written in ark output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	params, err := app.ParseParamOverrides(extractParams)
	if err != nil {
		return err
	}

	application, err := app.NewComplianceApp(newAppContext(nil))
	if err != nil {
		return err
	}

	return application.Extract(args[0], args[1], params, extractFormat)
}
