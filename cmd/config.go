package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/kaldi-compliance/configs"
	"github.com/RyanBlaney/kaldi-compliance/internal/app"
)

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or generate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write an example configuration file with every default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.GenerateExampleConfig(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to: %s\n", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configs.LoadConfig()
		if err != nil {
			return err
		}
		if err := configs.ValidateConfig(cfg); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if used := GetConfig().ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "config file:   %s\n", used)
		}
		fmt.Fprintf(out, "log level:     %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "output format: %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "utterance key: %s\n", cfg.UtteranceKey)
		fmt.Fprintf(out, "kaldi bin dir: %s\n", cfg.Kaldi.BinDir)
		fmt.Fprintf(out, "kaldi root:    %s\n", cfg.Kaldi.Root)
		fmt.Fprintf(out, "kaldi timeout: %s\n", cfg.Kaldi.Timeout)
		fmt.Fprintf(out, "params dir:    %s\n", cfg.Data.ParamsDir)
		fmt.Fprintf(out, "wave file:     %s\n", cfg.Data.WaveFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	addKaldiFlags(configShowCmd)
}
