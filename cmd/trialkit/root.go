package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trialkit",
	Short: "trialkit runs psychophysics trials with audited triggers",
	Long: `trialkit runs frame-locked experiment phases on a headless display, emits
event codes to recording equipment and keeps an audit trail that can be verified
offline. Responses come from a participant, a QA bot or a simulated subject.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML run configuration (TRIALKIT_* variables override it)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level to stderr")
}
