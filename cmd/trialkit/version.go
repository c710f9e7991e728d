package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/trialkit"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of trialkit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trialkit version %s\n", strings.TrimSpace(trialkit.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
