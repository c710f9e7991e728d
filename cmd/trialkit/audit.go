package main

import (
	"github.com/aretw0/trialkit/internal/cli"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect audit trails",
}

var verifyCmd = &cobra.Command{
	Use:   "verify <audit.jsonl>",
	Short: "Check that every planned trigger was executed and every action was valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.VerifyOptions{Path: args[0]}
		opts.Markdown, _ = cmd.Flags().GetBool("markdown")
		opts.Width, _ = cmd.Flags().GetInt("width")
		_, err := cli.Verify(opts, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolP("markdown", "m", false, "Print the full markdown report")
	verifyCmd.Flags().Int("width", 100, "Word wrap width for rendered markdown")
}
