package main

import (
	"context"
	"errors"

	"github.com/aretw0/trialkit"
	"github.com/aretw0/trialkit/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cueing demo task",
	Long: `Runs the spatial cueing task headless in qa or sim mode, writing
trials.jsonl and audit.jsonl under <output-dir>/<session-id>.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{Version: trialkit.Version}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.Mode, _ = cmd.Flags().GetString("mode")
		opts.Trials, _ = cmd.Flags().GetInt("trials")
		opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
		opts.Responder, _ = cmd.Flags().GetString("responder")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			opts.Seed = &seed
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		_, err := cli.Execute(ctx, opts, cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) && ctx.Signal() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("mode", "", "Run mode: qa or sim")
	runCmd.Flags().Int64("seed", 0, "Session seed")
	runCmd.Flags().Int("trials", 0, "Number of trials")
	runCmd.Flags().StringP("output-dir", "o", "", "Directory for session output")
	runCmd.Flags().String("responder", "", "Responder name (scripted, null, http)")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress banner and summary")
}
