package main

import (
	"context"

	"github.com/aretw0/trialkit/internal/cli"
	"github.com/spf13/cobra"
)

var responderCmd = &cobra.Command{
	Use:   "responder",
	Short: "Work with responders",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a responder over HTTP",
	Long: `Serves the configured responder (or --kind) so that remote runs can use it
through the http responder. Exposes /act, /feedback, /session/*, /events and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts cli.ServeOptions
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.Kind, _ = cmd.Flags().GetString("kind")
		opts.Addr, _ = cmd.Flags().GetString("addr")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.Serve(ctx, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(responderCmd)
	responderCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("kind", "", "Responder name; defaults to sim.responder from the config")
}
