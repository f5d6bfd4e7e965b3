// Command analysisctl is the operator tool for the analysis intake: it signs
// and replays engine deliveries and checks mapping files before rollout.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "analysisctl",
		Short: "Operator tooling for analysis webhooks and mappings",
		Example: `  # Sign a payload the way the engine does
  $ analysisctl sign --secret $ANALYSIS_WEBHOOK_SECRET --file result.json

  # Replay a stored delivery against a running API
  $ analysisctl deliver --url http://localhost:8080/api/v1/webhooks/analysis --file result.json

  # Check a mapping file before deploying it
  $ analysisctl mappings validate ./mappings.yaml`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newSignCmd())
	root.AddCommand(newDeliverCmd())
	root.AddCommand(newMappingsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
