package main

import (
	"fmt"

	"github.com/aretw0/essayflow/internal/cli"
	"github.com/aretw0/essayflow/internal/presentation/graph"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/projector"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph as Mermaid",
	Long: `Prints a Mermaid flowchart of the essay workflow. With --session the
node status and scores of a stored session are overlaid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("session")

		var snap domain.Snapshot
		if id == "" {
			proj := projector.New()
			defer proj.Close()
			snap = proj.Snapshot()
		} else {
			p, err := cli.OpenPersistence(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.Store == nil {
				return errNoStore
			}
			if snap, err = p.Store.Load(cmd.Context(), id); err != nil {
				return fmt.Errorf("load session %q: %w", id, err)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(&snap))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Overlay the state of a stored session")
}
