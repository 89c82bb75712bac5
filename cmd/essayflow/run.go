package main

import (
	"os"

	"github.com/aretw0/essayflow/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Write and evaluate essays in the terminal",
	Long: `Starts a session, shows the topic and the live workflow graph, and reads
essays from standard input. An essay ends with a line containing only ".".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return cli.Execute(cmd.Context(), cli.RunOptions{
			Config:      cfg,
			In:          cmd.InOrStdin(),
			Out:         cmd.OutOrStdout(),
			Interactive: isTerminal(os.Stdin) && cmd.InOrStdin() == os.Stdin,
			Plain:       plain || !isTerminal(os.Stdout),
		})
	},
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBackendFlags(runCmd)
	runCmd.Flags().Bool("plain", false, "Disable colors on the graph board")

	// Running without a subcommand starts the console.
	rootCmd.RunE = runCmd.RunE
	addBackendFlags(rootCmd)
	rootCmd.Flags().Bool("plain", false, "Disable colors on the graph board")
}
