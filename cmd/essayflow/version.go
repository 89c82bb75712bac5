package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/essayflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of essayflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "essayflow version %s\n", strings.TrimSpace(essayflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
