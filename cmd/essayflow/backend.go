package main

import (
	"github.com/aretw0/essayflow/internal/cli"
	"github.com/aretw0/essayflow/pkg/adapters/sim"
	"github.com/spf13/cobra"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the simulated evaluation service",
	Long: `Serves POST /start and POST /submit-essay with a heuristic scorer, streaming
NDJSON step records like the real service. Useful for demos and for pointing
"essayflow run --backend" at something local.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Backend.Addr
		}
		latency, _ := cmd.Flags().GetDuration("latency")
		if !cmd.Flags().Changed("latency") {
			latency = cfg.Backend.Latency
		}

		logger, err := cli.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		handler := sim.NewHandler(
			sim.NewBackend(sim.WithPassThreshold(cfg.PassThreshold)),
			sim.WithHandlerLatency(latency),
			sim.WithHandlerLogger(logger),
		)
		return listen(cmd.Context(), logger, addr, handler)
	},
}

func init() {
	rootCmd.AddCommand(backendCmd)
	backendCmd.Flags().String("addr", "", "Address to listen on (default from config, :8000)")
	backendCmd.Flags().Duration("latency", 0, "Delay between step records")
}
