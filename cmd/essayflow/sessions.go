package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/essayflow/internal/cli"
	"github.com/spf13/cobra"
)

var errNoStore = errors.New("no session store configured (store.driver is none)")

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List, inspect, and remove session snapshots kept in the configured store.
The memory store only lives as long as one process, so use --redis to
reach sessions of other processes.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(p *cli.Persistence) error {
			ids, err := p.Store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No stored sessions found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, "- "+id)
			}
			return nil
		})
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(p *cli.Persistence) error {
			snap, err := p.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load session %q: %w", args[0], err)
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(p *cli.Persistence) error {
			var errs []error
			for _, id := range args {
				if err := p.Store.Delete(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("remove %q: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
			return errors.Join(errs...)
		})
	},
}

func withStore(cmd *cobra.Command, fn func(p *cli.Persistence) error) error {
	p, err := cli.OpenPersistence(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer p.Close()
	if p.Store == nil {
		return errNoStore
	}
	return fn(p)
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
}
