package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/cli"
	"github.com/aretw0/essayflow/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cfg is resolved once per invocation by the root PersistentPreRunE.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "essayflow",
	Short: "essayflow drives an essay evaluation workflow and shows its graph live",
	Long: `essayflow talks to an essay evaluation service, projects its step stream
onto a workflow graph and lets you write, revise and resubmit essays.

Configuration is read from defaults, an optional YAML file (--config),
a .env file and ESSAYFLOW_* environment variables, then flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The context is cancelled on interrupt or terminate signals.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("redis", "", "Keep sessions in redis at this address")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before configuration")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	path, _ := flags.GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if v, _ := flags.GetString("log-level"); v != "" {
		loaded.Log.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		loaded.Log.Format = v
	}
	if v, _ := flags.GetString("redis"); v != "" {
		loaded.Store.Driver = config.StoreRedis
		loaded.Store.Redis.Addr = v
	}
	if flags.Lookup("sim") != nil && flags.Changed("sim") {
		loaded.Backend.Sim, _ = flags.GetBool("sim")
	}
	if flags.Lookup("backend") != nil && flags.Changed("backend") {
		loaded.Backend.URL, _ = flags.GetString("backend")
	}
	if flags.Lookup("latency") != nil && flags.Changed("latency") {
		loaded.Backend.Latency, _ = flags.GetDuration("latency")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// engineDeps is what the long-running commands share.
type engineDeps struct {
	engine      *essayflow.Engine
	persistence *cli.Persistence
	logger      *slog.Logger
}

func (d *engineDeps) Close() error {
	return errors.Join(d.engine.Close(), d.persistence.Close())
}

func newEngine(ctx context.Context, extra ...essayflow.Option) (*engineDeps, error) {
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	p, err := cli.OpenPersistence(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	eng, err := essayflow.New(cfg.Backend.URL, append(cli.EngineOptions(cfg, logger, p), extra...)...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error initializing engine: %w", err), p.Close())
	}
	return &engineDeps{engine: eng, persistence: p, logger: logger}, nil
}

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("sim", false, "Use the built-in simulated evaluation service")
	cmd.Flags().String("backend", "", "Base URL of the evaluation service")
	cmd.Flags().Duration("latency", 0, "Delay between simulated step records")
}
