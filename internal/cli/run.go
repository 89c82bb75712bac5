package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/config"
	"github.com/aretw0/essayflow/internal/presentation/tui"
	"github.com/muesli/termenv"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config config.Config
	In     io.Reader
	Out    io.Writer
	// Interactive prints the banner and input hints.
	Interactive bool
	// Plain disables colors on the status board.
	Plain bool
}

// Execute runs one interactive console conversation. An interrupted run is
// not an error.
func Execute(ctx context.Context, opts RunOptions) error {
	logger, err := NewLogger(opts.Config.Log)
	if err != nil {
		return err
	}

	p, err := OpenPersistence(ctx, opts.Config.Store)
	if err != nil {
		return err
	}
	defer p.Close()

	var board *tui.Board
	if opts.Plain {
		board = tui.NewBoard(opts.Out, termenv.Ascii)
	} else {
		board = tui.NewBoard(opts.Out)
	}
	console := NewConsole(opts.In, opts.Out,
		WithMarkdown(tui.NewRenderer()),
		WithHints(opts.Interactive),
	)

	engineOpts := append(EngineOptions(opts.Config, logger, p),
		essayflow.WithRenderer(board),
		essayflow.WithEssaySurface(console),
		essayflow.WithFeedbackSurface(console),
		essayflow.WithResultSurface(console),
	)
	eng, err := essayflow.New(opts.Config.Backend.URL, engineOpts...)
	if err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}
	defer eng.Close()

	if opts.Interactive {
		tui.PrintBanner(opts.Out)
	}
	return handleExecutionError(console.Run(ctx, eng))
}

func handleExecutionError(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
