package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arct1cx/bookfetch/internal/app"
)

// newServeCmd creates and configures the 'serve' subcommand, which runs the
// HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the book discovery and retrieval API",
		RunE:  runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	application, err := app.New(cfgFile)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}
