package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/server"
)

func newServeCmd(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Long: `Run the HTTP API. Pending schema migrations are applied at startup.
The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *flagValues) error {
	cfg, err := loadConfig(cmd, flags, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until ctx is cancelled (Ctrl+C or SIGTERM).
	return srv.Start(ctx)
}
