package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/config"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/logging"
)

// flagValues holds the persistent flags. Only flags the user actually set
// override the config file and environment.
type flagValues struct {
	configPath  string
	addr        string
	dbDriver    string
	dbPath      string
	databaseURL string
	logLevel    string
	logFormat   string
}

// newRootCmd builds the command tree. Running the root command with no
// subcommand is the same as `serve`.
func newRootCmd() *cobra.Command {
	flags := &flagValues{}

	root := &cobra.Command{
		Use:   "smartnotes",
		Short: "Personal notes API with JWT authentication",
		Long: `SmartNotes stores per-user notes with tags, reminders and
pinned/favorite/archived flags behind a JSON HTTP API.
Data lives in SQLite (default) or PostgreSQL.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file (env "+config.ConfigPathEnv+")")
	pf.StringVar(&flags.addr, "addr", "", "listen address, e.g. :8080")
	pf.StringVar(&flags.dbDriver, "db-driver", "", "database driver: sqlite or postgres")
	pf.StringVar(&flags.dbPath, "db-path", "", "SQLite database file")
	pf.StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL connection URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "text or json")

	root.AddCommand(newServeCmd(flags), newMigrateCmd(flags))
	return root
}

// Execute runs the CLI and exits non-zero on failure. Called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig layers defaults, file, environment and the flags that were
// set, then validates the result.
func loadConfig(cmd *cobra.Command, flags *flagValues, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, lookup)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, flags *flagValues, cfg *config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("addr") {
		cfg.Addr = flags.addr
	}
	if set("db-driver") {
		cfg.Storage.Driver = flags.dbDriver
	}
	if set("db-path") {
		cfg.Storage.SQLitePath = flags.dbPath
	}
	if set("database-url") {
		cfg.Storage.PostgresDSN = flags.databaseURL
	}
	if set("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = flags.logFormat
	}
}

// newLogger builds the process logger and makes it the slog default so
// helpers that log through the package functions share its handler.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
