package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/server"
)

func newMigrateCmd(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, os.LookupEnv)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			db, err := server.OpenStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Migrate(cmd.Context())
			if err != nil {
				return err
			}

			logger.Info("migrations applied",
				slog.String("driver", string(db.Dialect())),
				slog.Int64("schema_version", version),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
