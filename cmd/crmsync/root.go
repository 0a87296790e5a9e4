package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/JonMunkholm/crmsync/internal/store"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "crmsync",
		Short:         "Import and export CRM leads and meetings as CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.envFile != "" {
				if err := godotenv.Overload(opts.envFile); err != nil {
					slog.Debug("no env file loaded", "file", opts.envFile, "error", err)
				}
			}
			// Logs go to stderr so exports can be piped from stdout.
			logging.SetupWriter(os.Stderr, opts.logLevel, "text")
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Env file to load before reading configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newImportCmd(),
		newExportCmd(),
		newTemplateCmd(),
		newEntitiesCmd(),
		newAuditCmd(),
	)
	return cmd
}

// openService loads configuration, opens the configured store and builds a
// Service on it. The returned function closes the store.
func openService(ctx context.Context) (*core.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
	}

	backend, closeStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, withCode(exitStore, err)
	}

	service, err := core.NewService(backend, backend, cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	service.SetAuditLogger(backend)
	return service, closeStore, nil
}

func lookupEntity(entity string) (*core.Schema, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return schema, nil
}
