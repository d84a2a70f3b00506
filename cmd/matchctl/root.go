package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"matching-workers/internal/common/config"
	"matching-workers/internal/common/database"
	"matching-workers/internal/common/logger"
)

const app = "matchctl"

// Actual version can be specified in build command.
var version = "unknown"

type rootOptions struct {
	cfgFile string
	debug   bool
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          app,
		Short:        "matchctl runs matching operations outside the workflow engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "a config file (default is configs/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "json format for logging")

	root.AddCommand(
		newMigrateCmd(opts),
		newRunCmd(opts),
		newCacheCmd(opts),
		newRegistryCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
		},
	}
}

func (o *rootOptions) logger() logger.Logger {
	level, format := "info", "console"
	if o.debug {
		level = "debug"
	}
	if o.json {
		format = "json"
	}
	return logger.NewStructured(level, format)
}

func (o *rootOptions) config() (*config.Config, error) {
	if o.cfgFile != "" {
		return config.LoadFromFile(o.cfgFile)
	}
	return config.Load()
}

// openPostgres loads the configuration and connects to the matching database.
func (o *rootOptions) openPostgres(ctx context.Context) (*config.Config, *database.PostgresClient, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return cfg, pg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
