package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matching-workers/internal/common/database"
	"matching-workers/internal/matching/cache"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the shared ranking cache",
	}

	var tenant string
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove every shared ranking of a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			rdb := database.NewRedis(cfg.Database.Redis)
			defer rdb.Close()
			if err := rdb.Ping(cmd.Context()); err != nil {
				return err
			}

			n, err := cache.NewRedisStore(rdb.Client).PurgeTenant(cmd.Context(), cfg.Matching.Cache.KeyPrefix, tenant)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached ranking(s) for tenant %s\n", n, tenant)
			return nil
		},
	}
	purge.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant id (required)")
	_ = purge.MarkFlagRequired("tenant")

	cmd.AddCommand(purge)
	return cmd
}
