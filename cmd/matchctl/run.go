package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"matching-workers/internal/bootstrap"
	"matching-workers/internal/common/config"
	"matching-workers/internal/common/database"
	rm "matching-workers/internal/workers/matching/run-matching"
)

type runOptions struct {
	tenant  string
	need    string
	force   bool
	mode    string
	timeout time.Duration
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run matching for one need or every open need of a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatching(cmd, opts, ro)
		},
	}
	cmd.Flags().StringVarP(&ro.tenant, "tenant", "t", "", "tenant id (required)")
	cmd.Flags().StringVarP(&ro.need, "need", "n", "", "need id; every open need when empty")
	cmd.Flags().BoolVarP(&ro.force, "force", "f", false, "recompute instead of serving cached rankings")
	cmd.Flags().StringVarP(&ro.mode, "mode", "m", "", "scorer mode: rule-based or assisted")
	cmd.Flags().DurationVar(&ro.timeout, "timeout", 5*time.Minute, "overall run timeout")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func (ro *runOptions) input() *rm.Input {
	in := &rm.Input{TenantID: ro.tenant, ForceRefresh: ro.force, ScorerMode: ro.mode}
	if ro.need != "" {
		need := ro.need
		in.NeedID = &need
	}
	return in
}

func runMatching(cmd *cobra.Command, opts *rootOptions, ro *runOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
	defer cancel()

	log := opts.logger()
	cfg, pg, err := opts.openPostgres(ctx)
	if err != nil {
		return err
	}
	deps := []database.Dependency{pg}
	backends := bootstrap.Backends{DB: pg.DB}

	if cfg.Matching.Cache.Remote {
		rdb := database.NewRedis(cfg.Database.Redis)
		deps = append(deps, rdb)
		backends.Redis = rdb.Client
	}
	if cfg.Matching.PoolSource == config.PoolSourceElasticsearch {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			_ = database.CloseAll(deps...)
			return err
		}
		deps = append(deps, es)
		backends.Search = es.Client
	}
	defer database.CloseAll(deps...)

	matching, err := bootstrap.NewMatching(ctx, cfg, backends, bootstrap.Telemetry{}, log)
	if err != nil {
		return err
	}

	handler := rm.NewHandler(rm.LoadConfig(), matching.Engine, matching.Validator, log)
	out, err := handler.Execute(ctx, ro.input())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
