package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"matching-workers/internal/store/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the matching database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, pg, err := opts.openPostgres(cmd.Context())
				if err != nil {
					return err
				}
				defer pg.Close()
				return postgres.Migrate(cmd.Context(), pg.DB, opts.logger())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, pg, err := opts.openPostgres(cmd.Context())
				if err != nil {
					return err
				}
				defer pg.Close()
				return postgres.MigrateDown(cmd.Context(), pg.DB, opts.logger())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, pg, err := opts.openPostgres(cmd.Context())
				if err != nil {
					return err
				}
				defer pg.Close()

				statuses, err := postgres.MigrationStatus(cmd.Context(), pg.DB)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tPATH")
				for _, s := range statuses {
					applied := "-"
					if !s.AppliedAt.IsZero() {
						applied = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}
