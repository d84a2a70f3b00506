package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"matching-workers/internal/common/validation"
	"matching-workers/pkg/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry",
	}

	var path string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that a registry file parses and every input schema compiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				reg *registry.ActivityRegistry
				err error
			)
			if path == "" {
				reg, err = registry.Builtin()
			} else {
				reg, err = registry.LoadRegistry(path)
			}
			if err != nil {
				return err
			}
			if _, err := validation.NewValidator(reg); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK TYPE\tVERSION\tTIMEOUT\tRETRIES\tSTATUS")
			for _, taskType := range reg.TaskTypes() {
				a, _ := reg.Find(taskType)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.TaskType, a.Version, a.Timeout, a.Retries, a.ImplementationStatus)
			}
			return tw.Flush()
		},
	}
	validate.Flags().StringVarP(&path, "path", "p", "", "registry file (default is the embedded registry)")

	cmd.AddCommand(validate)
	return cmd
}
