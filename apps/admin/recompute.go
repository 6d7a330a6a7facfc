package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/gradebook/core/tenant"
)

// recomputeCmd refreshes the statistics and positions of every cohort of a school.
func (cli *commandLine) recomputeCmd() *cobra.Command {
	var schoolCode string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute class statistics and positions of a school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			school, err := cli.school(cmd.Context(), schoolCode)
			if err != nil {
				return err
			}
			p := tenant.Principal{SchoolID: school.ID, Role: tenant.RoleAdmin}
			n, err := cli.engine.RecomputeSchool(cmd.Context(), p, concurrency)
			if err != nil {
				return errors.Wrap(err, "recomputing school")
			}
			cli.printf("%d cohorts recomputed\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&schoolCode, "school", "", "the school's code")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "cohorts recomputed at once")
	_ = cmd.MarkFlagRequired("school")
	return cmd
}
