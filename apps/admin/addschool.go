package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/gradebook/core/user"
)

func (cli *commandLine) addSchoolCmd() *cobra.Command {
	var ns user.NewSchool
	cmd := &cobra.Command{
		Use:   "addschool",
		Short: "Register a school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			school, err := cli.usrSvc.CreateSchool(cmd.Context(), ns)
			if err != nil {
				return errors.Wrap(err, "creating school")
			}
			cli.printf("school %q created: %s\n", school.Code, school.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ns.Name, "name", "", "the school's name")
	cmd.Flags().StringVar(&ns.Code, "code", "", "the school's login code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
