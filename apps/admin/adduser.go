package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/gradebook/core/user"
)

// addUserCmd creates a user of a school. The password is prompted.
func (cli *commandLine) addUserCmd() *cobra.Command {
	var schoolCode string
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			school, err := cli.school(cmd.Context(), schoolCode)
			if err != nil {
				return err
			}
			if nu.Password, err = cli.promptPassword(); err != nil {
				return err
			}
			nu.SchoolID = school.ID

			usr, err := cli.usrSvc.Create(cmd.Context(), nu)
			if err != nil {
				return errors.Wrap(err, "creating user")
			}
			cli.printf("%s %s created: %s\n", usr.Role, usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&schoolCode, "school", "", "the school's code")
	cmd.Flags().StringVar(&nu.Email, "email", "", "the user's email")
	cmd.Flags().StringVar(&nu.FirstName, "first", "", "the user's first name")
	cmd.Flags().StringVar(&nu.LastName, "last", "", "the user's last name")
	cmd.Flags().StringVar(&nu.Role, "role", "", "admin, teacher or student")
	for _, name := range []string{"school", "email", "first", "last", "role"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
