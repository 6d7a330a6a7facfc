package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var schoolCode, email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password will be prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err = cli.usrSvc.ResetPassword(cmd.Context(), schoolCode, email, pwd); err != nil {
				return errors.Wrap(err, "resetting password")
			}
			cli.printf("password updated\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&schoolCode, "school", "", "the school's code")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	_ = cmd.MarkFlagRequired("school")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
