package cli

import (
	"github.com/jrsteele09/go-password-auth/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addCredentialFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().StringP("username", "u", "", "account username")
	cmd.Flags().StringP("password", "p", "", "account password")
	// bound at run time, register and users share the keys
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return bindFlags(v, cmd.Flags(), "username", "password")
	}
}

func newRegisterCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, password, err := credentials(v)
			if err != nil {
				return err
			}
			if err := client.ValidateCredentials(username, password, true); err != nil {
				return err
			}

			m, err := newManager(v)
			if err != nil {
				return err
			}
			msg, err := m.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	addCredentialFlags(cmd, v)
	return cmd
}

func newUsersCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Log in and list every registered user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, password, err := credentials(v)
			if err != nil {
				return err
			}
			if err := client.ValidateCredentials(username, password, false); err != nil {
				return err
			}

			m, err := newManager(v)
			if err != nil {
				return err
			}
			msg, err := m.Authenticate(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), msg)

			records, err := m.GetProtectedResource(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), records)
			return nil
		},
	}
	addCredentialFlags(cmd, v)
	return cmd
}

func newShellCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session that keeps its tokens until exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager(v)
			if err != nil {
				return err
			}
			return NewShell(m, cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}
