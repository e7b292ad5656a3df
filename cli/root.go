// Package cli is the command line front end of the client session manager.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jrsteele09/go-password-auth/client"
	"github.com/jrsteele09/go-password-auth/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix        = "AUTHCLIENT"
	defaultServerURL = "http://localhost:8080"
)

// Exit codes returned by Execute.
const (
	ExitCodeSuccess       = 0
	ExitCodeError         = 1
	ExitCodeCannotConnect = 2
)

// NewRootCmd builds the command tree. Every flag can also be set through an
// AUTHCLIENT_ environment variable, e.g. AUTHCLIENT_SERVER.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "authclient",
		Short:         "Register, log in and list users against the password auth server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if v.GetBool("verbose") {
				level = "debug"
			}
			logging.SetupWriter(cmd.ErrOrStderr(), "DEV", level)
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", defaultServerURL, "authorization server base URL")
	flags.Duration("timeout", 30*time.Second, "timeout of each HTTP request")
	flags.Bool("verbose", false, "log requests and refreshes")
	if err := bindFlags(v, flags, "server", "timeout", "verbose"); err != nil {
		panic(err)
	}

	root.AddCommand(newRegisterCmd(v), newUsersCmd(v), newShellCmd(v))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), text.FgRed.Sprint("Error: "+err.Error()))
		if client.IsCannotConnect(err) {
			return ExitCodeCannotConnect
		}
		return ExitCodeError
	}
	return ExitCodeSuccess
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("[bindFlags] unknown flag %q", name)
		}
		if err := v.BindPFlag(name, flag); err != nil {
			return fmt.Errorf("[bindFlags] %s: %w", name, err)
		}
	}
	return nil
}

func newManager(v *viper.Viper) (*client.Manager, error) {
	return client.New(v.GetString("server"), client.WithTimeout(v.GetDuration("timeout")))
}

// credentials reads the username and password flags. The password has no
// flag default so it can come from AUTHCLIENT_PASSWORD instead of the shell history.
func credentials(v *viper.Viper) (string, string, error) {
	username, password := v.GetString("username"), v.GetString("password")
	if username == "" || password == "" {
		return "", "", errors.New("--username and --password (or AUTHCLIENT_USERNAME and AUTHCLIENT_PASSWORD) are required")
	}
	return username, password, nil
}
