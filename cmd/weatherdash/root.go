package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/app"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/config"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/prefs"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	PrefsPath  string
	Verbose    bool
}

func (o *RootOptions) app() app.Options {
	return app.Options{
		ConfigPath: o.ConfigPath,
		PrefsPath:  o.PrefsPath,
		Verbose:    o.Verbose,
	}
}

// NewRootCommand creates the weatherdash command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "weatherdash",
		Short:         "Terminal dashboard for a weather station",
		Long:          "Signs in to the station backend and follows its latest sensor reading.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), opts.app())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.PrefsPath, "prefs", "", "preferences file (default prefs_file from config, else "+prefs.DefaultPath()+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newThemeCommand(opts))

	return cmd
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print reading and sign-in changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.Watch(cmd.Context(), opts.app(), cmd.OutOrStdout())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newLoginCommand(opts *RootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long:  "Signs in with --email and a password read from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			principal, err := app.Login(cmd.Context(), opts.app(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", principal.Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Logout(opts.app()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newThemeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [toggle]",
		Short:     "Print or toggle the saved theme",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			theme, err := app.Theme(opts.app(), len(args) == 1)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty; pipe it on stdin")
	}
	return password, nil
}
