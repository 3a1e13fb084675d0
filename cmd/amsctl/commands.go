package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"

	"github.com/spf13/cobra"
)

// cliNavigator переводит запрошенные посредником переходы в подсказки в stderr.
func cliNavigator(loginPath string) navigation.Navigator {
	return navigation.Func(func(_ context.Context, to navigation.Target) {
		if to.Path == loginPath {
			fmt.Fprintln(os.Stderr, "session ended: run `amsctl login`")
			return
		}
		fmt.Fprintf(os.Stderr, "access denied (%s)\n", to.Path)
	})
}

// withApp собирает зависимости, выполняет fn и корректно всё закрывает.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, opts, nil, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx = log.With(log.Into(ctx, a.log), slog.String("cmd", cmd.Name()))

	return fn(ctx, a)
}

func loginCmd(opts *rootOptions) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Exchange username and password for a token pair and store it.

Examples:
  amsctl login -u admin
  echo "$PASS" | amsctl login -u admin --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				in := bufio.NewReader(cmd.InOrStdin())

				if username == "" {
					u, err := prompt(in, cmd.ErrOrStderr(), "Username: ")
					if err != nil {
						return err
					}
					username = u
				}

				var (
					password string
					err      error
				)
				if passwordStdin {
					password, err = readLine(in)
				} else {
					password, err = prompt(in, cmd.ErrOrStderr(), "Password: ")
				}
				if err != nil {
					return err
				}

				c, err := a.session.Login(ctx, username, password)
				if err != nil {
					return loginHint(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", c.Username, c.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

func logoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and revoke the refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				a.session.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func whoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session (without tokens)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := models.Whoami{}
				if c, ok := a.session.Credentials(); ok && a.session.IsAuthenticated() {
					out = models.Whoami{Authenticated: true, Username: c.Username, Role: c.Role}
					if c.HasExpiry() {
						exp := c.ExpiresAt
						out.ExpiresAt = &exp
					}
				}

				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func refreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				c, err := a.session.Refresh(ctx)
				if err != nil {
					if errors.Is(err, session.ErrRefreshRejected) || errors.Is(err, session.ErrNoRefreshToken) {
						a.session.Invalidate(ctx, "refresh_rejected")
						return fmt.Errorf("%w: run `amsctl login`", err)
					}
					return err
				}

				if c.HasExpiry() {
					fmt.Fprintf(cmd.OutOrStdout(), "refreshed, expires at %s\n", c.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "refreshed")
				return nil
			})
		},
	}
}

func getCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET a protected API resource",
		Long: `GET a path relative to the API base URL with the session's bearer token.
A 401 triggers one refresh and one retry.

Examples:
  amsctl get /employees
  amsctl get "attendance?date=2024-05-01"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var raw json.RawMessage
				if err := a.api.Get(ctx, args[0], &raw); err != nil {
					switch {
					case errors.Is(err, clients.ErrUnauthorized):
						return fmt.Errorf("%w: run `amsctl login`", err)
					case errors.Is(err, clients.ErrForbidden):
						return fmt.Errorf("%w: role %q cannot access %s", err, a.session.Role(), args[0])
					}
					return err
				}

				if len(raw) == 0 {
					return nil
				}
				return printJSON(cmd.OutOrStdout(), raw)
			})
		},
	}
}

// errNoUpstream — api.grpc_addr не задан.
var errNoUpstream = errors.New("grpc upstream is not configured (api.grpc_addr)")

func pingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the gRPC upstream health under the current session",
		Long: `Call grpc.health.v1.Health/Check on api.grpc_addr with the session's
bearer token. Unauthenticated triggers one refresh and one retry.

Examples:
  API_GRPC_ADDR=localhost:9090 amsctl ping`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if a.upstream == nil {
					return errNoUpstream
				}

				if err := a.upstream.Check(ctx); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: serving\n", a.cfg.API.GRPCAddr)
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:      %s\n", date)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	return cmd
}

func loginHint(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return errors.New("invalid username or password")
	case errors.Is(err, session.ErrAccountDisabled):
		return errors.New("account is inactive")
	case errors.Is(err, session.ErrUnreachable):
		return fmt.Errorf("backend is unreachable: %w", err)
	}

	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
