package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hitoshi/devdash/internal/clientconfig"
	"github.com/hitoshi/devdash/internal/model"
	"github.com/hitoshi/devdash/internal/storage/local"
)

// passwordEnv はパスワードを非対話で渡すための環境変数。
const passwordEnv = "DEVDASH_PASSWORD"

var errNoRemote = errors.New("remote sync is not configured (set remote.mode to github or api)")

func (a *app) themeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the display theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(model.ThemeLight), string(model.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				current, ok, err := a.local.Get(ctx, local.ThemeKey)
				if err != nil {
					return err
				}
				if !ok || current == "" {
					current = string(model.ThemeLight)
				}
				fmt.Fprintln(out, current)
				return nil
			}

			theme := model.Theme(strings.ToLower(args[0]))
			if !theme.Valid() {
				return fmt.Errorf("unknown theme %q: use light or dark", args[0])
			}
			if err := a.local.Set(ctx, local.ThemeKey, string(theme)); err != nil {
				return err
			}
			if a.api != nil && a.api.Authenticated() {
				if err := a.api.UpdateTheme(ctx, theme); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not update theme on server: %v\n", err)
				}
			}
			fmt.Fprintf(out, "theme set to %s\n", theme)
			return nil
		},
	}
}

func (a *app) remoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect the configured remote",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Check connectivity to the configured remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch a.cfg.Remote.Mode {
			case clientconfig.RemoteGitHub:
				state, err := a.local.Load(ctx)
				if err != nil {
					return err
				}
				if state == nil {
					state = model.NewDashboardState()
				}
				remote, err := a.github.TestConnection(ctx, state)
				if err != nil {
					return fmt.Errorf("github connection failed: %w", err)
				}
				gh := a.cfg.GitHub
				if remote == nil {
					fmt.Fprintf(out, "connected to %s/%s, created %s on %s\n", gh.Owner, gh.Repo, gh.Path, gh.Branch)
					return nil
				}
				fmt.Fprintf(out, "connected to %s/%s, found %s with %d categories\n", gh.Owner, gh.Repo, gh.Path, len(remote.Categories))
				return nil

			case clientconfig.RemoteAPI:
				health, err := a.api.Health(ctx)
				if err != nil {
					return fmt.Errorf("api health check failed: %w", err)
				}
				fmt.Fprintf(out, "server %s: status=%s database=%s\n", a.cfg.API.BaseURL, health["status"], health["database"])
				if !a.api.Authenticated() {
					fmt.Fprintln(out, "not logged in (run devdash login)")
				}
				return nil

			default:
				return errNoRemote
			}
		},
	})
	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the devdash-api backend and store the token locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.api == nil {
				return errors.New("login requires remote.mode=api")
			}
			if email == "" {
				email = a.cfg.API.Email
			}
			if email == "" {
				return errors.New("email is required: pass --email or set api.email")
			}
			password, err := a.readPassword(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := a.api.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.local.Set(ctx, local.TokenKey, res.Token); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", res.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (default api.email)")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored backend token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.local.Delete(cmd.Context(), local.TokenKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (a *app) registerCommand() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the devdash-api backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.api == nil {
				return errors.New("register requires remote.mode=api")
			}
			if email == "" {
				email = a.cfg.API.Email
			}
			password, err := a.readPassword(cmd)
			if err != nil {
				return err
			}
			id, err := a.api.Register(cmd.Context(), username, email, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account created (%s), run devdash login to sign in\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name (3-30 characters)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (default api.email)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword はDEVDASH_PASSWORD、端末からのエコーなし入力、標準入力の1行の順にパスワードを得る。
func (a *app) readPassword(cmd *cobra.Command) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}
