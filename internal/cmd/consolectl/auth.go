package consolectl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"github.com/spf13/cobra"
)

func (c *cli) loginCommand() *cobra.Command {
	var username string
	var passwordStdin, remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, a *app) error {
				password := ""
				if passwordStdin {
					line, err := readLine(bufio.NewReader(c.opts.In))
					if err != nil {
						return fmt.Errorf("read password: %w", err)
					}
					password = line
				}

				rememberSet := cmd.Flags().Changed("remember")
				if saved, err := a.store.Remembered(); err == nil && saved != nil {
					if username == "" {
						username = saved.Username
					}
					if password == "" && username == saved.Username {
						password = saved.Password
					}
					if !rememberSet {
						remember = true
					}
				}

				if username == "" || password == "" {
					if !c.opts.Interactive() {
						return errors.New("username and password are required, use --username and --password-stdin")
					}
					var err error
					username, password, remember, err = c.opts.Prompter.Credentials(username, password, remember)
					if err != nil {
						return err
					}
				}

				if err := a.session.Login(ctx, strings.TrimSpace(username), password, remember); err != nil {
					if errors.Is(err, session.ErrInFlight) {
						return err
					}
					return fmt.Errorf("login failed: %s", apiclient.MessageOf(err))
				}
				id := a.session.Identity()
				name := username
				if id.UserInfo != nil {
					name = id.UserInfo.DisplayName()
				}
				a.success("Signed in as %s (%s)", name, roleList(id.Roles))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&remember, "remember", false, "remember the credentials on this machine")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and drop the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, a *app) error {
				if !a.session.Snapshot().IsLoggedIn {
					fmt.Fprintln(a.out, "Not signed in")
					return nil
				}
				if err := a.session.Logout(ctx); err != nil {
					return fmt.Errorf("clear local session: %w", err)
				}
				a.success("Signed out")
				return nil
			})
		},
	}
}

func (c *cli) passwdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Long: "Change the account password. Prompts on a terminal; otherwise reads the\n" +
			"current, new and confirmed password from three lines of stdin.\n" +
			"The session ends afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				oldPassword, newPassword, confirm, err := c.passwordInput()
				if err != nil {
					return err
				}
				if err := a.session.ChangePassword(ctx, oldPassword, newPassword, confirm); err != nil {
					return a.apiFailure(err)
				}
				a.success("Password updated, sign in again with the new password")
				return nil
			})
		},
	}
}

func (c *cli) passwordInput() (string, string, string, error) {
	if c.opts.Interactive() {
		return c.opts.Prompter.PasswordChange()
	}
	reader := bufio.NewReader(c.opts.In)
	values := make([]string, 3)
	for i := range values {
		line, err := readLine(reader)
		if err != nil {
			return "", "", "", fmt.Errorf("read password %d of 3: %w", i+1, err)
		}
		values[i] = line
	}
	return values[0], values[1], values[2], nil
}

func (c *cli) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the session and any remembered credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				if !c.opts.Interactive() {
					return errors.New("refusing to reset without --yes")
				}
				ok, err := c.opts.Prompter.Confirm("Forget the stored session and remembered credentials?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(c.opts.Out, "Nothing changed")
					return nil
				}
			}
			return c.with(cmd, func(_ context.Context, a *app) error {
				if err := a.store.Reset(); err != nil {
					return fmt.Errorf("reset credential store: %w", err)
				}
				a.success("Local credentials cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
