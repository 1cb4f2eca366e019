package consolectl

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"github.com/spf13/cobra"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	cardTitleStyle = lipgloss.NewStyle().Bold(true)
	cardKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(13)
)

// whoamiView is the machine-readable whoami output. The token is never
// printed.
type whoamiView struct {
	LoggedIn    bool     `json:"logged_in"`
	Username    string   `json:"username,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	LastLoginAt string   `json:"last_login_at,omitempty"`
}

func newWhoamiView(state session.State, id session.Identity) whoamiView {
	view := whoamiView{LoggedIn: state.IsLoggedIn, Roles: id.Roles, Permissions: id.Permissions.Names()}
	if p := id.UserInfo; p != nil {
		view.Username = p.Username
		view.Nickname = p.Nickname
		view.Email = p.Email
		view.LastLoginAt = p.LastLoginAt
	}
	return view
}

// String renders the profile card.
func (v whoamiView) String() string {
	if !v.LoggedIn {
		return "Not signed in"
	}
	title := v.Nickname
	if title == "" {
		title = v.Username
	}
	if title == "" {
		title = "Signed in"
	}
	lines := []string{cardTitleStyle.Render(title)}
	row := func(key, value string) {
		if value != "" {
			lines = append(lines, cardKeyStyle.Render(key)+value)
		}
	}
	row("Username", v.Username)
	row("Email", v.Email)
	row("Roles", roleList(v.Roles))
	row("Permissions", strings.Join(v.Permissions, ", "))
	row("Last sign-in", v.LastLoginAt)
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func (c *cli) whoamiCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			formatter, err := NewFormatter(format, c.opts.Out)
			if err != nil {
				return err
			}
			return c.with(cmd, func(_ context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				return formatter.Format(newWhoamiView(a.session.Snapshot(), a.session.Identity()))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", FormatText, "output format: text, json or yaml")
	return cmd
}

// menuTree renders nodes as an indented tree.
type menuTree []menu.Node

func (t menuTree) String() string {
	if len(t) == 0 {
		return "No menu entries are available for this account"
	}
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	var walk func(nodes []menu.Node)
	walk = func(nodes []menu.Node) {
		for _, n := range nodes {
			lw.AppendItem(fmt.Sprintf("%s  %s", n.Title, n.Key))
			if n.IsBranch() {
				lw.Indent()
				walk(n.Children)
				lw.UnIndent()
			}
		}
	}
	walk(t)
	return lw.Render()
}

func (c *cli) menuCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List the console sections this account may open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			formatter, err := NewFormatter(format, c.opts.Out)
			if err != nil {
				return err
			}
			return c.with(cmd, func(_ context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				visible := menu.Filter(a.menu, a.session.Identity().Roles)
				if format == FormatText || format == "" {
					return formatter.Format(menuTree(visible))
				}
				return formatter.Format(visible)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", FormatText, "output format: text, json or yaml")
	return cmd
}
