package consolectl

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Prompter asks the operator for input on a terminal.
type Prompter interface {
	// Credentials asks for a username and password, starting from the
	// given values.
	Credentials(username, password string, remember bool) (string, string, bool, error)
	// PasswordChange asks for the current and new passwords.
	PasswordChange() (oldPassword, newPassword, confirm string, err error)
	// Confirm asks a yes/no question.
	Confirm(question string) (bool, error)
}

// stdinIsTerminal reports whether prompts can be shown.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type huhPrompter struct{}

func required(label string) func(string) error {
	return func(value string) error {
		if value == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func (huhPrompter) Credentials(username, password string, remember bool) (string, string, bool, error) {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Username").Value(&username).Validate(required("username")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password).Validate(required("password")),
		huh.NewConfirm().Title("Remember me on this machine?").Value(&remember),
	))
	if err := form.Run(); err != nil {
		return "", "", false, promptError(err)
	}
	return username, password, remember, nil
}

func (huhPrompter) PasswordChange() (string, string, string, error) {
	var oldPassword, newPassword, confirm string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Current password").EchoMode(huh.EchoModePassword).Value(&oldPassword),
		huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(&newPassword),
		huh.NewInput().Title("Confirm new password").EchoMode(huh.EchoModePassword).Value(&confirm),
	))
	if err := form.Run(); err != nil {
		return "", "", "", promptError(err)
	}
	return oldPassword, newPassword, confirm, nil
}

func (huhPrompter) Confirm(question string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(question).Value(&confirmed)))
	if err := form.Run(); err != nil {
		return false, promptError(err)
	}
	return confirmed, nil
}

// errAborted reports a prompt the operator cancelled.
var errAborted = errors.New("aborted")

func promptError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errAborted
	}
	return fmt.Errorf("prompt failed: %w", err)
}
