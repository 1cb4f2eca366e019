package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
)

// LoginForm is the state of the login screen.
type LoginForm struct {
	Username string
	Password string
	Remember bool
	Error    string
	// Next is where to go after signing in.
	Next string
}

// LoginPage renders the sign-in form.
func LoginPage(form LoginForm) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("section", "class", "login")
		h.element("h1", "Sign in")
		if form.Error != "" {
			h.element("p", form.Error, "class", "form-error", "role", "alert")
		}
		h.open("form", "method", "post", "action", routepath.Login)
		if form.Next != "" {
			h.open("input", "type", "hidden", "name", "next", "value", form.Next)
		}
		field(h, "Username", "username", "text", form.Username, "username")
		field(h, "Password", "password", "password", form.Password, "current-password")
		h.open("label", "class", "remember")
		h.raw(`<input type="checkbox" name="remember" value="1"`)
		if form.Remember {
			h.raw(" checked")
		}
		h.raw(">")
		h.text(" Remember me")
		h.close("label")
		h.element("button", "Sign in", "type", "submit")
		h.close("form")
		h.close("section")
		return h.err
	})
}

// DashboardView summarizes the signed-in operator.
type DashboardView struct {
	Username    string
	DisplayName string
	Email       string
	Role        string
	LastLoginAt string
	Permissions []string
}

// DashboardPage renders the landing screen.
func DashboardPage(view DashboardView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("section", "class", "dashboard")
		h.element("h1", "Welcome, "+view.DisplayName)
		h.open("dl", "class", "identity")
		term(h, "Username", view.Username)
		term(h, "Role", view.Role)
		term(h, "Email", view.Email)
		term(h, "Last sign-in", view.LastLoginAt)
		term(h, "Permissions", strings.Join(view.Permissions, ", "))
		h.close("dl")
		h.close("section")
		return h.err
	})
}

// PasswordForm is the state of the change-password screen.
type PasswordForm struct {
	Error string
}

// PasswordPage renders the change-password form. Values are never echoed.
func PasswordPage(form PasswordForm) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("section", "class", "password")
		h.element("h1", "Change password")
		if form.Error != "" {
			h.element("p", form.Error, "class", "form-error", "role", "alert")
		}
		h.open("form", "method", "post", "action", routepath.Password)
		field(h, "Current password", "old_password", "password", "", "current-password")
		field(h, "New password", "new_password", "password", "", "new-password")
		field(h, "Confirm new password", "confirm_password", "password", "", "new-password")
		h.element("button", "Update password", "type", "submit")
		h.close("form")
		h.close("section")
		return h.err
	})
}

func field(h *html, label, name, kind, value, autocomplete string) {
	h.open("label")
	h.text(label)
	h.open("input", "type", kind, "name", name, "value", value, "autocomplete", autocomplete)
	h.close("label")
}

func term(h *html, label, value string) {
	if value == "" {
		return
	}
	h.element("dt", label)
	h.element("dd", value)
}
