package console

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/flash"
	"github.com/louisbranch/groupbuy-console/internal/services/console/guard"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"github.com/louisbranch/groupbuy-console/internal/services/console/templates"
	"go.uber.org/zap"
)

func (s *Server) shell(title, active string) templates.Shell {
	shell := templates.Shell{Title: title, Active: active}
	if !s.session.Snapshot().IsLoggedIn {
		return shell
	}
	id := s.session.Identity()
	viewer := &templates.Viewer{Role: strings.Join(id.Roles, ", ")}
	if id.UserInfo != nil {
		viewer.DisplayName = id.UserInfo.DisplayName()
	}
	shell.Viewer = viewer
	shell.Menu = menu.Filter(s.menu, id.Roles)
	return shell
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, page templates.Page) {
	if err := templates.WritePage(w, r, page); err != nil {
		s.logger.Error("render page", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.handleLoginSubmit(w, r)
		return
	}
	if guard.CanEnter(s.session.Snapshot()) {
		httpx.WriteRedirect(w, r, safeNext(r.URL.Query().Get("next")))
		return
	}

	form := templates.LoginForm{Next: r.URL.Query().Get("next")}
	remembered, err := s.store.Remembered()
	if err != nil {
		s.logger.Warn("read remembered login", zap.Error(err))
	}
	if remembered != nil {
		form.Username = remembered.Username
		form.Password = remembered.Password
		form.Remember = true
	}
	s.writePage(w, r, templates.Page{Shell: s.shell("Sign in", ""), Body: templates.LoginPage(form)})
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	remember := r.PostForm.Get("remember") != ""
	next := r.PostForm.Get("next")

	err := s.session.Login(r.Context(), username, password, remember)
	if err == nil {
		name := username
		if id := s.session.Identity(); id.UserInfo != nil {
			name = id.UserInfo.DisplayName()
		}
		flash.Write(w, flash.Success("Welcome back, "+name))
		httpx.WriteRedirect(w, r, safeNext(next))
		return
	}

	message := s.session.Snapshot().Error
	if errors.Is(err, session.ErrInFlight) {
		message = "A sign-in is already in progress"
	}
	if message == "" {
		message = apiclient.MessageOf(err)
	}
	form := templates.LoginForm{Username: username, Remember: remember, Error: message, Next: next}
	s.writePage(w, r, templates.Page{
		Shell:      s.shell("Sign in", ""),
		StatusCode: formStatus(err),
		Body:       templates.LoginPage(form),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.logger.Warn("logout", zap.Error(err))
		if errors.Is(err, session.ErrInFlight) {
			flash.Write(w, flash.Error("Another sign-in or sign-out is in progress"))
			httpx.WriteRedirect(w, r, routepath.Dashboard)
			return
		}
		flash.Write(w, flash.Error("Signed out, but local credentials could not be fully cleared"))
	} else {
		flash.Write(w, flash.Success("Signed out"))
	}
	httpx.WriteRedirect(w, r, routepath.Login)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routepath.Root {
		http.NotFound(w, r)
		return
	}
	s.handleDashboard(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := s.session.Identity()
	view := templates.DashboardView{Role: strings.Join(id.Roles, ", "), Permissions: id.Permissions.Names()}
	if p := id.UserInfo; p != nil {
		view.Username = p.Username
		view.DisplayName = p.DisplayName()
		view.Email = p.Email
		view.LastLoginAt = p.LastLoginAt
	}
	s.writePage(w, r, templates.Page{Shell: s.shell("Dashboard", routepath.Dashboard), Body: templates.DashboardPage(view)})
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.writePage(w, r, templates.Page{
			Shell: s.shell("Change password", routepath.Password),
			Body:  templates.PasswordPage(templates.PasswordForm{}),
		})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err := s.session.ChangePassword(r.Context(),
		r.PostForm.Get("old_password"),
		r.PostForm.Get("new_password"),
		r.PostForm.Get("confirm_password"),
	)
	if err == nil {
		flash.Write(w, flash.Success("Password updated, please sign in again"))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	s.writePage(w, r, templates.Page{
		Shell:      s.shell("Change password", routepath.Password),
		StatusCode: formStatus(err),
		Body:       templates.PasswordPage(templates.PasswordForm{Error: apiclient.MessageOf(err)}),
	})
}

type sessionView struct {
	Session  session.State    `json:"session"`
	Identity session.Identity `json:"identity"`
	// Profile is the stored admin record as the backend sent it.
	Profile json.RawMessage `json:"profile,omitempty"`
	Menu    []menu.Node     `json:"menu"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	state := s.session.Snapshot()
	state.Token = ""
	id := s.session.Identity()
	view := sessionView{
		Session:  state,
		Identity: id,
		Menu:     menu.Filter(s.menu, id.Roles),
	}
	if state.IsLoggedIn {
		profile, err := s.store.UserInfoJSON()
		if err != nil {
			s.logger.Warn("read stored profile", zap.Error(err))
		}
		view.Profile = profile
	}
	_ = httpx.WriteJSON(w, http.StatusOK, view)
}

// formStatus picks the status for a re-rendered form after err.
func formStatus(err error) int {
	var apiErr *apiclient.Error
	switch {
	case errors.Is(err, session.ErrInFlight):
		return http.StatusConflict
	case errors.As(err, &apiErr) && apiErr.Status > 0:
		return apiErr.Status
	case errors.As(err, &apiErr):
		return statusForKind(apiErr.Kind)
	default:
		return http.StatusInternalServerError
	}
}

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return routepath.Dashboard
	}
	if routepath.IsLogin(next) {
		return routepath.Dashboard
	}
	return next
}
