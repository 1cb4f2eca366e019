// Package session owns the console's authentication state: whether an
// operator is signed in, with which token, and the identity derived from
// their profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"go.uber.org/zap"
)

var (
	// ErrInFlight rejects a login or logout while another one is running.
	ErrInFlight = errors.New("an authentication request is already in progress")
	// ErrMissingToken reports a login response without an access token.
	ErrMissingToken = errors.New("login response did not include an access token")
)

// State is the observable session.
type State struct {
	IsLoggedIn bool   `json:"is_logged_in"`
	Token      string `json:"token,omitempty"`
	Loading    bool   `json:"loading"`
	Error      string `json:"error,omitempty"`
}

// Identity is derived from the operator profile.
type Identity struct {
	UserInfo    *account.Profile      `json:"user_info"`
	Roles       []string              `json:"roles"`
	Permissions account.PermissionSet `json:"permissions"`
}

// Store is the persistence the session needs.
type Store interface {
	SetToken(token string) error
	Token() (string, error)
	SetUserInfo(profile account.Profile) error
	SetUserInfoJSON(raw json.RawMessage) error
	UserInfo() (*account.Profile, error)
	SetRemembered(username, password string, remember bool) error
	RemoveToken() error
	RemoveUserInfo() error
}

// AuthAPI is the backend surface of the authentication flow.
type AuthAPI interface {
	Login(ctx context.Context, creds account.Credentials) (*account.LoginResponse, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, change account.PasswordChange) error
}

// Session is the explicit session context shared by the console's screens.
type Session struct {
	store  Store
	auth   AuthAPI
	logger *zap.Logger

	mu       sync.RWMutex
	state    State
	identity Identity
}

// New builds an anonymous session. Call Bootstrap to restore a stored one.
func New(store Store, auth AuthAPI, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:    store,
		auth:     auth,
		logger:   logger.Named("session"),
		identity: emptyIdentity(),
	}
}

// SetAuth installs the backend client after construction. The client's
// unauthorized hook needs the session, so the two are wired in two steps.
func (s *Session) SetAuth(auth AuthAPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity returns a deep copy of the current identity.
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Identity{
		UserInfo:    s.identity.UserInfo.Clone(),
		Roles:       append([]string{}, s.identity.Roles...),
		Permissions: s.identity.Permissions.Clone(),
	}
}

// Bootstrap restores a stored session without contacting the backend. A
// stored token is trusted until the backend rejects it.
func (s *Session) Bootstrap() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.store.Token()
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if token == "" {
		s.resetLocked()
		return nil
	}

	profile, err := s.store.UserInfo()
	if err != nil {
		// A corrupt profile should not lock the operator out of a valid token.
		s.logger.Warn("stored profile unreadable", zap.Error(err))
		profile = nil
	}
	s.state = State{IsLoggedIn: true, Token: token}
	s.identity = deriveIdentity(profile)
	return nil
}

// Sync re-reads the stored token so sign-ins and sign-outs made by another
// process sharing the store take effect here. It does nothing while a login
// or logout is running, or when the stored token is the one already held.
func (s *Session) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return nil
	}

	token, err := s.store.Token()
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if token == s.state.Token && s.state.IsLoggedIn == (token != "") {
		return nil
	}
	if token == "" {
		s.logger.Info("stored session was cleared elsewhere")
		s.resetLocked()
		return nil
	}

	profile, err := s.store.UserInfo()
	if err != nil {
		s.logger.Warn("stored profile unreadable", zap.Error(err))
		profile = nil
	}
	s.logger.Info("picked up stored session")
	s.state = State{IsLoggedIn: true, Token: token}
	s.identity = deriveIdentity(profile)
	return nil
}

// Login authenticates against the backend. On failure the friendly message
// is kept in State.Error and the error is returned.
func (s *Session) Login(ctx context.Context, username, password string, remember bool) error {
	auth, err := s.begin()
	if err != nil {
		return err
	}
	if auth == nil {
		s.mu.Lock()
		s.state.Loading = false
		s.mu.Unlock()
		return fmt.Errorf("auth api is not configured")
	}

	resp, err := auth.Login(ctx, account.Credentials{Username: username, Password: password})
	if err == nil && strings.TrimSpace(resp.Token.AccessToken) == "" {
		err = ErrMissingToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false

	if err != nil {
		s.state.Error = apiclient.MessageOf(err)
		s.logger.Info("login failed", zap.String("username", username), zap.Error(err))
		return err
	}

	if err := s.persistLocked(resp, username, password, remember); err != nil {
		if cleanupErr := s.endLocked(); cleanupErr != nil {
			err = multierror.Append(err, cleanupErr)
		}
		s.state.Error = "Could not save the session locally"
		return err
	}

	profile := resp.Admin
	s.state = State{IsLoggedIn: true, Token: resp.Token.AccessToken}
	s.identity = deriveIdentity(&profile)
	s.logger.Info("login succeeded", zap.String("username", username), zap.Strings("roles", s.identity.Roles))
	return nil
}

func (s *Session) persistLocked(resp *account.LoginResponse, username, password string, remember bool) error {
	if err := s.store.SetToken(resp.Token.AccessToken); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if len(resp.AdminJSON) > 0 {
		if err := s.store.SetUserInfoJSON(resp.AdminJSON); err != nil {
			return fmt.Errorf("store profile: %w", err)
		}
	} else if err := s.store.SetUserInfo(resp.Admin); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	if err := s.store.SetRemembered(username, password, remember); err != nil {
		return fmt.Errorf("store remembered login: %w", err)
	}
	return nil
}

// Logout ends the session. The backend call is best effort; the session is
// anonymous afterwards whatever the backend says. The returned error only
// reports local cleanup failures.
func (s *Session) Logout(ctx context.Context) error {
	auth, err := s.begin()
	if err != nil {
		return err
	}

	if auth != nil {
		if err := auth.Logout(ctx); err != nil {
			s.logger.Warn("backend logout failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	return s.endLocked()
}

// Expire applies a forced logout after the backend rejected the token. It
// leaves Loading alone so an in-flight call finishes its own transition.
func (s *Session) Expire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loading := s.state.Loading
	err := s.endLocked()
	s.state.Loading = loading
	return err
}

// ChangePassword updates the password and ends the local session, since
// the backend invalidates the current token.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	if err := validatePasswordChange(oldPassword, newPassword, confirm); err != nil {
		return err
	}

	s.mu.RLock()
	auth := s.auth
	s.mu.RUnlock()
	if auth == nil {
		return fmt.Errorf("auth api is not configured")
	}

	if err := auth.ChangePassword(ctx, account.PasswordChange{
		OldPassword:     oldPassword,
		NewPassword:     newPassword,
		ConfirmPassword: confirm,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("password changed, signing out")
	return s.endLocked()
}

func validatePasswordChange(oldPassword, newPassword, confirm string) error {
	var msg string
	switch {
	case oldPassword == "" || newPassword == "" || confirm == "":
		msg = "All password fields are required"
	case newPassword != confirm:
		msg = "The new passwords do not match"
	case newPassword == oldPassword:
		msg = "The new password must differ from the current one"
	default:
		return nil
	}
	return &apiclient.Error{Kind: apiclient.KindBadRequest, Message: msg, Err: errors.New(msg)}
}

// begin marks the session loading, refusing reentry.
func (s *Session) begin() (AuthAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return nil, ErrInFlight
	}
	s.state.Loading = true
	s.state.Error = ""
	return s.auth, nil
}

// endLocked drops the stored token and profile and resets memory. Each
// removal is attempted even if the other fails.
func (s *Session) endLocked() error {
	var result *multierror.Error
	if err := s.store.RemoveToken(); err != nil {
		result = multierror.Append(result, fmt.Errorf("remove stored token: %w", err))
	}
	if err := s.store.RemoveUserInfo(); err != nil {
		result = multierror.Append(result, fmt.Errorf("remove stored profile: %w", err))
	}
	s.resetLocked()
	if err := result.ErrorOrNil(); err != nil {
		s.logger.Error("session cleanup failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) resetLocked() {
	s.state = State{}
	s.identity = emptyIdentity()
}

func deriveIdentity(profile *account.Profile) Identity {
	if profile == nil {
		return emptyIdentity()
	}
	id := Identity{
		UserInfo:    profile.Clone(),
		Roles:       []string{},
		Permissions: profile.Permissions.Clone(),
	}
	if role := strings.TrimSpace(profile.Role); role != "" {
		id.Roles = []string{role}
	}
	if id.Permissions == nil {
		id.Permissions = account.PermissionSet{}
	}
	return id
}

func emptyIdentity() Identity {
	return Identity{Roles: []string{}, Permissions: account.PermissionSet{}}
}
