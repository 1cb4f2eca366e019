package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
)

// Store exposes typed operations over a KV backend. Reads of absent keys
// return the zero value and a nil error.
type Store struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Close closes the backend.
func (s *Store) Close() error {
	if s == nil || s.kv == nil {
		return nil
	}
	return s.kv.Close()
}

// SetToken persists the access token.
func (s *Store) SetToken(token string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token is required")
	}
	if err := s.kv.Put(KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

// Token returns the persisted access token or "".
func (s *Store) Token() (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	raw, ok, err := s.kv.Get(KeyToken)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// RemoveToken deletes the access token.
func (s *Store) RemoveToken() error {
	return s.remove("token", KeyToken)
}

// SetUserInfo persists the administrator profile.
func (s *Store) SetUserInfo(profile account.Profile) error {
	return s.putJSON("user info", KeyUserInfo, profile)
}

// SetUserInfoJSON persists a profile object exactly as the backend sent it.
// The bytes must decode as a profile so UserInfo keeps working.
func (s *Store) SetUserInfoJSON(raw json.RawMessage) error {
	if err := s.ready(); err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return errors.New("user info must be a JSON object")
	}
	var profile account.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	if err := s.kv.Put(KeyUserInfo, append([]byte(nil), raw...)); err != nil {
		return fmt.Errorf("put user info: %w", err)
	}
	return nil
}

// UserInfoJSON returns the stored profile bytes unchanged, or nil.
func (s *Store) UserInfoJSON() (json.RawMessage, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	raw, ok, err := s.kv.Get(KeyUserInfo)
	if err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// UserInfo returns the cached profile or nil.
func (s *Store) UserInfo() (*account.Profile, error) {
	var profile account.Profile
	ok, err := s.getJSON("user info", KeyUserInfo, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

// RemoveUserInfo deletes the cached profile.
func (s *Store) RemoveUserInfo() error {
	return s.remove("user info", KeyUserInfo)
}

// SetRemembered stores the login for prefilling when remember is set and
// drops any stored login otherwise.
func (s *Store) SetRemembered(username, password string, remember bool) error {
	if !remember {
		return s.RemoveRemembered()
	}
	return s.putJSON("remembered login", KeyRemember, account.RememberedLogin{
		Username: username,
		Password: password,
	})
}

// Remembered returns the remembered login or nil.
func (s *Store) Remembered() (*account.RememberedLogin, error) {
	var login account.RememberedLogin
	ok, err := s.getJSON("remembered login", KeyRemember, &login)
	if err != nil || !ok {
		return nil, err
	}
	return &login, nil
}

// RemoveRemembered deletes the remembered login.
func (s *Store) RemoveRemembered() error {
	return s.remove("remembered login", KeyRemember)
}

// ClearSession drops the token and profile. The remembered login survives.
func (s *Store) ClearSession() error {
	return s.remove("session", KeyToken, KeyUserInfo)
}

// Reset drops every credential key, including the remembered login.
func (s *Store) Reset() error {
	return s.remove("credentials", KeyToken, KeyUserInfo, KeyRemember)
}

func (s *Store) ready() error {
	if s == nil || s.kv == nil {
		return ErrNotConfigured
	}
	return nil
}

func (s *Store) remove(what string, keys ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.kv.Delete(keys...); err != nil {
		return fmt.Errorf("remove %s: %w", what, err)
	}
	return nil
}

func (s *Store) putJSON(what, key string, value any) error {
	if err := s.ready(); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	if err := s.kv.Put(key, payload); err != nil {
		return fmt.Errorf("put %s: %w", what, err)
	}
	return nil
}

func (s *Store) getJSON(what, key string, target any) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", what, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return true, nil
}
