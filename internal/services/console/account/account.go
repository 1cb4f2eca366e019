// Package account holds the identity payloads exchanged with the backend and
// persisted by the credential store.
package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Profile is the administrator record returned by the login endpoint as
// `admin` and cached locally between runs.
type Profile struct {
	ID          int64         `json:"id"`
	Username    string        `json:"username"`
	Nickname    string        `json:"nickname,omitempty"`
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Avatar      string        `json:"avatar,omitempty"`
	Role        string        `json:"role,omitempty"`
	Status      string        `json:"status,omitempty"`
	Permissions PermissionSet `json:"permissions,omitempty"`
	LastLoginAt string        `json:"last_login_at,omitempty"`
}

// DisplayName prefers the nickname over the login name.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Nickname); name != "" {
		return name
	}
	return p.Username
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Permissions = p.Permissions.Clone()
	return &clone
}

// PermissionSet is a set of permission names. The backend sends it either as
// a list of names or as a name-to-flag object; both decode to the same set.
type PermissionSet map[string]bool

// NewPermissionSet builds a set from names, skipping blanks.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = true
		}
	}
	return set
}

// Has reports whether name is granted.
func (s PermissionSet) Has(name string) bool {
	return s[name]
}

// Names returns the granted names in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name, granted := range s {
		if granted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of s. A nil set stays nil.
func (s PermissionSet) Clone() PermissionSet {
	if s == nil {
		return nil
	}
	clone := make(PermissionSet, len(s))
	for name, granted := range s {
		clone[name] = granted
	}
	return clone
}

// MarshalJSON encodes the set as a sorted list of granted names.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts a list of names, a name-to-bool object or null.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	switch trimmed[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return fmt.Errorf("decode permission list: %w", err)
		}
		*s = NewPermissionSet(names...)
		return nil
	case '{':
		var flags map[string]bool
		if err := json.Unmarshal(trimmed, &flags); err != nil {
			return fmt.Errorf("decode permission map: %w", err)
		}
		set := make(PermissionSet, len(flags))
		for name, granted := range flags {
			if granted && strings.TrimSpace(name) != "" {
				set[name] = true
			}
		}
		*s = set
		return nil
	default:
		return fmt.Errorf("decode permissions: unsupported JSON %q", string(trimmed))
	}
}

// RememberedLogin is the "remember me" record used to prefill the login form.
type RememberedLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccessToken is the token block of a login response.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// LoginResponse is the body of POST /admin/login. AdminJSON holds the admin
// object exactly as received, including fields Profile does not model, so
// the credential store can keep it unchanged.
type LoginResponse struct {
	Token     AccessToken     `json:"token"`
	Admin     Profile         `json:"admin"`
	AdminJSON json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the response and keeps the raw admin object.
func (r *LoginResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		Token AccessToken     `json:"token"`
		Admin json.RawMessage `json:"admin"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Token = wire.Token
	r.Admin = Profile{}
	r.AdminJSON = nil

	admin := bytes.TrimSpace(wire.Admin)
	if len(admin) == 0 || bytes.Equal(admin, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(admin, &r.Admin); err != nil {
		return fmt.Errorf("decode admin profile: %w", err)
	}
	r.AdminJSON = append(json.RawMessage(nil), admin...)
	return nil
}

// PasswordChange is the body of PUT /admin/password.
type PasswordChange struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
