package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
)

// Backend paths owned by the authentication flow.
const (
	PathLogin    = "/admin/login"
	PathLogout   = "/auth/logout"
	PathPassword = "/admin/password"
)

// Login exchanges credentials for an access token and profile. The login
// form shows its own error, so failures are not broadcast as notices.
func (c *Client) Login(ctx context.Context, creds account.Credentials) (*account.LoginResponse, error) {
	resp, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    PathLogin,
		Body:    creds,
		Timeout: timeouts.Login,
		Silent:  true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	var out account.LoginResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Token.AccessToken) == "" {
		return nil, &Error{
			Kind:    KindUnknown,
			Status:  resp.Status,
			Message: "Login response did not include an access token",
			Err:     fmt.Errorf("login response missing access_token"),
		}
	}
	return &out, nil
}

// Logout revokes the current token server side.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    PathLogout,
		Timeout: timeouts.Logout,
		Silent:  true,
	})
	if err != nil {
		return err
	}
	return resp.Close()
}

// ChangePassword updates the operator's password.
func (c *Client) ChangePassword(ctx context.Context, change account.PasswordChange) error {
	return c.Put(ctx, PathPassword, change, nil)
}
