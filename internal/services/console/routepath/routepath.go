// Package routepath names the console's own HTTP routes.
package routepath

import (
	"net/url"
	"strings"
)

const (
	Root      = "/"
	Dashboard = "/dashboard"
	Login     = "/login"
	Logout    = "/logout"
	Password  = "/account/password"
)

const (
	Session = "/session"
	Health  = "/up"
	Metrics = "/metrics"
)

const (
	APIPrefix = "/api/"
)

// ScreenHeader names the screen that issued an /api call.
const ScreenHeader = "X-Console-Screen"

// API returns the console proxy route for a backend path.
func API(backendPath string) string {
	segments := strings.Split(strings.Trim(strings.TrimSpace(backendPath), "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return APIPrefix + strings.Join(segments, "/")
}

// BackendPath inverts API for an incoming proxy request path.
func BackendPath(consolePath string) (string, bool) {
	if !strings.HasPrefix(consolePath, APIPrefix) {
		return "", false
	}
	rest := strings.Trim(strings.TrimPrefix(consolePath, APIPrefix), "/")
	if rest == "" {
		return "", false
	}
	return "/" + rest, true
}

// IsLogin reports whether screen is the login screen.
func IsLogin(screen string) bool {
	screen = strings.TrimSpace(screen)
	if parsed, err := url.Parse(screen); err == nil {
		screen = parsed.Path
	}
	return strings.TrimSuffix(screen, "/") == Login
}
