// Package guard decides whether protected screens may be entered.
package guard

import (
	"net/http"

	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
)

// CanEnter reports whether a protected screen may be shown for state.
func CanEnter(state session.State) bool {
	return state.IsLoggedIn
}

// Source exposes the current session state.
type Source interface {
	Snapshot() session.State
}

// Require sends anonymous operators to loginPath before next runs.
func Require(source Source, loginPath string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			return http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if source == nil || !CanEnter(source.Snapshot()) {
				httpx.WriteRedirect(w, r, loginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
