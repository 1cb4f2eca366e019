// Package flash carries one-time console notices: collected while a request
// runs, then shown inline or kept in a cookie across a redirect.
package flash

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
)

// CookieName holds the notice between a redirect and the next page.
const CookieName = "gbc_flash"

// Kind classifies notice presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is one message for the operator.
type Notice struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Success builds a success notice.
func Success(text string) Notice { return Notice{Kind: KindSuccess, Text: text} }

// Error builds an error notice.
func Error(text string) Notice { return Notice{Kind: KindError, Text: text} }

// Write stores notice in the flash cookie for the next page render.
func Write(w http.ResponseWriter, notice Notice) {
	if w == nil {
		return
	}
	normalized, ok := normalize(notice)
	if !ok {
		return
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadAndClear returns the pending notice and expires the cookie.
func ReadAndClear(w http.ResponseWriter, r *http.Request) (Notice, bool) {
	if r == nil {
		return Notice{}, false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Notice{}, false
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
	return decode(cookie.Value)
}

func decode(raw string) (Notice, bool) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil || len(decoded) == 0 {
		return Notice{}, false
	}
	var notice Notice
	if err := json.Unmarshal(decoded, &notice); err != nil {
		return Notice{}, false
	}
	return normalize(notice)
}

func normalize(notice Notice) (Notice, bool) {
	notice.Text = strings.TrimSpace(notice.Text)
	if notice.Text == "" {
		return Notice{}, false
	}
	notice.Kind = Kind(strings.ToLower(strings.TrimSpace(string(notice.Kind))))
	switch notice.Kind {
	case KindSuccess, KindInfo, KindWarning, KindError:
		return notice, true
	default:
		return Notice{}, false
	}
}

// Collector gathers notices raised while one request is served.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

// Add appends notice.
func (c *Collector) Add(notice Notice) {
	if c == nil {
		return
	}
	if normalized, ok := normalize(notice); ok {
		c.mu.Lock()
		c.notices = append(c.notices, normalized)
		c.mu.Unlock()
	}
}

// Drain returns and forgets the gathered notices.
func (c *Collector) Drain() []Notice {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	return out
}

type collectorKey struct{}

// WithCollector attaches c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFrom returns the collector attached to ctx, if any.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

// Collect installs a fresh Collector on every request.
func Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithCollector(r.Context(), &Collector{})))
	})
}

// Notifier routes client notices to the request's Collector. Notices raised
// outside a request go to Fallback when set.
type Notifier struct {
	Fallback func(apiclient.Notice)
}

// Notify implements apiclient.Notifier.
func (n Notifier) Notify(ctx context.Context, notice apiclient.Notice) {
	if c := CollectorFrom(ctx); c != nil {
		c.Add(Notice{Kind: levelFor(notice.Kind), Text: notice.Message})
		return
	}
	if n.Fallback != nil {
		n.Fallback(notice)
	}
}

func levelFor(kind apiclient.Kind) Kind {
	switch kind {
	case apiclient.KindBadRequest, apiclient.KindNotFound, apiclient.KindUnauthorized:
		return KindWarning
	default:
		return KindError
	}
}
