package console

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// pendingRedirect records a redirect the browser should follow after a
// delay. It is set while a request is served and read when the response is
// written.
type pendingRedirect struct {
	header http.Header

	mu       sync.Mutex
	location string
	delay    time.Duration
}

type pendingRedirectKey struct{}

func withPendingRedirect(ctx context.Context, p *pendingRedirect) context.Context {
	return context.WithValue(ctx, pendingRedirectKey{}, p)
}

func pendingRedirectFrom(ctx context.Context) *pendingRedirect {
	p, _ := ctx.Value(pendingRedirectKey{}).(*pendingRedirect)
	return p
}

// schedule sets a Refresh header so the browser navigates once the
// operator has had time to read the notice.
func (p *pendingRedirect) schedule(location string, delay time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = location
	p.delay = delay
	seconds := strconv.FormatFloat(delay.Seconds(), 'f', -1, 64)
	p.header.Set("Refresh", fmt.Sprintf("%s; url=%s", seconds, location))
}

// scheduled reports the pending location and delay, if any.
func (p *pendingRedirect) scheduled() (string, time.Duration, bool) {
	if p == nil {
		return "", 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, p.delay, p.location != ""
}

func trackRedirects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &pendingRedirect{header: w.Header()}
		next.ServeHTTP(w, r.WithContext(withPendingRedirect(r.Context(), p)))
	})
}
