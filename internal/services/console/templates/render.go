package templates

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/services/console/flash"
)

// Page is one rendered screen.
type Page struct {
	Shell      Shell
	StatusCode int
	Body       templ.Component
}

type emptyComponent struct{}

func (emptyComponent) Render(context.Context, io.Writer) error { return nil }

// WritePage renders page as a full document, or only its body for HTMX
// requests. A pending flash notice and the notices gathered during the
// request are shown first.
func WritePage(w http.ResponseWriter, r *http.Request, page Page) error {
	status := page.StatusCode
	if status <= 0 {
		status = http.StatusOK
	}
	body := page.Body
	if body == nil {
		body = emptyComponent{}
	}

	notices := page.Shell.Notices
	if pending, ok := flash.ReadAndClear(w, r); ok {
		notices = append([]flash.Notice{pending}, notices...)
	}
	notices = append(notices, flash.CollectorFrom(r.Context()).Drain()...)

	var frame templ.Component
	if httpx.IsHTMXRequest(r) {
		frame = Fragment(notices)
	} else {
		shell := page.Shell
		shell.Notices = notices
		frame = Layout(shell)
	}

	var buf bytes.Buffer
	if err := frame.Render(templ.WithChildren(r.Context(), body), &buf); err != nil {
		return err
	}
	return httpx.WriteRaw(w, status, "text/html; charset=utf-8", &buf)
}
