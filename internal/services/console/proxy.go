package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
	"go.uber.org/zap"
)

// maxProxyBody bounds request bodies forwarded to the backend.
const maxProxyBody = 1 << 20

// apiError is the body of a failed proxy call.
type apiError struct {
	Kind            apiclient.Kind `json:"kind"`
	Status          int            `json:"status"`
	Message         string         `json:"message"`
	Detail          any            `json:"detail,omitempty"`
	Redirect        string         `json:"redirect,omitempty"`
	RedirectAfterMS int64          `json:"redirect_after_ms,omitempty"`
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	backendPath, ok := routepath.BackendPath(r.URL.Path)
	if !ok {
		s.writeAPIError(w, r, &apiclient.Error{Kind: apiclient.KindNotFound, Status: http.StatusNotFound, Message: apiclient.DefaultMessage(apiclient.KindNotFound)})
		return
	}

	req := apiclient.Request{Method: r.Method, Path: backendPath, Query: r.URL.Query()}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
	if err != nil || len(body) > maxProxyBody {
		s.writeAPIError(w, r, badRequest("Request body is too large or unreadable"))
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			s.writeAPIError(w, r, badRequest("Request body must be JSON"))
			return
		}
		req.Body = json.RawMessage(body)
	}

	resp, err := s.client.Do(r.Context(), req)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	defer resp.Close()

	switch {
	case resp.Stream != nil:
		if resp.Filename != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": resp.Filename}))
		}
		if err := httpx.WriteRaw(w, resp.Status, resp.ContentType, resp.Stream); err != nil {
			s.logger.Warn("stream backend response", zap.String("path", backendPath), zap.Error(err))
		}
	case len(resp.Payload) == 0:
		w.WriteHeader(resp.Status)
	default:
		_ = httpx.WriteRaw(w, resp.Status, "application/json", bytes.NewReader(resp.Payload))
	}
}

func badRequest(message string) *apiclient.Error {
	return &apiclient.Error{Kind: apiclient.KindBadRequest, Status: http.StatusBadRequest, Message: message}
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		apiErr = &apiclient.Error{Kind: apiclient.KindUnknown, Message: apiclient.DefaultMessage(apiclient.KindUnknown), Err: err}
	}
	status := apiErr.Status
	if status == 0 {
		status = statusForKind(apiErr.Kind)
	}

	body := apiError{Kind: apiErr.Kind, Status: status, Message: apiErr.Message}
	if len(apiErr.Detail) > 0 {
		body.Detail = apiErr.Detail
	}
	if location, delay, ok := pendingRedirectFrom(r.Context()).scheduled(); ok {
		body.Redirect = location
		body.RedirectAfterMS = delay.Milliseconds()
	}
	_ = httpx.WriteJSON(w, status, body)
}

// statusForKind maps failures without a backend status onto the status a
// gateway would report.
func statusForKind(kind apiclient.Kind) int {
	switch kind {
	case apiclient.KindBadRequest:
		return http.StatusBadRequest
	case apiclient.KindUnauthorized:
		return http.StatusUnauthorized
	case apiclient.KindForbidden:
		return http.StatusForbidden
	case apiclient.KindNotFound:
		return http.StatusNotFound
	case apiclient.KindTimeout:
		return http.StatusGatewayTimeout
	case apiclient.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
