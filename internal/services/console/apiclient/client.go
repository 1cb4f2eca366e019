// Package apiclient is the single chokepoint for calls to the group-buy
// backend. It authenticates requests from the credential store, unwraps
// successful payloads and normalizes every failure into an *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 1 << 20

// TokenSource supplies the stored access token; "" means anonymous.
type TokenSource interface {
	Token() (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Tokens         TokenSource
	HTTPClient     *http.Client
	Logger         *zap.Logger
	Metrics        *Metrics
	OnUnauthorized UnauthorizedHandler
	Notifier       Notifier
	// Timeout is the default per-call deadline.
	Timeout time.Duration
}

// Client calls the backend REST API.
type Client struct {
	baseURL        *url.URL
	tokens         TokenSource
	http           *http.Client
	logger         *zap.Logger
	metrics        *Metrics
	onUnauthorized UnauthorizedHandler
	notifier       Notifier
	timeout        time.Duration
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute, got %q", opts.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = timeouts.APIRequest
	}
	return &Client{
		baseURL:        base,
		tokens:         opts.Tokens,
		http:           httpClient,
		logger:         logger.Named("apiclient"),
		metrics:        opts.Metrics,
		onUnauthorized: opts.OnUnauthorized,
		notifier:       opts.Notifier,
		timeout:        timeout,
	}, nil
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON encoded when non-nil.
	Body   any
	Header http.Header
	// Timeout overrides the client default deadline.
	Timeout time.Duration
	// Silent suppresses the Notifier for this call.
	Silent bool
}

// Response is a successful call. JSON bodies land in Payload; any other
// content type is exposed unread through Stream, which the caller closes.
type Response struct {
	Status      int
	ContentType string
	Filename    string
	Payload     json.RawMessage
	Stream      io.ReadCloser
}

// Decode unmarshals the JSON payload into target. A response without a
// payload leaves target untouched.
func (r *Response) Decode(target any) error {
	if r == nil || target == nil || len(r.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Payload, target); err != nil {
		return &Error{Kind: KindUnknown, Status: r.Status, Message: DefaultMessage(KindUnknown), Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

// Close releases the stream, if any.
func (r *Response) Close() error {
	if r == nil || r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// Do performs req. Every returned error is an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	requestID := httpx.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	httpReq, err := c.newRequest(ctx, method, req, requestID)
	if err != nil {
		cancel()
		return nil, c.fail(ctx, req, method, requestID, started, &Error{
			Kind: KindUnknown, Message: DefaultMessage(KindUnknown), Err: err,
		})
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		return nil, c.fail(ctx, req, method, requestID, started, transportError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		return nil, c.fail(ctx, req, method, requestID, started, statusError(resp.StatusCode, body))
	}

	out, err := c.unwrap(resp, cancel)
	if err != nil {
		return nil, c.fail(ctx, req, method, requestID, started, transportError(err))
	}
	c.metrics.observe(method, "", time.Since(started))
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("request_id", requestID),
	)
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method string, req Request, requestID string) (*http.Request, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(httpx.RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			c.logger.Warn("read access token", zap.Error(err))
		} else if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("path %q must be relative to the api base url", path)
	}
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + strings.TrimPrefix(ref.Path, "/")
	values := ref.Query()
	for key, vals := range query {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	target.RawQuery = values.Encode()
	return target.String(), nil
}

func (c *Client) unwrap(resp *http.Response, cancel context.CancelFunc) (*Response, error) {
	out := &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
	}
	if resp.StatusCode == http.StatusNoContent {
		_ = resp.Body.Close()
		cancel()
		return out, nil
	}
	if !isJSON(out.ContentType) {
		out.Stream = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return out, nil
	}

	defer cancel()
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) > 0 {
		out.Payload = payload
	}
	return out, nil
}

func (c *Client) fail(ctx context.Context, req Request, method, requestID string, started time.Time, apiErr *Error) error {
	c.metrics.observe(method, apiErr.Kind, time.Since(started))
	c.logger.Warn("api call failed",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.String("kind", string(apiErr.Kind)),
		zap.Int("status", apiErr.Status),
		zap.String("message", apiErr.Message),
		zap.String("request_id", requestID),
		zap.NamedError("cause", apiErr.Err),
	)

	// Hooks run on a context detached from the call deadline, which may
	// already have expired.
	hookCtx := context.WithoutCancel(ctx)
	if apiErr.Kind == KindUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized.HandleUnauthorized(hookCtx, apiErr)
	}
	if !req.Silent && c.notifier != nil {
		c.notifier.Notify(hookCtx, Notice{
			Kind:      apiErr.Kind,
			Status:    apiErr.Status,
			Message:   apiErr.Message,
			RequestID: requestID,
		})
	}
	return apiErr
}

// Get fetches path and decodes the payload into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body to path and decodes the payload into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends body to path and decodes the payload into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete removes path and decodes the payload into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Close()
	if resp.Stream != nil {
		return &Error{
			Kind:    KindUnknown,
			Status:  resp.Status,
			Message: DefaultMessage(KindUnknown),
			Err:     fmt.Errorf("expected JSON payload, got %q", resp.ContentType),
		}
	}
	return resp.Decode(out)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func isJSON(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return safeFilename(params["filename"])
}

// safeFilename reduces a server supplied name to a plain file name, or ""
// when it names a directory, an absolute path or nothing at all.
func safeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return ""
	}
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}
