package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindServerError  Kind = "server_error"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network_error"
	KindUnknown      Kind = "unknown"
)

var defaultMessages = map[Kind]string{
	KindBadRequest:   "Invalid request parameters",
	KindUnauthorized: "Session expired, please sign in again",
	KindForbidden:    "You do not have permission to perform this action",
	KindNotFound:     "The requested resource was not found",
	KindServerError:  "Server error, please try again later",
	KindTimeout:      "Request timed out, please try again",
	KindNetwork:      "Network error, please check your connection",
	KindUnknown:      "Request failed",
}

// DefaultMessage returns the fallback text shown for kind.
func DefaultMessage(kind Kind) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return defaultMessages[KindUnknown]
}

// Error is the normalized failure every client call returns. Message is
// ready to show to the operator.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Detail is the raw `detail` member of the error body, when present.
	Detail json.RawMessage
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status > 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err is an Unauthorized client error.
func IsUnauthorized(err error) bool {
	return err != nil && KindOf(err) == KindUnauthorized
}

// MessageOf returns the operator-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// KindForStatus maps a non-2xx status code to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindServerError
	default:
		return KindUnknown
	}
}

// statusError builds the error for a response with a non-2xx status.
func statusError(status int, body []byte) *Error {
	kind := KindForStatus(status)
	detail, message := errorFields(body)
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: FriendlyMessage(kind, detail, message),
		Detail:  detail,
		Err:     fmt.Errorf("backend responded %d %s", status, http.StatusText(status)),
	}
}

// transportError classifies a failure where no response was received.
func transportError(err error) *Error {
	kind := transportKind(err)
	return &Error{Kind: kind, Message: DefaultMessage(kind), Err: err}
}

func transportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindNetwork
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindNetwork
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED):
		return KindNetwork
	}
	return KindUnknown
}

func errorFields(body []byte) (json.RawMessage, string) {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &envelope) != nil {
		return nil, ""
	}
	var message string
	_ = json.Unmarshal(envelope.Message, &message)
	if bytes.Equal(bytes.TrimSpace(envelope.Detail), []byte("null")) {
		envelope.Detail = nil
	}
	return envelope.Detail, message
}

// FriendlyMessage picks the operator-facing text for an error body: a
// string detail verbatim, an object detail as "key - value" pairs, an array
// detail as its item messages, then the message field, then the default.
func FriendlyMessage(kind Kind, detail json.RawMessage, message string) string {
	if text := describeDetail(detail); text != "" {
		return text
	}
	if strings.TrimSpace(message) != "" {
		return message
	}
	return DefaultMessage(kind)
}

func describeDetail(detail json.RawMessage) string {
	trimmed := bytes.TrimSpace(detail)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var text string
		if json.Unmarshal(trimmed, &text) != nil {
			return ""
		}
		return text
	case '{':
		text, err := describeObject(trimmed)
		if err != nil {
			return ""
		}
		return text
	case '[':
		return describeList(trimmed)
	default:
		return ""
	}
}

// describeObject renders members in document order, which a map decode
// would lose.
func describeObject(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return "", err
	}
	var b strings.Builder
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return "", err
		}
		b.WriteString(key)
		b.WriteString(" - ")
		b.WriteString(renderValue(value))
		b.WriteString("; ")
	}
	return strings.TrimSuffix(b.String(), "; "), nil
}

func describeList(raw []byte) string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		var entry struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(item, &entry) == nil && entry.Msg != "" {
			parts = append(parts, entry.Msg)
			continue
		}
		if text := renderValue(item); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "; ")
}

func renderValue(value json.RawMessage) string {
	var text string
	if json.Unmarshal(value, &text) == nil {
		return text
	}
	var texts []string
	if json.Unmarshal(value, &texts) == nil {
		return strings.Join(texts, ", ")
	}
	var compact bytes.Buffer
	if json.Compact(&compact, value) != nil {
		return string(value)
	}
	return compact.String()
}
