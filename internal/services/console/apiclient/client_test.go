package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Options)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts := Options{BaseURL: server.URL + "/api/v1"}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestDoAttachesHeaders(t *testing.T) {
	var got http.Header
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.RequestURI()
		w.WriteHeader(http.StatusNoContent)
	}), func(o *Options) { o.Tokens = staticToken("abc") })

	ctx := httpx.WithRequestID(context.Background(), "req-42")
	resp, err := client.Do(ctx, Request{Path: "admin/merchants?page=2", Query: map[string][]string{"size": {"20"}}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Nil(t, resp.Payload)

	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "req-42", got.Get("X-Request-ID"))
	assert.Equal(t, "/api/v1/admin/merchants?page=2&size=20", gotPath)
}

func TestDoOmitsAuthorizationWithoutToken(t *testing.T) {
	var auth string
	var hadRequestID bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		hadRequestID = r.Header.Get("X-Request-ID") != ""
		w.WriteHeader(http.StatusNoContent)
	}), func(o *Options) { o.Tokens = staticToken("") })

	_, err := client.Do(context.Background(), Request{Path: "/admin/merchants"})
	require.NoError(t, err)
	assert.Empty(t, auth)
	assert.True(t, hadRequestID)
}

func TestGetUnwrapsJSONPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[{"id":1,"name":"Fresh Farm"}],"total":1}`)
	}), nil)

	var out struct {
		Items []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, client.Get(context.Background(), "/admin/merchants", nil, &out))
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "Fresh Farm", out.Items[0].Name)
}

func TestPostSendsJSONBody(t *testing.T) {
	var body map[string]any
	var contentType string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}), nil)

	var out struct{ OK bool }
	require.NoError(t, client.Post(context.Background(), "/admin/merchants/1/approve", map[string]string{"note": "ok"}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "ok", body["note"])
}

func TestDoPassesStreamsThrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
		_, _ = io.WriteString(w, "id,total\n1,9.90\n")
	}), nil)

	resp, err := client.Do(context.Background(), Request{Path: "/admin/orders/export"})
	require.NoError(t, err)
	defer resp.Close()

	require.NotNil(t, resp.Stream)
	assert.Nil(t, resp.Payload)
	assert.Equal(t, "orders.csv", resp.Filename)
	data, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Equal(t, "id,total\n1,9.90\n", string(data))
}

func TestDoStripsDirectoriesFromAttachmentNames(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="../../.ssh/authorized_keys"`)
		_, _ = io.WriteString(w, "ssh-ed25519 AAAA\n")
	}), nil)

	resp, err := client.Do(context.Background(), Request{Path: "/admin/orders/export"})
	require.NoError(t, err)
	defer resp.Close()
	assert.Equal(t, "authorized_keys", resp.Filename)
}

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		disposition string
		want        string
	}{
		{`attachment; filename="orders.csv"`, "orders.csv"},
		{`attachment; filename="exports/orders.csv"`, "orders.csv"},
		{`attachment; filename="..\\..\\boot.ini"`, "boot.ini"},
		{`attachment; filename="/etc/passwd"`, ""},
		{`attachment; filename=".."`, ""},
		{`attachment; filename="../"`, ""},
		{`attachment; filename="."`, ""},
		{`attachment; filename=""`, ""},
		{`attachment`, ""},
		{`not a header;;`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attachmentName(tt.disposition), tt.disposition)
	}
}

func TestGetRejectsStreamForTypedDecode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x1, 0x2})
	}), nil)

	err := client.Get(context.Background(), "/admin/orders/export", nil, &struct{}{})
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestUnauthorizedRunsHandlerAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	var handled *Error
	var screen string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Token revoked"}`)
	}), func(o *Options) {
		o.Notifier = notifier
		o.OnUnauthorized = UnauthorizedFunc(func(ctx context.Context, err *Error) {
			handled = err
			screen = ScreenFrom(ctx)
		})
	})

	ctx := WithScreen(context.Background(), "/merchants")
	err := client.Get(ctx, "/admin/merchants", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	require.NotNil(t, handled)
	assert.Equal(t, "Token revoked", handled.Message)
	assert.Equal(t, "/merchants", screen)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, KindUnauthorized, notices[0].Kind)
	assert.Equal(t, http.StatusUnauthorized, notices[0].Status)
	assert.NotEmpty(t, notices[0].RequestID)
}

func TestNonUnauthorizedSkipsHandler(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}), func(o *Options) {
		o.OnUnauthorized = UnauthorizedFunc(func(context.Context, *Error) { called = true })
	})

	err := client.Get(context.Background(), "/admin/users", nil, nil)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, DefaultMessage(KindForbidden), MessageOf(err))
	assert.False(t, called)
}

func TestSilentRequestSkipsNotifier(t *testing.T) {
	notifier := &recordingNotifier{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), func(o *Options) { o.Notifier = notifier })

	_, err := client.Do(context.Background(), Request{Path: "/admin/statistics/overview", Silent: true})
	assert.Equal(t, KindServerError, KindOf(err))
	assert.Empty(t, notifier.all())

	_, err = client.Do(context.Background(), Request{Path: "/admin/statistics/overview"})
	assert.Equal(t, KindServerError, KindOf(err))
	assert.Len(t, notifier.all(), 1)
}

func TestDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), nil)
	defer close(release)

	_, err := client.Do(context.Background(), Request{Path: "/slow", Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, DefaultMessage(KindTimeout), MessageOf(err))
}

func TestUnreachableBackendIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	client, err := New(Options{BaseURL: base})
	require.NoError(t, err)
	_, err = client.Do(context.Background(), Request{Path: "/admin/merchants"})
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestUnbuildableRequestIsUnknown(t *testing.T) {
	notifier := &recordingNotifier{}
	client := newTestClient(t, http.NotFoundHandler(), func(o *Options) { o.Notifier = notifier })

	_, err := client.Do(context.Background(), Request{Path: "http://elsewhere.example/steal"})
	assert.Equal(t, KindUnknown, KindOf(err))

	_, err = client.Do(context.Background(), Request{Path: "/x", Body: make(chan int)})
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Len(t, notifier.all(), 2)
}

func TestMetricsAndLogsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)

	status := http.StatusOK
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}), func(o *Options) {
		o.Metrics = metrics
		o.Logger = zap.New(core)
	})

	require.NoError(t, client.Get(context.Background(), "/a", nil, nil))
	status = http.StatusNotFound
	require.Error(t, client.Get(context.Background(), "/b", nil, nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "not_found")))
	assert.Equal(t, 1, logs.FilterMessage("api call").Len())
	assert.Equal(t, 1, logs.FilterMessage("api call failed").Len())
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestLoginDecodesResponse(t *testing.T) {
	var creds account.Credentials
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/login", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&creds)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token":{"access_token":"abc","token_type":"bearer"},"admin":{"username":"alice","role":"admin"}}`)
	}), nil)

	resp, err := client.Login(context.Background(), account.Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Token.AccessToken)
	assert.Equal(t, "admin", resp.Admin.Role)
	assert.Equal(t, "secret123", creds.Password)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	notifier := &recordingNotifier{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token":{},"admin":{"username":"alice"}}`)
	}), func(o *Options) { o.Notifier = notifier })

	_, err := client.Login(context.Background(), account.Credentials{Username: "alice"})
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Empty(t, notifier.all())
}

func TestLogoutAndChangePassword(t *testing.T) {
	var seen []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	require.NoError(t, client.Logout(context.Background()))
	require.NoError(t, client.ChangePassword(context.Background(), account.PasswordChange{OldPassword: "a", NewPassword: "b", ConfirmPassword: "b"}))
	assert.Equal(t, []string{"POST /api/v1/auth/logout", "PUT /api/v1/admin/password"}, seen)
}
