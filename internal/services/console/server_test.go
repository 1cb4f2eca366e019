package console

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/louisbranch/groupbuy-console/internal/services/console/account"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"github.com/louisbranch/groupbuy-console/internal/services/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func startMockAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mock, err := mockapi.NewServer(context.Background(), mockapi.Config{
		Addr:       "127.0.0.1:0",
		SigningKey: "console-test-key",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, nil)
	require.NoError(t, err)
	backend := httptest.NewServer(mock.Handler())
	t.Cleanup(backend.Close)
	return backend
}

func newTestConsole(t *testing.T, apiURL string, store credstore.Config) *Server {
	t.Helper()
	if store.Driver == "" {
		store.Driver = credstore.DriverMemory
	}
	s, err := NewServer(context.Background(), Config{
		HTTPAddr:   "127.0.0.1:0",
		APIURL:     apiURL,
		APITimeout: 2 * time.Second,
		Store:      store,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func send(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func signIn(t *testing.T, s *Server, username, password string) {
	t.Helper()
	rec := send(t, s, postForm(routepath.Login, url.Values{"username": {username}, "password": {password}}))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	_, err := NewServer(context.Background(), Config{APIURL: "http://127.0.0.1:1"}, nil)
	require.Error(t, err)
}

func TestProtectedScreensRedirectAnonymous(t *testing.T) {
	s := newTestConsole(t, "http://127.0.0.1:1", credstore.Config{})

	for _, path := range []string{routepath.Root, routepath.Dashboard, routepath.Password} {
		rec := send(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, routepath.Login, rec.Header().Get("Location"), path)
	}
}

func TestLoginRemembersAndShowsFilteredMenu(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})

	rec := send(t, s, postForm(routepath.Login, url.Values{
		"username": {"bob"}, "password": {"operator123"}, "remember": {"1"}, "next": {"/account/password"},
	}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routepath.Password, rec.Header().Get("Location"))

	state := s.Session().Snapshot()
	assert.True(t, state.IsLoggedIn)
	assert.NotEmpty(t, state.Token)
	assert.Equal(t, []string{"operator"}, s.Session().Identity().Roles)

	token, err := s.store.Token()
	require.NoError(t, err)
	assert.Equal(t, state.Token, token)
	remembered, err := s.store.Remembered()
	require.NoError(t, err)
	assert.Equal(t, &account.RememberedLogin{Username: "bob", Password: "operator123"}, remembered)

	rec = send(t, s, httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Welcome, Bob")
	assert.Contains(t, page, "Merchant review")
	assert.NotContains(t, page, "User list")
	assert.NotContains(t, page, "Categories")

	rec = send(t, s, httptest.NewRequest(http.MethodGet, routepath.Login, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routepath.Dashboard, rec.Header().Get("Location"))
}

func TestLoginFailureRendersBackendMessage(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})

	rec := send(t, s, postForm(routepath.Login, url.Values{"username": {"alice"}, "password": {"wrong"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect username or password")
	assert.False(t, s.Session().Snapshot().IsLoggedIn)
	assert.Equal(t, "Incorrect username or password", s.Session().Snapshot().Error)
}

func TestLoginScreenPrefillsRememberedCredentials(t *testing.T) {
	s := newTestConsole(t, "http://127.0.0.1:1", credstore.Config{})
	require.NoError(t, s.store.SetRemembered("alice", "secret123", true))

	rec := send(t, s, httptest.NewRequest(http.MethodGet, routepath.Login, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="username" value="alice"`)
	assert.Contains(t, body, " checked")
}

func TestUnauthorizedClearsTokenAndSchedulesRedirect(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "alice", "secret123")

	// Revoke the token behind the console's back.
	rec := send(t, s, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, s.Session().Snapshot().IsLoggedIn)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/merchants", nil)
	req.Header.Set(routepath.ScreenHeader, "/merchants/list")
	rec = send(t, s, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "1.5; url=/login", rec.Header().Get("Refresh"))
	body := decodeAPIError(t, rec)
	assert.Equal(t, apiclient.KindUnauthorized, body.Kind)
	assert.Equal(t, "Could not validate credentials", body.Message)
	assert.Equal(t, routepath.Login, body.Redirect)
	assert.Equal(t, int64(1500), body.RedirectAfterMS)

	assert.False(t, s.Session().Snapshot().IsLoggedIn)
	assert.Empty(t, s.Session().Identity().Roles)
	token, err := s.store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestUnauthorizedOnLoginScreenDoesNotRedirect(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	require.NoError(t, s.store.SetToken("stale"))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.Header.Set(routepath.ScreenHeader, routepath.Login)
	rec := send(t, s, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Refresh"))
	body := decodeAPIError(t, rec)
	assert.Empty(t, body.Redirect)
	token, err := s.store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestProxyReturnsPayloadAndErrors(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "bob", "operator123")

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/merchants?status=pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "Harbor Seafood", page.Items[0].Name)

	rec = send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/statistics/overview", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeAPIError(t, rec)
	assert.Equal(t, apiclient.KindForbidden, body.Kind)
	assert.Equal(t, "Insufficient permissions", body.Message)
	assert.Empty(t, rec.Header().Get("Refresh"))

	rec = send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/merchants/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Merchant not found", decodeAPIError(t, rec).Message)
}

func TestProxyStreamsAttachments(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "fiona", "finance123")

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/orders/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.True(t, strings.HasPrefix(params["filename"], "orders-"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,order_no,merchant"))
}

func TestProxyQuotesAttachmentNames(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="q3 \"final\"; v2.csv"`)
		_, _ = w.Write([]byte("id\n"))
	}))
	t.Cleanup(backend.Close)
	s := newTestConsole(t, backend.URL, credstore.Config{})

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/orders/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, `q3 "final"; v2.csv`, params["filename"])
}

func TestProxyRejectsInvalidJSONBody(t *testing.T) {
	s := newTestConsole(t, "http://127.0.0.1:1", credstore.Config{})
	rec := send(t, s, httptest.NewRequest(http.MethodPost, "/api/admin/merchants", strings.NewReader("{nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apiclient.KindBadRequest, decodeAPIError(t, rec).Kind)
}

func TestProxyUnreachableBackendIsBadGateway(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	s := newTestConsole(t, closed.URL, credstore.Config{})

	rec := send(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/merchants", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeAPIError(t, rec)
	assert.Equal(t, apiclient.KindNetwork, body.Kind)
	assert.Equal(t, "Network error, please check your connection", body.Message)
}

func TestSessionEndpointRedactsToken(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "alice", "secret123")

	rec := send(t, s, httptest.NewRequest(http.MethodGet, routepath.Session, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), s.Session().Snapshot().Token)

	var view struct {
		Session struct {
			IsLoggedIn bool `json:"is_logged_in"`
		} `json:"session"`
		Identity struct {
			Roles []string `json:"roles"`
		} `json:"identity"`
		Profile map[string]any `json:"profile"`
		Menu    []struct {
			Key string `json:"key"`
		} `json:"menu"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Session.IsLoggedIn)
	assert.Equal(t, []string{"admin"}, view.Identity.Roles)
	assert.Equal(t, "alice@groupbuy.test", view.Profile["email"])
	assert.Len(t, view.Menu, 7)
}

func TestLogoutKeepsRememberedLogin(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	rec := send(t, s, postForm(routepath.Login, url.Values{"username": {"alice"}, "password": {"secret123"}, "remember": {"on"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = send(t, s, httptest.NewRequest(http.MethodPost, routepath.Logout, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routepath.Login, rec.Header().Get("Location"))

	assert.False(t, s.Session().Snapshot().IsLoggedIn)
	assert.Empty(t, s.Session().Identity().Roles)
	remembered, err := s.store.Remembered()
	require.NoError(t, err)
	require.NotNil(t, remembered)
	assert.Equal(t, "alice", remembered.Username)
}

func TestPasswordChangeSignsOut(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "bob", "operator123")

	rec := send(t, s, postForm(routepath.Password, url.Values{
		"old_password": {"operator123"}, "new_password": {"short"}, "confirm_password": {"short"},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "new_password - must be at least 8 characters")
	assert.True(t, s.Session().Snapshot().IsLoggedIn)

	rec = send(t, s, postForm(routepath.Password, url.Values{
		"old_password": {"operator123"}, "new_password": {"newpass123"}, "confirm_password": {"newpass123"},
	}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routepath.Login, rec.Header().Get("Location"))
	assert.False(t, s.Session().Snapshot().IsLoggedIn)

	signIn(t, s, "bob", "newpass123")
}

func TestBootstrapRestoresStoredSessionWithoutBackend(t *testing.T) {
	var hits atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(backend.Close)

	cfg := credstore.Config{Driver: credstore.DriverBolt, Path: filepath.Join(t.TempDir(), "credentials.db")}
	seed, err := credstore.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, seed.SetToken("xyz"))
	require.NoError(t, seed.SetUserInfo(account.Profile{Username: "alice", Role: "admin"}))
	require.NoError(t, seed.Close())

	s := newTestConsole(t, backend.URL, cfg)
	state := s.Session().Snapshot()
	assert.True(t, state.IsLoggedIn)
	assert.Equal(t, "xyz", state.Token)
	assert.Equal(t, []string{"admin"}, s.Session().Identity().Roles)
	assert.Zero(t, hits.Load())
}

func TestConsoleFollowsSignInFromSharedStore(t *testing.T) {
	backend := startMockAPI(t)
	cfg := credstore.Config{Driver: credstore.DriverBolt, Path: filepath.Join(t.TempDir(), "credentials.db")}
	s := newTestConsole(t, backend.URL, cfg)

	rec := send(t, s, httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	// A second process signs in against the same file while the console runs.
	other, err := credstore.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	client, err := apiclient.New(apiclient.Options{BaseURL: backend.URL, Tokens: other})
	require.NoError(t, err)
	otherSession := session.New(other, client, nil)
	require.NoError(t, otherSession.Login(context.Background(), "bob", "operator123", false))

	rec = send(t, s, httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, Bob")

	require.NoError(t, otherSession.Logout(context.Background()))

	rec = send(t, s, httptest.NewRequest(http.MethodGet, routepath.Dashboard, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routepath.Login, rec.Header().Get("Location"))
	assert.False(t, s.Session().Snapshot().IsLoggedIn)
}

func TestForeignOriginPostIsRejected(t *testing.T) {
	s := newTestConsole(t, "http://127.0.0.1:1", credstore.Config{})
	req := postForm(routepath.Logout, url.Values{})
	req.Header.Set("Origin", "https://evil.example")
	rec := send(t, s, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsExposeAPICalls(t *testing.T) {
	backend := startMockAPI(t)
	s := newTestConsole(t, backend.URL, credstore.Config{})
	signIn(t, s, "alice", "secret123")

	rec := send(t, s, httptest.NewRequest(http.MethodGet, routepath.Metrics, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `groupbuy_console_api_requests_total{kind="ok",method="POST"} 1`)
	assert.Contains(t, rec.Body.String(), "groupbuy_console_http_requests_total")
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                  routepath.Dashboard,
		"/account/password": "/account/password",
		"//evil.example":    routepath.Dashboard,
		"https://evil":      routepath.Dashboard,
		"/login?next=/":     routepath.Dashboard,
	}
	for in, want := range cases {
		assert.Equal(t, want, safeNext(in), in)
	}
}
