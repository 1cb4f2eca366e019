// Package console serves the operator console: the login and account
// screens, a dashboard with the role-filtered menu, and a proxy through
// which screens reach the backend.
package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/platform/httpx"
	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore"
	"github.com/louisbranch/groupbuy-console/internal/services/console/flash"
	"github.com/louisbranch/groupbuy-console/internal/services/console/guard"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"github.com/louisbranch/groupbuy-console/internal/services/console/routepath"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Server is the console HTTP server.
type Server struct {
	httpAddr   string
	logger     *zap.Logger
	store      *credstore.Store
	session    *session.Session
	client     *apiclient.Client
	menu       []menu.Node
	registry   *prometheus.Registry
	handler    http.Handler
	httpServer *http.Server
}

// NewServer opens the credential store, restores any stored session and
// wires the backend client.
func NewServer(ctx context.Context, cfg Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}

	store, err := credstore.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	s := &Server{
		httpAddr: httpAddr,
		logger:   logger,
		store:    store,
		menu:     menu.Default(),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := apiclient.NewMetrics(s.registry)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register api metrics: %w", err)
	}

	s.session = session.New(store, nil, logger)
	client, err := apiclient.New(apiclient.Options{
		BaseURL:        cfg.APIURL,
		Tokens:         store,
		Logger:         logger,
		Metrics:        metrics,
		OnUnauthorized: apiclient.UnauthorizedFunc(s.handleUnauthorized),
		Notifier: flash.Notifier{Fallback: func(n apiclient.Notice) {
			logger.Info("backend notice", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		}},
		Timeout: cfg.apiTimeout(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	s.client = client
	s.session.SetAuth(client)

	if err := s.session.Bootstrap(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if s.session.Snapshot().IsLoggedIn {
		logger.Info("restored stored session")
	}

	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s, nil
}

// handleUnauthorized ends the session after the backend rejected the token
// and, unless the operator is already on the login screen, schedules the
// trip back to it.
func (s *Server) handleUnauthorized(ctx context.Context, _ *apiclient.Error) {
	if err := s.session.Expire(); err != nil {
		s.logger.Error("expire session", zap.Error(err))
	}
	if routepath.IsLogin(apiclient.ScreenFrom(ctx)) {
		return
	}
	pendingRedirectFrom(ctx).schedule(routepath.Login, timeouts.UnauthorizedRedirect)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	protect := guard.Require(s.session, routepath.Login)

	mux.Handle(routepath.Login, httpx.RequireMethod(http.MethodGet, http.MethodPost)(http.HandlerFunc(s.handleLogin)))
	mux.Handle(routepath.Logout, httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(s.handleLogout)))
	mux.Handle(routepath.Root, httpx.Chain(http.HandlerFunc(s.handleRoot), httpx.RequireMethod(http.MethodGet), protect))
	mux.Handle(routepath.Dashboard, httpx.Chain(http.HandlerFunc(s.handleDashboard), httpx.RequireMethod(http.MethodGet), protect))
	mux.Handle(routepath.Password, httpx.Chain(http.HandlerFunc(s.handlePassword), httpx.RequireMethod(http.MethodGet, http.MethodPost), protect))
	mux.Handle(routepath.Session, httpx.RequireMethod(http.MethodGet)(http.HandlerFunc(s.handleSession)))
	mux.Handle(routepath.APIPrefix, http.HandlerFunc(s.handleAPI))
	mux.HandleFunc(routepath.Health, func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle(routepath.Metrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	served := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupbuy_console",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Console requests by status code and method.",
	}, []string{"code", "method"})
	s.registry.MustRegister(served)

	handler := httpx.Chain(mux,
		httpx.RecoverPanic(s.logger),
		httpx.RequestID(),
		httpx.SameOrigin(),
		s.syncSession,
		flash.Collect,
		trackRedirects,
		tagScreen,
	)
	return otelhttp.NewHandler(promhttp.InstrumentHandlerCounter(served, handler), "console")
}

// syncSession follows credential changes made by consolectl, which shares
// the store with the console.
func (s *Server) syncSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Sync(); err != nil {
			s.logger.Warn("sync session from store", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

// tagScreen records which screen issued the request so backend failures
// can tell whether the operator is already on the login screen.
func tagScreen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		screen := strings.TrimSpace(r.Header.Get(routepath.ScreenHeader))
		if screen == "" {
			screen = r.URL.Path
		}
		next.ServeHTTP(w, r.WithContext(apiclient.WithScreen(r.Context(), screen)))
	})
}

// Handler exposes the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Session exposes the session context.
func (s *Server) Session() *session.Session {
	return s.session
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("console server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	s.logger.Info("console listening", zap.String("addr", s.httpAddr))
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the credential store.
func (s *Server) Close() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close credential store", zap.Error(err))
	}
}
