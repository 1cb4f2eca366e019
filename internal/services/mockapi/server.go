// Package mockapi serves an in-memory stand-in for the group-buy platform's
// admin REST backend. Errors follow the backend's `{"detail": ...}` envelope
// so the console's error mapping can be exercised end to end.
package mockapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gorilla/mux"
	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config holds mock backend settings.
type Config struct {
	Addr       string        `env:"MOCKAPI_ADDR" envDefault:"127.0.0.1:8000"`
	SigningKey string        `env:"MOCKAPI_SIGNING_KEY"`
	TokenTTL   time.Duration `env:"MOCKAPI_TOKEN_TTL" envDefault:"2h"`
	BcryptCost int           `env:"MOCKAPI_BCRYPT_COST" envDefault:"10"`

	// Seeds replaces DefaultSeeds when non-empty.
	Seeds []Seed `env:"-"`
	// Now overrides the clock used for tokens and timestamps.
	Now func() time.Time `env:"-"`
}

// Server is the mock backend.
type Server struct {
	addr       string
	logger     *zap.Logger
	now        func() time.Time
	accounts   *accounts
	tokens     *tokens
	catalog    *catalog
	contract   *openapi3.T
	router     *mux.Router
	httpServer *http.Server
}

// NewServer builds a mock backend and checks its routes against the bundled
// OpenAPI contract.
func NewServer(ctx context.Context, cfg Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("mock api address is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		logger.Warn("no signing key configured, tokens will not survive a restart")
	}
	seeds := cfg.Seeds
	if len(seeds) == 0 {
		seeds = DefaultSeeds()
	}

	accts, err := newAccounts(seeds, cost, now)
	if err != nil {
		return nil, err
	}
	contract, err := LoadContract(ctx)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:     addr,
		logger:   logger,
		now:      now,
		accounts: accts,
		tokens:   newTokens(key, ttl, now),
		catalog:  newCatalog(),
		contract: contract,
	}
	s.router = s.routes()
	if err := CheckRoutes(s.router, contract); err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", s.handleContract).Methods(http.MethodGet)
	r.HandleFunc("/admin/login", s.handleLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/admin/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/admin/password", s.handlePassword).Methods(http.MethodPut)

	staff := allow(menu.RoleAdmin, menu.RoleOperator)
	finance := allow(menu.RoleAdmin, menu.RoleFinance)
	exporters := allow(menu.RoleAdmin, menu.RoleOperator, menu.RoleFinance)
	authed.Handle("/admin/merchants", staff(http.HandlerFunc(s.handleMerchants))).Methods(http.MethodGet)
	authed.Handle("/admin/merchants/{id}", staff(http.HandlerFunc(s.handleMerchant))).Methods(http.MethodGet)
	authed.Handle("/admin/orders/export", exporters(http.HandlerFunc(s.handleOrderExport))).Methods(http.MethodGet)
	authed.Handle("/admin/statistics/overview", finance(http.HandlerFunc(s.handleOverview))).Methods(http.MethodGet)
	return r
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("mock api server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until the context ends.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	serveErr := make(chan error, 1)
	s.logger.Info("mock api listening", zap.String("addr", listener.Addr().String()), zap.Strings("accounts", s.accounts.usernames()))
	go func() {
		serveErr <- s.httpServer.Serve(listener)
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
