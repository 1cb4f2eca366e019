package consolectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/louisbranch/groupbuy-console/internal/platform/logging"
	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore"
	"github.com/louisbranch/groupbuy-console/internal/services/console/guard"
	"github.com/louisbranch/groupbuy-console/internal/services/console/menu"
	"github.com/louisbranch/groupbuy-console/internal/services/console/session"
	"go.uber.org/zap"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in, run `consolectl login` first")

// Config holds CLI settings. Fields read GROUPBUY_CONSOLE_* variables.
type Config struct {
	APIURL     string        `env:"API_URL" envDefault:"http://127.0.0.1:8000"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	LogLevel   string        `env:"CTL_LOG_LEVEL" envDefault:"error"`
	Store      credstore.Config
}

// app is what one command invocation works with.
type app struct {
	out     io.Writer
	errOut  io.Writer
	logger  *zap.Logger
	store   *credstore.Store
	session *session.Session
	client  *apiclient.Client
	menu    []menu.Node

	// notified is set once a notice has been printed for this command.
	notified bool
}

func openApp(cfg Config, out, errOut io.Writer) (*app, error) {
	logger, err := logging.New("", logging.Config{Level: cfg.LogLevel, Development: true})
	if err != nil {
		return nil, err
	}
	store, err := credstore.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	a := &app{out: out, errOut: errOut, logger: logger, store: store, menu: menu.Default()}
	a.session = session.New(store, nil, logger)
	client, err := apiclient.New(apiclient.Options{
		BaseURL:        cfg.APIURL,
		Tokens:         store,
		Logger:         logger,
		Timeout:        cfg.APITimeout,
		OnUnauthorized: apiclient.UnauthorizedFunc(a.handleUnauthorized),
		Notifier:       apiclient.NotifierFunc(a.notify),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.client = client
	a.session.SetAuth(client)
	if err := a.session.Bootstrap(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	if a == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close credential store", zap.Error(err))
	}
	logging.Sync(a.logger)
}

// requireSession applies the navigation guard to protected commands.
func (a *app) requireSession() error {
	if !guard.CanEnter(a.session.Snapshot()) {
		return errNotSignedIn
	}
	return nil
}

// handleUnauthorized drops the stored session. A terminal has no screen to
// return to, so the notice tells the operator to sign in again instead.
func (a *app) handleUnauthorized(context.Context, *apiclient.Error) {
	if err := a.session.Expire(); err != nil {
		a.logger.Error("expire session", zap.Error(err))
	}
}

var (
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen)
)

func (a *app) notify(_ context.Context, notice apiclient.Notice) {
	a.notified = true
	paint := errorColor
	switch notice.Kind {
	case apiclient.KindBadRequest, apiclient.KindNotFound, apiclient.KindUnauthorized:
		paint = warnColor
	}
	paint.Fprintf(a.errOut, "%s\n", notice.Message)
	if notice.Kind == apiclient.KindUnauthorized {
		fmt.Fprintln(a.errOut, "Run `consolectl login` to sign in again.")
	}
}

func (a *app) success(format string, args ...any) {
	okColor.Fprintf(a.out, format+"\n", args...)
}

// commandError keeps failures that were already shown as notices from
// being printed twice by cobra.
type commandError struct {
	err error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func (a *app) apiFailure(err error) error {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if a.notified {
		return &commandError{err: err}
	}
	return errors.New(apiclient.MessageOf(err))
}

func roleList(roles []string) string {
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ", ")
}
