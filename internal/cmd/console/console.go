// Package console parses console server flags and launches the server.
package console

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/groupbuy-console/internal/platform/cmd"
	"github.com/louisbranch/groupbuy-console/internal/platform/logging"
	server "github.com/louisbranch/groupbuy-console/internal/services/console"
)

// ParseConfig reads GROUPBUY_CONSOLE_* variables and lets flags override them.
func ParseConfig(fs *flag.FlagSet, args []string) (server.Config, error) {
	var cfg server.Config
	err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *server.Config) {
		fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
		fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "backend API base URL")
		fs.DurationVar(&cfg.APITimeout, "api-timeout", cfg.APITimeout, "per-call backend deadline")
		fs.StringVar(&cfg.Store.Driver, "store-driver", cfg.Store.Driver, "credential store driver (bbolt, sqlite, memory)")
		fs.StringVar(&cfg.Store.Path, "store-path", cfg.Store.Path, "credential store file")
		fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	})
	if err != nil {
		return server.Config{}, err
	}
	return cfg, nil
}

// Run starts the console server.
func Run(ctx context.Context, cfg server.Config) error {
	logger, err := logging.New(entrypoint.ServiceConsole, cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceConsole, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		srv, err := server.NewServer(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("init console server: %w", err)
		}
		defer srv.Close()

		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve console: %w", err)
		}
		return nil
	})
}
