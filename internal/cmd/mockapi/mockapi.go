// Package mockapi parses mock backend flags and launches it.
package mockapi

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/groupbuy-console/internal/platform/cmd"
	"github.com/louisbranch/groupbuy-console/internal/platform/logging"
	server "github.com/louisbranch/groupbuy-console/internal/services/mockapi"
)

// Config holds mock backend command configuration.
type Config struct {
	Server server.Config
	Log    logging.Config
}

// ParseConfig reads GROUPBUY_CONSOLE_MOCKAPI_* variables and lets flags
// override them.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
		fs.DurationVar(&cfg.Server.TokenTTL, "token-ttl", cfg.Server.TokenTTL, "access token lifetime")
		fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the mock backend.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceMockAPI, cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMockAPI, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		srv, err := server.NewServer(ctx, cfg.Server, logger)
		if err != nil {
			return fmt.Errorf("init mock api: %w", err)
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve mock api: %w", err)
		}
		return nil
	})
}
