package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore/bbolt"
	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore/sqlite"
)

// Backend drivers accepted by Open.
const (
	DriverBolt   = "bbolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config selects and locates the backend.
type Config struct {
	Driver string `env:"STORE_DRIVER" envDefault:"bbolt"`
	Path   string `env:"STORE_PATH"`
}

// Open opens the configured backend and wraps it in a Store.
func Open(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverBolt
	}
	switch driver {
	case DriverMemory:
		return New(NewMemory()), nil
	case DriverBolt, DriverSQLite:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		var err error
		path, err = DefaultPath(driver)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	var kv KV
	var err error
	if driver == DriverSQLite {
		kv, err = sqlite.Open(path)
	} else {
		kv, err = bbolt.Open(path)
	}
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// DefaultPath places the store under the user's config directory.
func DefaultPath(driver string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	name := "credentials.db"
	if driver == DriverSQLite {
		name = "credentials.sqlite"
	}
	return filepath.Join(dir, "groupbuy-console", name), nil
}
