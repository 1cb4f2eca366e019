package mockapi

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mockapi", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.TokenTTL != 2*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Server.TokenTTL)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestParseConfigReadsPrefixedEnv(t *testing.T) {
	t.Setenv("GROUPBUY_CONSOLE_MOCKAPI_SIGNING_KEY", "from-env")
	fs := flag.NewFlagSet("mockapi", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Server.SigningKey != "from-env" {
		t.Fatalf("signing key = %q", cfg.Server.SigningKey)
	}
	if cfg.Server.Addr != "127.0.0.1:0" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}
