package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"GROUPBUY_CONSOLE_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	APIURL  string        `env:"API_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("GROUPBUY_CONSOLE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithPrefixReadsPrefixedNames(t *testing.T) {
	t.Setenv("GROUPBUY_CONSOLE_API_URL", "http://api.internal:9000")
	t.Setenv("API_URL", "http://ignored")

	var cfg prefixedTestConfig
	if err := ParseEnvWithPrefix(&cfg, EnvPrefix); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.APIURL != "http://api.internal:9000" {
		t.Fatalf("api url = %q, want %q", cfg.APIURL, "http://api.internal:9000")
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v, want %v", cfg.Timeout, 10*time.Second)
	}
}

func TestParseEnvWithPrefixWrapsErrors(t *testing.T) {
	t.Setenv("GROUPBUY_CONSOLE_TIMEOUT", "soon")

	var cfg prefixedTestConfig
	err := ParseEnvWithPrefix(&cfg, EnvPrefix)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env GROUPBUY_CONSOLE_*") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWritefAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	writef(&buf, "fatal: %s", "boom")
	if got := buf.String(); got != "fatal: boom\n" {
		t.Fatalf("output = %q, want %q", got, "fatal: boom\n")
	}
}
