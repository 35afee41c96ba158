package config

import (
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
}

func TestWithEnvOverridesMaxConnections(t *testing.T) {
	t.Setenv("MCP_MAX_CONNECTIONS", "10")
	cfg, err := Defaults().WithEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConnections != 10 {
		t.Fatalf("MaxConnections = %d, want 10", cfg.MaxConnections)
	}
}

func TestWithEnvOverridesIdleTimeout(t *testing.T) {
	t.Setenv("MCP_IDLE_TIMEOUT", "30s")
	cfg, err := Defaults().WithEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Fatalf("IdleTimeout = %s, want 30s", cfg.IdleTimeout)
	}
}

func TestWithEnvRejectsUnparsable(t *testing.T) {
	t.Setenv("MCP_MAX_CONNECTIONS", "not-a-number")
	if _, err := Defaults().WithEnv(); err == nil {
		t.Fatal("expected error for unparsable MCP_MAX_CONNECTIONS")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c Config) Config
	}{
		{"negative max connections", func(c Config) Config { c.MaxConnections = -1; return c }},
		{"zero idle timeout", func(c Config) Config { c.IdleTimeout = 0; return c }},
		{"negative cache size", func(c Config) Config { c.CacheSizeLimit = -1; return c }},
		{"margin above one", func(c Config) Config { c.CompactionMargin = 1.5; return c }},
		{"no supported versions", func(c Config) Config { c.SupportedProtocolVersions = nil; return c }},
		{"zero cache expiration", func(c Config) Config { c.CacheDefaultExpiration = 0; return c }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.mut(Defaults())
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
