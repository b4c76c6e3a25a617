package configs

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Fatalf("cache default ttl = %v, want 5m", cfg.Cache.DefaultTTL)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("rate limit window = %v, want 1m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.KeyPrefix != "ratelimit" {
		t.Fatalf("key prefix = %q", cfg.RateLimit.KeyPrefix)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CACHE_KEY_PREFIX", "testcache")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit.DefaultLimit != 10 {
		t.Fatalf("default limit = %d, want 10", cfg.RateLimit.DefaultLimit)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("window = %v, want 30s", cfg.RateLimit.Window)
	}
	if cfg.Cache.KeyPrefix != "testcache" {
		t.Fatalf("cache prefix = %q, want testcache", cfg.Cache.KeyPrefix)
	}
}

func TestLoad_RejectsNonPositiveWindow(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "-1m")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
