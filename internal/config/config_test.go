package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/titan-flow/fetchengine/internal/config"
)

func TestWithDefault(t *testing.T) {
	cfg, err := config.WithDefault().Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RedisAddr() != "127.0.0.1:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.RedisAddr())
	}
	if cfg.FailureThreshold() != 3 {
		t.Errorf("expected failure threshold 3, got %d", cfg.FailureThreshold())
	}
	if cfg.FailureTTL() != 3600*time.Second {
		t.Errorf("expected failure ttl 3600s, got %v", cfg.FailureTTL())
	}
	if cfg.BlacklistTTL() != 86400*time.Second {
		t.Errorf("expected blacklist ttl 86400s, got %v", cfg.BlacklistTTL())
	}
	if cfg.Backoff429TTL() != 3600*time.Second {
		t.Errorf("expected backoff ttl 3600s, got %v", cfg.Backoff429TTL())
	}
	if cfg.DefaultCrawlDelay() != time.Second {
		t.Errorf("expected default crawl delay 1s, got %v", cfg.DefaultCrawlDelay())
	}
	if cfg.SlowPathMultiplier() != 2.0 {
		t.Errorf("expected slow path multiplier 2.0, got %v", cfg.SlowPathMultiplier())
	}
	if cfg.SlowPathThreshold() != 0.48 {
		t.Errorf("expected slow path threshold 0.48, got %v", cfg.SlowPathThreshold())
	}
	if cfg.PageTimeout() != 60*time.Second {
		t.Errorf("expected page timeout 60s, got %v", cfg.PageTimeout())
	}
	if cfg.FastTimeout() != 30*time.Second {
		t.Errorf("expected fast timeout 30s, got %v", cfg.FastTimeout())
	}
	if cfg.MemEnterPct() != 90 || cfg.MemExitPct() != 85 {
		t.Errorf("expected hysteresis 90/85, got %v/%v", cfg.MemEnterPct(), cfg.MemExitPct())
	}
	if cfg.MinBodyBytes() != 500 {
		t.Errorf("expected min body bytes 500, got %d", cfg.MinBodyBytes())
	}
	if cfg.LogLevel() != "info" {
		t.Errorf("expected log level info, got %q", cfg.LogLevel())
	}
}

func TestBuild_RejectsNonPositiveFailureThreshold(t *testing.T) {
	_, err := config.WithDefault().WithFailureThreshold(0).Build()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuild_RejectsInvertedHysteresis(t *testing.T) {
	_, err := config.WithDefault().WithMemEnterPct(80).WithMemExitPct(85).Build()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilderChain_OverridesDefaults(t *testing.T) {
	cfg, err := config.WithDefault().
		WithRedisAddr("redis.internal:6380").
		WithFailureThreshold(5).
		WithMinBodyBytes(1000).
		WithTier1Proxies([]string{"proxies/tier1.txt"}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RedisAddr() != "redis.internal:6380" {
		t.Errorf("expected overridden redis addr, got %q", cfg.RedisAddr())
	}
	if cfg.FailureThreshold() != 5 {
		t.Errorf("expected overridden failure threshold, got %d", cfg.FailureThreshold())
	}
	if cfg.MinBodyBytes() != 1000 {
		t.Errorf("expected overridden min body bytes, got %d", cfg.MinBodyBytes())
	}
	if len(cfg.Tier1Proxies()) != 1 || cfg.Tier1Proxies()[0] != "proxies/tier1.txt" {
		t.Errorf("expected tier1 proxies set, got %v", cfg.Tier1Proxies())
	}
}

func TestWithConfigFile_LoadsAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	dto := map[string]any{
		"redisAddr":        "10.0.0.5:6379",
		"failureThreshold": 7,
		"logLevel":         "debug",
		"tier2Proxies":     []string{"proxies/tier2.txt"},
	}
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.WithConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RedisAddr() != "10.0.0.5:6379" {
		t.Errorf("expected redis addr from file, got %q", cfg.RedisAddr())
	}
	if cfg.FailureThreshold() != 7 {
		t.Errorf("expected failure threshold from file, got %d", cfg.FailureThreshold())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("expected log level from file, got %q", cfg.LogLevel())
	}
	// Fields absent from the file keep their defaults.
	if cfg.BlacklistTTL() != 86400*time.Second {
		t.Errorf("expected default blacklist ttl preserved, got %v", cfg.BlacklistTTL())
	}
	if len(cfg.Tier2Proxies()) != 1 || cfg.Tier2Proxies()[0] != "proxies/tier2.txt" {
		t.Errorf("expected tier2 proxies from file, got %v", cfg.Tier2Proxies())
	}
}

func TestWithConfigFile_MissingFile(t *testing.T) {
	_, err := config.WithConfigFile("/nonexistent/path/config.json")
	if !errors.Is(err, config.ErrFileDoesNotExist) {
		t.Errorf("expected ErrFileDoesNotExist, got %v", err)
	}
}

func TestWithConfigFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := config.WithConfigFile(path)
	if !errors.Is(err, config.ErrConfigParsingFail) {
		t.Errorf("expected ErrConfigParsingFail, got %v", err)
	}
}
