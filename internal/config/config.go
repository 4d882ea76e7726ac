package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the engine's full runtime configuration: Redis addressing,
// circuit-breaker and backoff thresholds, density-routing cutoffs, and
// identity/timeout knobs. Built via WithDefault().Build() or loaded from a
// JSON file with WithConfigFile.
type Config struct {
	//===============
	// Redis / state
	//===============
	redisAddr string

	//===============
	// Circuit breaker
	//===============
	failureThreshold int
	failureTTL       time.Duration
	blacklistTTL     time.Duration
	backoff429TTL    time.Duration

	//===============
	// Politeness
	//===============
	defaultCrawlDelay time.Duration
	userAgent         string

	//===============
	// Density routing
	//===============
	slowPathMultiplier float64
	slowPathThreshold  float64

	//===============
	// Engine timeouts
	//===============
	pageTimeout time.Duration
	fastTimeout time.Duration

	//===============
	// Memory pressure
	//===============
	memEnterPct float64
	memExitPct  float64

	//===============
	// Ban detection
	//===============
	minBodyBytes int

	//===============
	// Proxy pools
	//===============
	tier1Proxies []string
	tier2Proxies []string

	//===============
	// Observability
	//===============
	logLevel string
}

type configDTO struct {
	RedisAddr          string   `json:"redisAddr,omitempty"`
	FailureThreshold   int      `json:"failureThreshold,omitempty"`
	FailureTTLSecs     int      `json:"failureTtlSecs,omitempty"`
	BlacklistTTLSecs   int      `json:"blacklistTtlSecs,omitempty"`
	Backoff429TTLSecs  int      `json:"backoff429TtlSecs,omitempty"`
	DefaultCrawlDelay  int      `json:"defaultCrawlDelayMs,omitempty"`
	UserAgent          string   `json:"userAgent,omitempty"`
	SlowPathMultiplier float64  `json:"slowPathMultiplier,omitempty"`
	SlowPathThreshold  float64  `json:"slowPathThreshold,omitempty"`
	PageTimeoutMs      int      `json:"pageTimeoutMs,omitempty"`
	FastTimeoutSecs    int      `json:"fastTimeoutSecs,omitempty"`
	MemEnterPct        float64  `json:"memEnterPct,omitempty"`
	MemExitPct         float64  `json:"memExitPct,omitempty"`
	MinBodyBytes       int      `json:"minBodyBytes,omitempty"`
	Tier1Proxies       []string `json:"tier1Proxies,omitempty"`
	Tier2Proxies       []string `json:"tier2Proxies,omitempty"`
	LogLevel           string   `json:"logLevel,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg, err := WithDefault().Build()
	if err != nil {
		return Config{}, err
	}

	if dto.RedisAddr != "" {
		cfg.redisAddr = dto.RedisAddr
	}
	if dto.FailureThreshold != 0 {
		cfg.failureThreshold = dto.FailureThreshold
	}
	if dto.FailureTTLSecs != 0 {
		cfg.failureTTL = time.Duration(dto.FailureTTLSecs) * time.Second
	}
	if dto.BlacklistTTLSecs != 0 {
		cfg.blacklistTTL = time.Duration(dto.BlacklistTTLSecs) * time.Second
	}
	if dto.Backoff429TTLSecs != 0 {
		cfg.backoff429TTL = time.Duration(dto.Backoff429TTLSecs) * time.Second
	}
	if dto.DefaultCrawlDelay != 0 {
		cfg.defaultCrawlDelay = time.Duration(dto.DefaultCrawlDelay) * time.Millisecond
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.SlowPathMultiplier != 0 {
		cfg.slowPathMultiplier = dto.SlowPathMultiplier
	}
	if dto.SlowPathThreshold != 0 {
		cfg.slowPathThreshold = dto.SlowPathThreshold
	}
	if dto.PageTimeoutMs != 0 {
		cfg.pageTimeout = time.Duration(dto.PageTimeoutMs) * time.Millisecond
	}
	if dto.FastTimeoutSecs != 0 {
		cfg.fastTimeout = time.Duration(dto.FastTimeoutSecs) * time.Second
	}
	if dto.MemEnterPct != 0 {
		cfg.memEnterPct = dto.MemEnterPct
	}
	if dto.MemExitPct != 0 {
		cfg.memExitPct = dto.MemExitPct
	}
	if dto.MinBodyBytes != 0 {
		cfg.minBodyBytes = dto.MinBodyBytes
	}
	if len(dto.Tier1Proxies) > 0 {
		cfg.tier1Proxies = dto.Tier1Proxies
	}
	if len(dto.Tier2Proxies) > 0 {
		cfg.tier2Proxies = dto.Tier2Proxies
	}
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault seeds a builder with every default from the knobs table.
func WithDefault() *Config {
	return &Config{
		redisAddr:          "127.0.0.1:6379",
		failureThreshold:   3,
		failureTTL:         3600 * time.Second,
		blacklistTTL:       86400 * time.Second,
		backoff429TTL:      3600 * time.Second,
		defaultCrawlDelay:  1000 * time.Millisecond,
		userAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36",
		slowPathMultiplier: 2.0,
		slowPathThreshold:  0.48,
		pageTimeout:        60000 * time.Millisecond,
		fastTimeout:        30 * time.Second,
		memEnterPct:        90,
		memExitPct:         85,
		minBodyBytes:       500,
		logLevel:           "info",
	}
}

func (c *Config) WithRedisAddr(addr string) *Config {
	c.redisAddr = addr
	return c
}

func (c *Config) WithFailureThreshold(n int) *Config {
	c.failureThreshold = n
	return c
}

func (c *Config) WithFailureTTL(d time.Duration) *Config {
	c.failureTTL = d
	return c
}

func (c *Config) WithBlacklistTTL(d time.Duration) *Config {
	c.blacklistTTL = d
	return c
}

func (c *Config) WithBackoff429TTL(d time.Duration) *Config {
	c.backoff429TTL = d
	return c
}

func (c *Config) WithDefaultCrawlDelay(d time.Duration) *Config {
	c.defaultCrawlDelay = d
	return c
}

func (c *Config) WithUserAgent(ua string) *Config {
	c.userAgent = ua
	return c
}

func (c *Config) WithSlowPathMultiplier(m float64) *Config {
	c.slowPathMultiplier = m
	return c
}

func (c *Config) WithSlowPathThreshold(t float64) *Config {
	c.slowPathThreshold = t
	return c
}

func (c *Config) WithPageTimeout(d time.Duration) *Config {
	c.pageTimeout = d
	return c
}

func (c *Config) WithFastTimeout(d time.Duration) *Config {
	c.fastTimeout = d
	return c
}

func (c *Config) WithMemEnterPct(pct float64) *Config {
	c.memEnterPct = pct
	return c
}

func (c *Config) WithMemExitPct(pct float64) *Config {
	c.memExitPct = pct
	return c
}

func (c *Config) WithMinBodyBytes(n int) *Config {
	c.minBodyBytes = n
	return c
}

func (c *Config) WithTier1Proxies(paths []string) *Config {
	c.tier1Proxies = paths
	return c
}

func (c *Config) WithTier2Proxies(paths []string) *Config {
	c.tier2Proxies = paths
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) Build() (Config, error) {
	if c.failureThreshold <= 0 {
		return Config{}, fmt.Errorf("%w: failureThreshold must be positive", ErrInvalidConfig)
	}
	if c.memExitPct >= c.memEnterPct {
		return Config{}, fmt.Errorf("%w: memExitPct must be lower than memEnterPct", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) RedisAddr() string              { return c.redisAddr }
func (c Config) FailureThreshold() int          { return c.failureThreshold }
func (c Config) FailureTTL() time.Duration      { return c.failureTTL }
func (c Config) BlacklistTTL() time.Duration    { return c.blacklistTTL }
func (c Config) Backoff429TTL() time.Duration   { return c.backoff429TTL }
func (c Config) DefaultCrawlDelay() time.Duration {
	return c.defaultCrawlDelay
}
func (c Config) UserAgent() string          { return c.userAgent }
func (c Config) SlowPathMultiplier() float64 { return c.slowPathMultiplier }
func (c Config) SlowPathThreshold() float64  { return c.slowPathThreshold }
func (c Config) PageTimeout() time.Duration  { return c.pageTimeout }
func (c Config) FastTimeout() time.Duration  { return c.fastTimeout }
func (c Config) MemEnterPct() float64        { return c.memEnterPct }
func (c Config) MemExitPct() float64         { return c.memExitPct }
func (c Config) MinBodyBytes() int           { return c.minBodyBytes }
func (c Config) LogLevel() string            { return c.logLevel }

func (c Config) Tier1Proxies() []string {
	out := make([]string, len(c.tier1Proxies))
	copy(out, c.tier1Proxies)
	return out
}

func (c Config) Tier2Proxies() []string {
	out := make([]string, len(c.tier2Proxies))
	copy(out, c.tier2Proxies)
	return out
}
