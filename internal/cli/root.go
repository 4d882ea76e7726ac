package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/titan-flow/fetchengine/internal/bandetect"
	"github.com/titan-flow/fetchengine/internal/build"
	"github.com/titan-flow/fetchengine/internal/circuitbreaker"
	"github.com/titan-flow/fetchengine/internal/config"
	"github.com/titan-flow/fetchengine/internal/density"
	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/metadata"
	"github.com/titan-flow/fetchengine/internal/orchestrator"
	"github.com/titan-flow/fetchengine/internal/pressure"
	"github.com/titan-flow/fetchengine/internal/proxy"
	"github.com/titan-flow/fetchengine/internal/ratelimit"
	"github.com/titan-flow/fetchengine/internal/redisstate"
	"github.com/titan-flow/fetchengine/internal/robots"
	"github.com/titan-flow/fetchengine/internal/slowengine"
	"github.com/titan-flow/fetchengine/pkg/limiter"
	"github.com/titan-flow/fetchengine/pkg/retry"
	"github.com/titan-flow/fetchengine/pkg/timeutil"
)

var (
	cfgFile          string
	redisAddr        string
	failureThreshold int
	failureTTL       time.Duration
	blacklistTTL     time.Duration
	backoff429TTL    time.Duration
	defaultCrawlDelay time.Duration
	userAgent        string
	slowPathMultiplier float64
	pageTimeout      time.Duration
	fastTimeout      time.Duration
	memEnterPct      float64
	memExitPct       float64
	minBodyBytes     int
	tier1Proxies     []string
	tier2Proxies     []string
	logLevel         string
	enableSlowEngine bool
	base             string
	showVersion      bool
)

// rootCmd fetches one or more URLs through the admission pipeline and
// reports the outcome of each, one line per URL.
var rootCmd = &cobra.Command{
	Use:   "fetchengine [urls...]",
	Short: "Fetch URLs through the anti-ban admission pipeline.",
	Long: `fetchengine runs each given URL through the full fetch-and-admission
pipeline — memory pressure, robots.txt, blacklist, circuit breaker, rate
limiting, proxy escalation, ban detection, and density-routed slow
rendering — and reports the terminal outcome for each.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(build.FullVersion())
			return
		}

		cfg, err := InitConfigWithError()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		orch, cleanup, err := buildOrchestrator(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		defer cleanup()

		ctx := context.Background()
		baseURL := base
		if baseURL == "" && len(args) > 0 {
			baseURL = args[0]
		}

		for _, raw := range args {
			outcome := orch.Fetch(ctx, raw, baseURL, 0)
			report(raw, outcome)
		}
	},
}

func report(raw string, outcome orchestrator.FetchOutcome) {
	switch outcome.Kind {
	case orchestrator.OutcomeContent:
		fmt.Printf("%s: content tier=%s bytes=%d head_digest=%d final_url=%s\n",
			raw, outcome.Tier, len(outcome.HTML), outcome.HeadDigest, outcome.FinalURL)
	case orchestrator.OutcomeHandedOff:
		fmt.Printf("%s: handed_off\n", raw)
	case orchestrator.OutcomeSkipped:
		fmt.Printf("%s: skipped reason=%s\n", raw, outcome.SkipReason)
	case orchestrator.OutcomeFailed:
		fmt.Printf("%s: failed %v\n", raw, outcome.Err)
	}
}

// buildOrchestrator wires the single shared Redis client and every gate,
// matching the concurrency model's rule that no gate holds package-level
// global state — everything is constructed once here and threaded through.
func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, func(), error) {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	store := redisstate.NewGoRedisStore(redisClient)
	recorder := metadata.NewRecorder("fetchengine-cli", cfg.LogLevel())

	breaker := circuitbreaker.New(store, circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold(),
		FailureTTL:       cfg.FailureTTL(),
	})

	rateLimiter := ratelimit.New(
		limiter.NewConcurrentRateLimiter(),
		store,
		cfg.DefaultCrawlDelay(),
		cfg.Backoff429TTL(),
		cfg.SlowPathMultiplier(),
	).WithBlacklistTTL(cfg.BlacklistTTL())

	dispatcher := pressure.New(pressure.ProcMeminfoReader{}, pressure.Config{
		EnterPercent: cfg.MemEnterPct(),
		ExitPercent:  cfg.MemExitPct(),
		PollInterval: time.Second,
	})
	dispatcher.Start()

	cachedRobot := robots.NewCachedRobot(&recorder)
	cachedRobot.Init(cfg.UserAgent())

	detector := bandetect.New(cfg.MinBodyBytes())
	escalator := proxy.New(
		cfg.Tier1Proxies(),
		cfg.Tier2Proxies(),
		proxy.DefaultEngineFactory(&recorder),
		&recorder,
		detector,
		identity.Chrome120,
		cfg.FastTimeout(),
	)

	var renderer *slowengine.Renderer
	if enableSlowEngine {
		renderer = slowengine.New(cfg.PageTimeout(), 4)
	}

	densityConfig := density.DefaultConfig()
	densityConfig.Threshold = cfg.SlowPathThreshold()

	retryParam := retry.NewRetryParam(
		500*time.Millisecond,
		200*time.Millisecond,
		time.Now().UnixNano(),
		3,
		timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 10*time.Second),
	)

	orch := orchestrator.New(
		&cachedRobot,
		dispatcher,
		rateLimiter,
		breaker,
		escalator,
		detector,
		renderer,
		densityConfig,
		retryParam,
		cfg.UserAgent(),
	)

	cleanup := func() {
		dispatcher.Stop()
		_ = redisClient.Close()
	}
	return orch, cleanup, nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to run once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringVar(&base, "base", "", "base URL to resolve relative hrefs against (defaults to the first URL argument)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address (host:port)")
	rootCmd.PersistentFlags().IntVar(&failureThreshold, "failure-threshold", 0, "consecutive failures before the circuit trips open")
	rootCmd.PersistentFlags().DurationVar(&failureTTL, "failure-ttl", 0, "decay window for the circuit breaker's failure counter")
	rootCmd.PersistentFlags().DurationVar(&blacklistTTL, "blacklist-ttl", 0, "retention for a tier-2-exhausted domain blacklist entry")
	rootCmd.PersistentFlags().DurationVar(&backoff429TTL, "backoff-429-ttl", 0, "retention for a 429-induced rate-limit pause")
	rootCmd.PersistentFlags().DurationVar(&defaultCrawlDelay, "default-crawl-delay", 0, "pacing delay used when robots.txt specifies none")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests and robots.txt matching")
	rootCmd.PersistentFlags().Float64Var(&slowPathMultiplier, "slow-path-multiplier", 0, "pacing multiplier applied to slow-routed requests")
	rootCmd.PersistentFlags().DurationVar(&pageTimeout, "page-timeout", 0, "headless render timeout")
	rootCmd.PersistentFlags().DurationVar(&fastTimeout, "fast-timeout", 0, "fast HTTP engine request timeout")
	rootCmd.PersistentFlags().Float64Var(&memEnterPct, "mem-enter-pct", 0, "memory-used percentage that trips the pressure gate on")
	rootCmd.PersistentFlags().Float64Var(&memExitPct, "mem-exit-pct", 0, "memory-used percentage that clears the pressure gate")
	rootCmd.PersistentFlags().IntVar(&minBodyBytes, "min-body-bytes", 0, "response bodies shorter than this are treated as empty/banned")
	rootCmd.PersistentFlags().StringArrayVar(&tier1Proxies, "tier1-proxy", []string{}, "datacenter proxy URL (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&tier2Proxies, "tier2-proxy", []string{}, "residential proxy URL (can be repeated)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "structured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&enableSlowEngine, "enable-slow-engine", false, "launch a headless renderer for density-routed slow pages")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print the build version and exit")
}

// InitConfigWithError reads the engine config from a file when --config-file
// is set, else builds it from defaults overridden by CLI flags.
func InitConfigWithError() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	builder := config.WithDefault()

	if redisAddr != "" {
		builder = builder.WithRedisAddr(redisAddr)
	}
	if failureThreshold > 0 {
		builder = builder.WithFailureThreshold(failureThreshold)
	}
	if failureTTL > 0 {
		builder = builder.WithFailureTTL(failureTTL)
	}
	if blacklistTTL > 0 {
		builder = builder.WithBlacklistTTL(blacklistTTL)
	}
	if backoff429TTL > 0 {
		builder = builder.WithBackoff429TTL(backoff429TTL)
	}
	if defaultCrawlDelay > 0 {
		builder = builder.WithDefaultCrawlDelay(defaultCrawlDelay)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if slowPathMultiplier > 0 {
		builder = builder.WithSlowPathMultiplier(slowPathMultiplier)
	}
	if pageTimeout > 0 {
		builder = builder.WithPageTimeout(pageTimeout)
	}
	if fastTimeout > 0 {
		builder = builder.WithFastTimeout(fastTimeout)
	}
	if memEnterPct > 0 {
		builder = builder.WithMemEnterPct(memEnterPct)
	}
	if memExitPct > 0 {
		builder = builder.WithMemExitPct(memExitPct)
	}
	if minBodyBytes > 0 {
		builder = builder.WithMinBodyBytes(minBodyBytes)
	}
	if len(tier1Proxies) > 0 {
		builder = builder.WithTier1Proxies(tier1Proxies)
	}
	if len(tier2Proxies) > 0 {
		builder = builder.WithTier2Proxies(tier2Proxies)
	}
	if logLevel != "" {
		builder = builder.WithLogLevel(logLevel)
	}

	return builder.Build()
}

// ResetFlags restores every flag-backed variable to its zero value; tests
// use this between cases since cobra flags are process-global.
func ResetFlags() {
	cfgFile = ""
	base = ""
	redisAddr = ""
	failureThreshold = 0
	failureTTL = 0
	blacklistTTL = 0
	backoff429TTL = 0
	defaultCrawlDelay = 0
	userAgent = ""
	slowPathMultiplier = 0
	pageTimeout = 0
	fastTimeout = 0
	memEnterPct = 0
	memExitPct = 0
	minBodyBytes = 0
	tier1Proxies = []string{}
	tier2Proxies = []string{}
	logLevel = ""
	enableSlowEngine = false
	showVersion = false
}

func SetConfigFileForTest(path string)         { cfgFile = path }
func SetRedisAddrForTest(addr string)          { redisAddr = addr }
func SetFailureThresholdForTest(n int)         { failureThreshold = n }
func SetUserAgentForTest(ua string)            { userAgent = ua }
func SetTier1ProxiesForTest(proxies []string)  { tier1Proxies = append([]string{}, proxies...) }
func SetTier2ProxiesForTest(proxies []string)  { tier2Proxies = append([]string{}, proxies...) }
func SetLogLevelForTest(level string)          { logLevel = level }
