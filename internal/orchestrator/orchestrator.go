// Package orchestrator is the Fetch Orchestrator: the sole control-plane
// authority over whether, and how, a single URL moves from a raw href to
// fetched content. It sequences every admission gate for one URL —
// canonicalization, memory pressure, robots.txt, blacklist, circuit
// breaker, rate limiting, proxy escalation, density-routed slow rendering,
// and ban re-classification of the rendered page — and returns exactly one terminal
// FetchOutcome. It never retries a whole attempt itself and never decides
// what the caller does next; that belongs to whatever drives Fetch in a
// loop over a frontier.
//
// Grounded on the original Scheduler's admission-authority discipline
// (only one component decides; pipeline stages classify but never decide
// retry/continue/abort) and original_source/src/core/orchestrator.rs's
// fetch_url gate sequence, generalized from its single in-process pipeline
// to gates backed by Redis so the same sequence is safe across many
// worker processes.
package orchestrator

import (
	"context"
	"net/url"
	"time"

	"github.com/titan-flow/fetchengine/internal/bandetect"
	"github.com/titan-flow/fetchengine/internal/circuitbreaker"
	"github.com/titan-flow/fetchengine/internal/density"
	"github.com/titan-flow/fetchengine/internal/fastengine"
	"github.com/titan-flow/fetchengine/internal/fingerprint"
	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/pressure"
	"github.com/titan-flow/fetchengine/internal/proxy"
	"github.com/titan-flow/fetchengine/internal/ratelimit"
	"github.com/titan-flow/fetchengine/internal/robots"
	"github.com/titan-flow/fetchengine/internal/slowengine"
	"github.com/titan-flow/fetchengine/pkg/failure"
	"github.com/titan-flow/fetchengine/pkg/retry"
	"github.com/titan-flow/fetchengine/pkg/urlutil"
)

const (
	defaultPressureMaxRetries = 3
	defaultPressureRetryDelay = 2 * time.Second
)

// Orchestrator wires every gate into one sequential Fetch call. A single
// Orchestrator is shared across all worker goroutines in a process; every
// field it holds is either itself concurrency-safe (the gates) or
// read-only after construction.
type Orchestrator struct {
	robot              robots.Robot
	pressureDispatcher *pressure.Dispatcher
	rateLimiter        *ratelimit.Manager
	breaker            *circuitbreaker.Breaker
	escalator          *proxy.Escalator
	detector           *bandetect.Detector
	renderer           *slowengine.Renderer
	densityConfig      density.Config
	retryParam         retry.RetryParam
	userAgent          string
	pressureMaxRetries int
	pressureRetryDelay time.Duration
}

// New builds an Orchestrator from already-constructed gates. renderer may
// be nil: a slow-route verdict then falls through to the fast-path HTML
// unchanged rather than failing the attempt, since not every deployment
// runs a headless renderer.
func New(
	robot robots.Robot,
	pressureDispatcher *pressure.Dispatcher,
	rateLimiter *ratelimit.Manager,
	breaker *circuitbreaker.Breaker,
	escalator *proxy.Escalator,
	detector *bandetect.Detector,
	renderer *slowengine.Renderer,
	densityConfig density.Config,
	retryParam retry.RetryParam,
	userAgent string,
) *Orchestrator {
	return &Orchestrator{
		robot:              robot,
		pressureDispatcher: pressureDispatcher,
		rateLimiter:        rateLimiter,
		breaker:            breaker,
		escalator:          escalator,
		detector:           detector,
		renderer:           renderer,
		densityConfig:      densityConfig,
		retryParam:         retryParam,
		userAgent:          userAgent,
		pressureMaxRetries: defaultPressureMaxRetries,
		pressureRetryDelay: defaultPressureRetryDelay,
	}
}

// WithPressureRetry overrides the bounded wait-and-recheck policy used
// when the memory dispatcher reports pressure at admission time.
func (o *Orchestrator) WithPressureRetry(maxRetries int, delay time.Duration) *Orchestrator {
	o.pressureMaxRetries = maxRetries
	o.pressureRetryDelay = delay
	return o
}

// Fetch runs rawHref (resolved against base) through every admission gate
// in sequence, gates are sequential per-URL but this method holds no lock
// of its own — many goroutines may call Fetch concurrently for different
// URLs, and the gates themselves (Redis-backed) arbitrate any shared state.
func (o *Orchestrator) Fetch(ctx context.Context, rawHref, base string, crawlDepth int) FetchOutcome {
	canonical, ok := urlutil.Canonicalize(rawHref, base)
	if !ok {
		return FetchOutcome{Kind: OutcomeFailed, Err: &CanonicalizeError{Href: rawHref, Base: base}}
	}

	parsed, err := url.Parse(canonical)
	if err != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: &CanonicalizeError{Href: rawHref, Base: base}}
	}
	domain := identity.NewDomainKey(parsed.Hostname())

	if !o.awaitPressureClear(ctx) {
		return FetchOutcome{Kind: OutcomeSkipped, SkipReason: SkipUnderPressure}
	}

	decision, robotsErr := o.robot.Decide(*parsed)
	if robotsErr != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: robotsErr}
	}
	if !decision.Allowed {
		return FetchOutcome{Kind: OutcomeSkipped, SkipReason: SkipDisallowedByRobots}
	}

	var robotsDelay *time.Duration
	if decision.CrawlDelay > 0 {
		d := decision.CrawlDelay
		robotsDelay = &d
	}
	o.rateLimiter.RegisterDomain(parsed.Host, robotsDelay)

	blacklisted, err := o.rateLimiter.CheckBlacklist(ctx, domain)
	if err != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "check_blacklist", Err: err}}
	}
	if blacklisted {
		return FetchOutcome{Kind: OutcomeSkipped, SkipReason: SkipBlacklisted}
	}

	breakerResult, err := o.breaker.Check(ctx, domain)
	if err != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "check_breaker", Err: err}}
	}
	if breakerResult.State == circuitbreaker.Open {
		if err := o.breaker.HandoffToQueue(ctx, canonical); err != nil {
			return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "handoff", Err: err}}
		}
		return FetchOutcome{Kind: OutcomeHandedOff}
	}

	if err := o.rateLimiter.Acquire(ctx, domain, parsed.Host, breakerResult.RequiresFullBrowser); err != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "acquire", Err: err}}
	}

	fetchParam := fastengine.NewFetchParam(*parsed, o.userAgent)
	escOutcome, fetchErr := o.escalator.FetchWithEscalation(ctx, crawlDepth, fetchParam, o.retryParam)
	if fetchErr != nil {
		return o.handleFetchFailure(ctx, domain, parsed.Host, canonical, fetchErr)
	}

	html := string(escOutcome.Result.Body())
	finalURL := escOutcome.Result.URL().String()

	if _, route := density.Classify(html, o.densityConfig); route == density.RouteSlow && o.renderer != nil {
		renderResult, renderErr := o.renderer.Render(ctx, finalURL)
		if renderErr != nil {
			return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "slow_render", Err: renderErr}}
		}
		if o.detector.Classify(200, []byte(renderResult.HTML)).EscalationWorthy() {
			return FetchOutcome{Kind: OutcomeSkipped, SkipReason: SkipBannedAfterRender}
		}
		html = renderResult.HTML
		finalURL = renderResult.FinalURL
	}

	o.rateLimiter.ResetBackoff(parsed.Host)

	return FetchOutcome{
		Kind:       OutcomeContent,
		HTML:       html,
		FinalURL:   finalURL,
		HeadDigest: fingerprint.Digest(html),
		Tier:       escOutcome.Tier.String(),
	}
}

// handleFetchFailure records the 429/tier-exhaustion side effects a failed
// escalation implies, then feeds the circuit breaker — a handoff there
// wins over returning the raw error, since the URL is still actionable via
// the slow queue even though the fast path gave up on it.
func (o *Orchestrator) handleFetchFailure(ctx context.Context, domain identity.DomainKey, host, canonical string, fetchErr failure.ClassifiedError) FetchOutcome {
	if fastErr, ok := fetchErr.(*fastengine.FetchError); ok && fastErr.Cause == fastengine.ErrCauseRequestTooMany {
		_ = o.rateLimiter.Record429(ctx, domain, host)
	}
	if _, ok := fetchErr.(*proxy.EscalationExhaustedError); ok {
		_ = o.rateLimiter.RecordTier2Failure(ctx, domain)
	}

	handedOff, err := o.breaker.HandleFailure(ctx, domain, canonical)
	if err != nil {
		return FetchOutcome{Kind: OutcomeFailed, Err: &GateError{Op: "record_failure", Err: err}}
	}
	if handedOff {
		return FetchOutcome{Kind: OutcomeHandedOff}
	}
	return FetchOutcome{Kind: OutcomeFailed, Err: fetchErr}
}

// awaitPressureClear blocks in bounded, short steps while the memory
// dispatcher reports pressure, giving the system a chance to recover
// before giving up on this one URL. It never blocks indefinitely: after
// pressureMaxRetries checks it reports whatever the dispatcher says last.
func (o *Orchestrator) awaitPressureClear(ctx context.Context) bool {
	if !o.pressureDispatcher.UnderPressure() {
		return true
	}
	for i := 0; i < o.pressureMaxRetries; i++ {
		timer := time.NewTimer(o.pressureRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if !o.pressureDispatcher.UnderPressure() {
			return true
		}
	}
	return false
}
