// Package circuitbreaker prevents repeated hammering of a hostile domain
// from the fast path and diverts it to the slow headless-render queue.
//
// Grounded on the failure-counter/sticky-flag state machine described for
// the original crawl engine's circuit breaker: a decaying INCR-based
// counter and a separate sticky flag that only an explicit reset clears.
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/redisstate"
)

const queueKey = "queue:slow_render_tasks"

// Config carries the two tunables that govern when a domain trips open.
type Config struct {
	FailureThreshold int           // strict-greater-than count before Open
	FailureTTL       time.Duration // decay window for the counter
}

// DefaultConfig matches the knobs table's defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, FailureTTL: 3600 * time.Second}
}

// Breaker is the Redis-backed circuit breaker. It holds no per-domain state
// locally: every check and mutation reads or writes through store, so
// peer crawler instances observe the same state within one round trip.
type Breaker struct {
	store  redisstate.Store
	config Config
}

func New(store redisstate.Store, config Config) *Breaker {
	return &Breaker{store: store, config: config}
}

func failuresKey(domain identity.DomainKey) string {
	return fmt.Sprintf("failures:%s:count", domain.Digest())
}

func stickyKey(domain identity.DomainKey) string {
	return fmt.Sprintf("domain_config:%s:requires_full_browser", domain.Digest())
}

// Check returns the current circuit state without mutating anything.
func (b *Breaker) Check(ctx context.Context, domain identity.DomainKey) (CheckResult, error) {
	countRaw, _, err := b.store.Get(ctx, failuresKey(domain))
	if err != nil {
		return CheckResult{}, &BreakerError{Op: "check.count", Err: err}
	}
	count := parseCount(countRaw)

	stickyRaw, stickySet, err := b.store.Get(ctx, stickyKey(domain))
	if err != nil {
		return CheckResult{}, &BreakerError{Op: "check.sticky", Err: err}
	}
	sticky := stickySet && stickyRaw == "true"

	state := Closed
	if sticky || count > int64(b.config.FailureThreshold) {
		state = Open
	}

	return CheckResult{State: state, FailureCount: count, RequiresFullBrowser: sticky}, nil
}

// RecordFailure increments the failure counter, attaching the TTL on the
// increment that takes it from 0 to 1, and trips the sticky flag once the
// count exceeds the threshold.
func (b *Breaker) RecordFailure(ctx context.Context, domain identity.DomainKey) (CheckResult, error) {
	count, err := b.store.IncrWithTTLOnFirst(ctx, failuresKey(domain), b.config.FailureTTL)
	if err != nil {
		return CheckResult{}, &BreakerError{Op: "record_failure.incr", Err: err}
	}

	sticky := count > int64(b.config.FailureThreshold)
	if sticky {
		if err := b.store.SetSticky(ctx, stickyKey(domain), "true"); err != nil {
			return CheckResult{}, &BreakerError{Op: "record_failure.sticky", Err: err}
		}
	}

	state := Closed
	if sticky {
		state = Open
	}
	return CheckResult{State: state, FailureCount: count, RequiresFullBrowser: sticky}, nil
}

// HandoffToQueue pushes a canonical URL onto the slow-render FIFO for an
// out-of-band renderer to consume via BLPOP.
func (b *Breaker) HandoffToQueue(ctx context.Context, canonicalURL string) error {
	if err := b.store.RPush(ctx, queueKey, canonicalURL); err != nil {
		return &BreakerError{Op: "handoff", Err: err}
	}
	return nil
}

// HandleFailure is the composite operation the orchestrator calls on a
// fast-path failure: record the failure and, if that recording trips the
// circuit open, hand the URL off to the slow queue. The bool return
// reports whether a handoff occurred.
func (b *Breaker) HandleFailure(ctx context.Context, domain identity.DomainKey, canonicalURL string) (bool, error) {
	result, err := b.RecordFailure(ctx, domain)
	if err != nil {
		return false, err
	}
	if result.State != Open {
		return false, nil
	}
	if err := b.HandoffToQueue(ctx, canonicalURL); err != nil {
		return false, err
	}
	return true, nil
}

// Reset explicitly clears both the decaying counter and the sticky flag.
// This is the only way the sticky flag clears — it never auto-expires.
func (b *Breaker) Reset(ctx context.Context, domain identity.DomainKey) error {
	if err := b.store.Delete(ctx, failuresKey(domain), stickyKey(domain)); err != nil {
		return &BreakerError{Op: "reset", Err: err}
	}
	return nil
}

func parseCount(raw string) int64 {
	var n int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
