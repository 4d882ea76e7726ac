// Package ratelimit is the Rate-Limit Manager gate: it combines a local,
// in-process token bucket per host (pkg/limiter) with the Redis-backed
// 429 back-off key that must be authoritative across crawler instances.
// Grounded on the scheduler's original pkg/limiter wiring, generalized so
// the shared-state half lives in Redis instead of solely in-process.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/redisstate"
	"github.com/titan-flow/fetchengine/pkg/limiter"
)

// ErrBackoffActive is returned by Acquire when the domain is under an
// active 429-induced pause and the caller must not proceed.
type ErrBackoffActive struct {
	Domain string
}

func (e *ErrBackoffActive) Error() string {
	return fmt.Sprintf("ratelimit: %s is under active 429 backoff", e.Domain)
}

func backoffKey(domain identity.DomainKey) string {
	return fmt.Sprintf("ratelimit:%s:bucket", domain.Digest())
}

func blacklistKey(domain identity.DomainKey) string {
	return fmt.Sprintf("blacklist:%s", domain.Digest())
}

// Manager is the single admission point for pacing requests to a domain.
// It fails fast on an active Redis-recorded 429 pause, then blocks on the
// local token bucket (crawl delay, base delay, exponential in-process
// backoff, jitter), adding an extra multiplier of delay for requests the
// caller flags as slow-path (the orchestrator passes the circuit breaker's
// requires-full-browser marker).
type Manager struct {
	local              limiter.RateLimiter
	store              redisstate.Store
	defaultCrawlDelay  time.Duration
	backoff429TTL      time.Duration
	slowPathMultiplier float64
	blacklistTTL       time.Duration
}

func New(local limiter.RateLimiter, store redisstate.Store, defaultCrawlDelay, backoff429TTL time.Duration, slowPathMultiplier float64) *Manager {
	return &Manager{
		local:              local,
		store:              store,
		defaultCrawlDelay:  defaultCrawlDelay,
		backoff429TTL:      backoff429TTL,
		slowPathMultiplier: slowPathMultiplier,
		blacklistTTL:       24 * time.Hour,
	}
}

// WithBlacklistTTL overrides the default 24h blacklist retention.
func (m *Manager) WithBlacklistTTL(ttl time.Duration) *Manager {
	m.blacklistTTL = ttl
	return m
}

// RegisterDomain seeds the local bucket for a domain not seen before in
// this process, applying the robots-provided crawl delay, or the
// configured default when robots supplied none.
func (m *Manager) RegisterDomain(host string, robotsCrawlDelay *time.Duration) {
	delay := m.defaultCrawlDelay
	if robotsCrawlDelay != nil {
		delay = *robotsCrawlDelay
	}
	m.local.SetCrawlDelay(host, delay)
}

// Acquire blocks the caller until the domain's pacing window has elapsed.
// It returns ErrBackoffActive immediately, without sleeping, if Redis
// records an active 429 pause — per the admission pipeline's resolved
// policy that a pause gate never silently waits it out locally; callers
// short-circuit the attempt instead.
func (m *Manager) Acquire(ctx context.Context, domain identity.DomainKey, host string, isSlowPath bool) error {
	_, active, err := m.store.Get(ctx, backoffKey(domain))
	if err != nil {
		return err
	}
	if active {
		return &ErrBackoffActive{Domain: host}
	}

	delay := m.local.ResolveDelay(host)
	if isSlowPath {
		delay = time.Duration(float64(delay) * m.slowPathMultiplier)
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	m.local.MarkLastFetchAsNow(host)
	return nil
}

// Record429 sets the Redis-backed pause key and escalates the in-process
// exponential backoff for host.
func (m *Manager) Record429(ctx context.Context, domain identity.DomainKey, host string) error {
	m.local.Backoff(host)
	return m.store.SetTTL(ctx, backoffKey(domain), "backoff", m.backoff429TTL)
}

// ResetBackoff clears the in-process exponential backoff for host after a
// successful fetch, leaving any Redis-recorded pause untouched — that key
// decays on its own TTL rather than being cleared by success, matching the
// sticky semantics of a 429 pause.
func (m *Manager) ResetBackoff(host string) {
	m.local.ResetBackoff(host)
}

// CheckBlacklist reports whether domain is currently blacklisted after
// exhausting every proxy tier. A blacklisted domain must be skipped rather
// than retried until the key's TTL expires.
func (m *Manager) CheckBlacklist(ctx context.Context, domain identity.DomainKey) (bool, error) {
	_, active, err := m.store.Get(ctx, blacklistKey(domain))
	if err != nil {
		return false, err
	}
	return active, nil
}

// RecordTier2Failure blacklists domain after the proxy escalator exhausts
// every tier without a usable response.
func (m *Manager) RecordTier2Failure(ctx context.Context, domain identity.DomainKey) error {
	return m.store.SetTTL(ctx, blacklistKey(domain), "blacklisted", m.blacklistTTL)
}
