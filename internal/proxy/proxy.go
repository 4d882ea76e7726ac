// Package proxy implements the three-tier proxy escalation ladder: a
// domain is fetched direct first, and only pushed to datacenter then
// residential proxies when the response looks banned rather than merely
// absent.
//
// Grounded on original_source/src/network/proxy.rs's ProxyManager:
// fetch_with_escalation/execute_tier/get_next_proxy/should_escalate,
// generalized from its fixed two-pool Vec<String> rotation to Go's
// mutex-guarded cursor idiom.
package proxy

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/titan-flow/fetchengine/internal/bandetect"
	"github.com/titan-flow/fetchengine/internal/fastengine"
	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/metadata"
	"github.com/titan-flow/fetchengine/pkg/failure"
	"github.com/titan-flow/fetchengine/pkg/retry"
)

// Tier names the rung of the escalation ladder a request was served from.
type Tier int

const (
	Tier0Direct Tier = iota
	Tier1Datacenter
	Tier2Residential
)

func (t Tier) String() string {
	switch t {
	case Tier0Direct:
		return "tier0_direct"
	case Tier1Datacenter:
		return "tier1_datacenter"
	case Tier2Residential:
		return "tier2_residential"
	default:
		return "unknown_tier"
	}
}

// EngineFactory builds a fresh fastengine.Fetcher for one attempt. A new
// engine (and therefore a new cookie jar and TLS connection) is required
// per attempt since a banned identity must not be reused across tiers.
type EngineFactory func(profile identity.Profile, proxyURL *url.URL, timeout time.Duration) (fastengine.Fetcher, error)

// Outcome bundles a successful fetch with the tier it was finally served
// from, for the caller's telemetry and circuit-breaker bookkeeping.
type Outcome struct {
	Result fastengine.FetchResult
	Tier   Tier
}

// Escalator drives the ladder. It holds no knowledge of bans itself —
// bandetect.Detector decides whether a 2xx response is actually a soft
// ban, and Classification.EscalationWorthy there determines whether the
// ladder advances.
type Escalator struct {
	tier1Proxies []string
	tier2Proxies []string
	t1mu         sync.Mutex
	t1idx        int
	t2mu         sync.Mutex
	t2idx        int

	newEngine    EngineFactory
	metadataSink metadata.MetadataSink
	detector     *bandetect.Detector
	profile      identity.Profile
	timeout      time.Duration
}

func New(
	tier1Proxies, tier2Proxies []string,
	newEngine EngineFactory,
	metadataSink metadata.MetadataSink,
	detector *bandetect.Detector,
	profile identity.Profile,
	timeout time.Duration,
) *Escalator {
	return &Escalator{
		tier1Proxies: tier1Proxies,
		tier2Proxies: tier2Proxies,
		newEngine:    newEngine,
		metadataSink: metadataSink,
		detector:     detector,
		profile:      profile,
		timeout:      timeout,
	}
}

// DefaultEngineFactory adapts fastengine.NewHtmlFetcher to the
// EngineFactory shape, the factory production code should pass.
func DefaultEngineFactory(metadataSink metadata.MetadataSink) EngineFactory {
	return func(profile identity.Profile, proxyURL *url.URL, timeout time.Duration) (fastengine.Fetcher, error) {
		return fastengine.NewHtmlFetcher(metadataSink, profile, proxyURL, timeout)
	}
}

// FetchWithEscalation runs Tier 0 first, escalating to Tier 1 and then
// Tier 2 only when the prior tier's result is escalation-worthy: a hard
// ban (403/429), a soft ban (challenge page), or an empty response, or a
// fetch error that shouldEscalate accepts (403/429, repeated 403, proxy
// dial failure). Any other fetch error (e.g. a network timeout or a
// malformed request) returns immediately.
func (e *Escalator) FetchWithEscalation(ctx context.Context, crawlDepth int, fetchParam fastengine.FetchParam, retryParam retry.RetryParam) (Outcome, failure.ClassifiedError) {
	for _, tier := range []Tier{Tier0Direct, Tier1Datacenter, Tier2Residential} {
		result, fetchErr := e.executeTier(ctx, tier, crawlDepth, fetchParam, retryParam)
		if fetchErr == nil {
			classification := e.detector.Classify(result.Code(), result.Body())
			if !classification.EscalationWorthy() {
				return Outcome{Result: result, Tier: tier}, nil
			}
			if tier == Tier2Residential {
				return Outcome{Result: result, Tier: tier}, &EscalationExhaustedError{Reason: classification.Outcome.String()}
			}
			e.recordEscalation(fetchParam.URL(), tier, classification.Outcome.String())
			continue
		}

		if !e.shouldEscalate(fetchErr) {
			return Outcome{}, fetchErr
		}
		if tier == Tier2Residential {
			return Outcome{}, fetchErr
		}
		e.recordEscalation(fetchParam.URL(), tier, fetchErr.Error())
	}
	// Unreachable: the loop always returns by its third iteration.
	return Outcome{}, &EscalationExhaustedError{Reason: "exhausted all tiers"}
}

func (e *Escalator) executeTier(ctx context.Context, tier Tier, crawlDepth int, fetchParam fastengine.FetchParam, retryParam retry.RetryParam) (fastengine.FetchResult, failure.ClassifiedError) {
	var proxyURL *url.URL
	switch tier {
	case Tier1Datacenter:
		proxyURL = e.nextProxy(&e.t1mu, &e.t1idx, e.tier1Proxies)
	case Tier2Residential:
		proxyURL = e.nextProxy(&e.t2mu, &e.t2idx, e.tier2Proxies)
	}

	engine, err := e.newEngine(e.profile, proxyURL, e.timeout)
	if err != nil {
		return fastengine.FetchResult{}, &EngineBuildError{Tier: tier, Err: err}
	}
	return engine.Fetch(ctx, crawlDepth, fetchParam, retryParam)
}

// nextProxy returns the next proxy in a tier's pool under round-robin
// rotation, or nil when the pool is empty (the tier is then still
// attempted, over a direct connection, matching get_next_proxy's
// Option<String> semantics).
func (e *Escalator) nextProxy(mu *sync.Mutex, idx *int, pool []string) *url.URL {
	if len(pool) == 0 {
		return nil
	}
	mu.Lock()
	raw := pool[*idx]
	*idx = (*idx + 1) % len(pool)
	mu.Unlock()

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return parsed
}

// recordEscalation logs the tier a request is being bumped away from, for
// post-run auditability. It never influences the escalation decision
// itself — metadata.ErrorCause is observational only.
func (e *Escalator) recordEscalation(u url.URL, fromTier Tier, reason string) {
	e.metadataSink.RecordError(
		time.Now(),
		"proxy",
		"FetchWithEscalation",
		metadata.CausePolicyDisallow,
		reason,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, u.String()),
			metadata.NewAttr(metadata.AttrField, fromTier.String()),
		},
	)
}

// shouldEscalate mirrors should_escalate: only a 403/429 response, repeated
// 403s, or a proxy dial failure push the ladder forward. A plain
// network/timeout error from the
// transport layer is itself non-escalating here because it has no
// classification to judge — fastengine already marks it Retryable and
// pkg/retry has exhausted attempts by the time it reaches us.
func (e *Escalator) shouldEscalate(err failure.ClassifiedError) bool {
	fetchErr, ok := err.(*fastengine.FetchError)
	if !ok {
		return false
	}
	switch fetchErr.Cause {
	case fastengine.ErrCauseRequestPageForbidden, fastengine.ErrCauseRequestTooMany, fastengine.ErrCauseRepeated403, fastengine.ErrCauseProxyDial:
		return true
	default:
		return false
	}
}
