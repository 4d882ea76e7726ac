package robots

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/titan-flow/fetchengine/internal/metadata"
	"github.com/titan-flow/fetchengine/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the admission-time robots.txt gate. Init must be called once
// before Decide; a zero-value Robot with no fetcher configured panics on
// Decide rather than silently allowing everything.
type Robot interface {
	Init(userAgent string)
	InitWithCache(userAgent string, c cache.Cache)
	Decide(u url.URL) (Decision, *RobotsError)
}

// rulesetCache holds a mapped ruleSet per host for the duration of the
// crawl, in front of RobotsFetcher's own raw-response cache. It is a
// pointer field on CachedRobot so CachedRobot itself stays comparable.
type rulesetCache struct {
	mu     sync.Mutex
	byHost map[string]ruleSet
}

// CachedRobot is the production Robot: one RobotsFetcher per crawl, a
// per-host ruleSet cache built lazily on first Decide for that host.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	rulesets     *rulesetCache
}

// NewCachedRobot constructs a CachedRobot bound to metadataSink. Init (or
// InitWithCache) must be called before Decide to supply the user agent.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: metadataSink}
}

// Init configures the robot with userAgent and an in-memory ruleset cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache configures the robot with userAgent and a caller-supplied
// raw-response cache (tests use this to assert cache reuse directly).
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
	r.rulesets = &rulesetCache{byHost: make(map[string]ruleSet)}
}

// Decide fetches (or reuses the cached) robots.txt for u's host and
// evaluates u against it. A robots infrastructure failure (timeout, 5xx,
// 429, parse failure) is returned as *RobotsError and must abort admission
// for that URL rather than being treated as an implicit allow.
func (r *CachedRobot) Decide(u url.URL) (Decision, *RobotsError) {
	host := u.Host

	r.rulesets.mu.Lock()
	rs, cached := r.rulesets.byHost[host]
	r.rulesets.mu.Unlock()

	if !cached {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "https"
		}
		result, err := r.fetcher.Fetch(context.Background(), scheme, host)
		if err != nil {
			if r.metadataSink != nil {
				r.metadataSink.RecordError(time.Now(), "robots", "Decide", mapRobotsErrorToMetadataCause(err), err.Error(),
					[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, u.String())})
			}
			return Decision{}, err
		}
		rs = MapResponseToRuleSet(result.Response, r.fetcher.UserAgent(), result.FetchedAt)

		r.rulesets.mu.Lock()
		r.rulesets.byHost[host] = rs
		r.rulesets.mu.Unlock()
	}

	return Decide(rs, u), nil
}
