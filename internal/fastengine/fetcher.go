package fastengine

import (
	"context"
	"net/url"

	"github.com/titan-flow/fetchengine/pkg/failure"
	"github.com/titan-flow/fetchengine/pkg/retry"
)

// Fetcher is a single-attempt, single-proxy HTTP engine. A fresh Fetcher is
// constructed per proxy-escalation attempt — see internal/proxy — so each
// attempt gets an isolated cookie jar and TLS connection.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

// NewFetchParamFromURL is a convenience constructor for callers holding a
// *url.URL rather than a url.URL value.
func NewFetchParamFromURL(u *url.URL, userAgent string) FetchParam {
	return NewFetchParam(*u, userAgent)
}
