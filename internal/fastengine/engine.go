package fastengine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/titan-flow/fetchengine/internal/identity"
	"github.com/titan-flow/fetchengine/internal/metadata"
	"github.com/titan-flow/fetchengine/pkg/failure"
	"github.com/titan-flow/fetchengine/pkg/retry"
)

// HtmlFetcher is the Fast HTTP Engine: a single http.Client wired with a
// uTLS Chrome-120 ClientHello, matching HTTP/2 SETTINGS, and the Chrome 120
// header set, used for one proxy-escalation attempt. A fresh HtmlFetcher
// (and therefore a fresh cookie jar and TLS connection) is constructed per
// attempt by the proxy escalator — never shared across tiers.
//
// Grounded on the original HtmlFetcher's retry/telemetry wiring, generalized
// to the Chrome-impersonation transport in transport.go.
type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	profile      identity.Profile
}

// NewHtmlFetcher constructs an engine for one attempt: proxyURL nil means a
// direct (Tier-0) connection.
func NewHtmlFetcher(metadataSink metadata.MetadataSink, profile identity.Profile, proxyURL *url.URL, timeout time.Duration) (*HtmlFetcher, error) {
	transport, err := newTransport(profile, proxyURL, timeout)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HtmlFetcher{
		metadataSink: metadataSink,
		profile:      profile,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

func (h *HtmlFetcher) Fetch(ctx context.Context, crawlDepth int, fetchParam FetchParam, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError) {
	start := time.Now()
	outcome := retry.Retry(retryParam, func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	})

	if fetchErr := outcome.Err(); fetchErr != nil {
		h.metadataSink.RecordError(
			time.Now(),
			"fastengine",
			"Fetch",
			errorCauseFor(fetchErr),
			fetchErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl.String()),
				metadata.NewAttr(metadata.AttrDepth, fmt.Sprintf("%d", crawlDepth)),
			},
		)
		return FetchResult{}, fetchErr
	}

	result := outcome.Value()
	h.metadataSink.RecordFetch(metadata.NewFetchEvent(
		fetchParam.fetchUrl.String(),
		result.Code(),
		time.Since(start),
		result.Headers()["Content-Type"],
		outcome.Attempts()-1,
		crawlDepth,
	))

	return result, nil
}

func errorCauseFor(err failure.ClassifiedError) metadata.ErrorCause {
	if fetchErr, ok := err.(*FetchError); ok {
		return mapFetchErrorToMetadataCause(fetchErr)
	}
	return metadata.CauseUnknown
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchParam.fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: false, Cause: ErrCauseNetworkFailure}
	}

	for k, v := range h.profile.Headers() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout}
		}
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure}
	}
	defer resp.Body.Close()

	const maxBodyBytes = 20 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadResponseBodyError}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	finalURL := fetchParam.fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	// Non-2xx/3xx statuses are not fetch errors here — ban classification
	// (403/429/short-body/soft-ban signatures) is the proxy escalator's and
	// ban detector's job, not this engine's. This engine only reports
	// transport-level failure.
	return newFetchResult(finalURL, body, resp.StatusCode, headers, time.Now()), nil
}
