package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"log/slog"
	"os"
	"time"
)

// MetadataSink is the recording surface pipeline stages hold a reference to.
// Every method is fire-and-forget: callers never branch on a MetadataSink
// return value.
type MetadataSink interface {
	RecordFetch(event FetchEvent)
	RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errString string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, once-per-run summary of a completed
// fetch batch.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalFetches, totalErrors, totalEscalations int, duration time.Duration)
}

// Recorder is a log/slog-backed MetadataSink. It never buffers: every call
// is written through to the underlying handler immediately, so a crash
// mid-run loses nothing already recorded.
type Recorder struct {
	logger   *slog.Logger
	workerID string
}

// NewRecorder builds a Recorder writing structured JSON to stderr at the
// given minimum level ("debug", "info", "warn", "error"; defaults to info
// on an unrecognized value).
func NewRecorder(workerID string, level string) Recorder {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	return Recorder{
		logger:   slog.New(handler),
		workerID: workerID,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (r *Recorder) RecordFetch(event FetchEvent) {
	r.logger.Info("fetch",
		slog.String("worker", r.workerID),
		slog.String("url", event.fetchUrl),
		slog.Int("status", event.httpStatus),
		slog.Duration("duration", event.duration),
		slog.String("content_type", event.contentType),
		slog.Int("retry_count", event.retryCount),
		slog.Int("depth", event.crawlDepth),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errString string, attrs []Attribute) {
	args := []any{
		slog.String("worker", r.workerID),
		slog.Time("observed_at", observedAt),
		slog.String("package", packageName),
		slog.String("action", action),
		slog.String("cause", causeLabel(cause)),
		slog.String("error", errString),
	}
	for _, a := range attrs {
		args = append(args, slog.String(string(a.Key), a.Value))
	}
	r.logger.Error("fetch_error", args...)
}

func (r *Recorder) RecordFinalCrawlStats(totalFetches, totalErrors, totalEscalations int, duration time.Duration) {
	r.logger.Info("run_complete",
		slog.String("worker", r.workerID),
		slog.Int("total_fetches", totalFetches),
		slog.Int("total_errors", totalErrors),
		slog.Int("total_escalations", totalEscalations),
		slog.Duration("duration", duration),
	)
}

func causeLabel(c ErrorCause) string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// NewFetchEvent constructs a FetchEvent for recording. Kept in this package
// since FetchEvent's fields are private to preserve its observational-only
// contract — no pipeline package may read a FetchEvent back.
func NewFetchEvent(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount, crawlDepth int) FetchEvent {
	return FetchEvent{
		fetchUrl:    fetchURL,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	}
}
