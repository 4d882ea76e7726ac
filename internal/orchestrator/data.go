package orchestrator

import "github.com/titan-flow/fetchengine/pkg/failure"

// OutcomeKind classifies the terminal result of one admission attempt.
type OutcomeKind int

const (
	OutcomeContent OutcomeKind = iota
	OutcomeHandedOff
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContent:
		return "content"
	case OutcomeHandedOff:
		return "handed_off"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SkipReason names why a URL never reached (or never usably reached) the
// network, distinct from a Failed outcome which reports an infrastructure
// or transport error.
type SkipReason string

const (
	SkipDisallowedByRobots SkipReason = "disallowed_by_robots"
	SkipBlacklisted        SkipReason = "blacklisted"
	SkipUnderPressure      SkipReason = "under_pressure"
	SkipBannedAfterRender  SkipReason = "banned_after_render"
)

// FetchOutcome is Fetch's single return value. Exactly one group of fields
// is meaningful, selected by Kind — callers must switch on Kind before
// reading HTML, SkipReason, or Err.
type FetchOutcome struct {
	Kind OutcomeKind

	// Populated when Kind == OutcomeContent.
	HTML       string
	FinalURL   string
	HeadDigest uint64
	Tier       string

	// Populated when Kind == OutcomeSkipped.
	SkipReason SkipReason

	// Populated when Kind == OutcomeFailed.
	Err failure.ClassifiedError
}
