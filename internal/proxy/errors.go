package proxy

import (
	"fmt"

	"github.com/titan-flow/fetchengine/pkg/failure"
)

// EscalationExhaustedError reports that Tier 2 Residential was reached and
// still produced a ban-worthy response. This is fatal for the attempt:
// there is no further tier to try.
type EscalationExhaustedError struct {
	Reason string
}

func (e *EscalationExhaustedError) Error() string {
	return fmt.Sprintf("proxy: escalation exhausted at tier2_residential: %s", e.Reason)
}

func (e *EscalationExhaustedError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// EngineBuildError reports that constructing a fastengine.Fetcher for a
// given tier failed (typically a malformed proxy URL or an unsupported
// proxy scheme).
type EngineBuildError struct {
	Tier Tier
	Err  error
}

func (e *EngineBuildError) Error() string {
	return fmt.Sprintf("proxy: failed to build engine for %s: %v", e.Tier, e.Err)
}

func (e *EngineBuildError) Unwrap() error {
	return e.Err
}

func (e *EngineBuildError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
