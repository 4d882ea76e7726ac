package orchestrator

import (
	"fmt"

	"github.com/titan-flow/fetchengine/pkg/failure"
)

// CanonicalizeError reports a raw href that could not be resolved to a
// canonical form against base. There is no admission decision to make for
// a URL with no canonical form, so this is always fatal for the attempt.
type CanonicalizeError struct {
	Href string
	Base string
}

func (e *CanonicalizeError) Error() string {
	return fmt.Sprintf("orchestrator: cannot canonicalize %q against base %q", e.Href, e.Base)
}

func (e *CanonicalizeError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// GateError wraps an infrastructure failure surfaced by one of the
// admission gates (Redis unreachable, a breaker store error, a slow-render
// failure) rather than a ban or policy decision.
type GateError struct {
	Op  string
	Err error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("orchestrator: gate %s failed: %v", e.Op, e.Err)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

func (e *GateError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
