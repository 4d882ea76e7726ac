package circuitbreaker

import (
	"fmt"

	"github.com/titan-flow/fetchengine/pkg/failure"
)

// BreakerError wraps a Redis-layer failure encountered while checking or
// recording circuit state. It is always recoverable: the caller should
// treat an unreadable breaker as "unknown, try again" rather than crash
// the fetch attempt it gates.
type BreakerError struct {
	Op  string
	Err error
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("circuitbreaker: %s: %v", e.Op, e.Err)
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

func (e *BreakerError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
