package slowengine

import (
	"fmt"

	"github.com/titan-flow/fetchengine/pkg/failure"
)

// RenderError wraps a browser-automation failure. Timeout is set when the
// failure was the page's context deadline firing — the caller may choose
// to treat that as retryable at a higher tier, everything else is not.
type RenderError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("slowengine: %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) Severity() failure.Severity {
	if e.Timeout {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RenderError) IsRetryable() bool {
	return e.Timeout
}
