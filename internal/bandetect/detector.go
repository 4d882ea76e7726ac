// Package bandetect classifies a fetched HTTP response as a clean success,
// a soft ban (a 2xx challenge/interstitial page), a hard ban (403/429), or
// an empty response — applying the rules in a fixed order so that, e.g., a
// short body is always caught before the text rules run on it.
//
// Grounded on the original fast-path client's detect_soft_ban: the same
// title-trigger regex and body-substring signature set.
package bandetect

import (
	"regexp"
	"strings"
)

// MinBodyBytes is the default threshold below which a body is considered
// an empty/truncated response rather than real content.
const MinBodyBytes = 500

var titleTriggerRegex = regexp.MustCompile(`(?i)(Just a moment|Attention Required|Security Check|Access Denied|Cloudflare|Captcha)`)

var bodySignatures = []string{
	"captcha-delivery",
	"cf-turnstile",
	"datadome",
	"challenge-platform",
}

// Detector applies the ban-classification rules. MinBody is configurable
// per the knobs table (min_body_bytes); zero selects MinBodyBytes.
type Detector struct {
	MinBody int
}

func New(minBody int) *Detector {
	if minBody <= 0 {
		minBody = MinBodyBytes
	}
	return &Detector{MinBody: minBody}
}

// Classify applies the rules in order: hard ban on status 403 or 429, short
// body, title trigger, body signature, else OK. Any other status, 2xx or
// not, goes through the same body rules; a non-2xx status alone is not
// treated as a failure here, and the proxy escalator passes the status of
// every fetch that returned without error to Classify.
func (d *Detector) Classify(statusCode int, body []byte) Classification {
	if statusCode == 403 || statusCode == 429 {
		return Classification{Outcome: OutcomeHardBan, StatusCode: statusCode}
	}

	if len(body) < d.MinBody {
		return Classification{Outcome: OutcomeEmptyResponse, BodyLen: len(body)}
	}

	if match := titleTriggerRegex.FindString(string(body)); match != "" {
		return Classification{Outcome: OutcomeSoftBan, Reason: "Title Trigger: " + match}
	}

	lower := strings.ToLower(string(body))
	for _, sig := range bodySignatures {
		if strings.Contains(lower, sig) {
			return Classification{Outcome: OutcomeSoftBan, Reason: "Body Trigger: " + sig}
		}
	}

	return Classification{Outcome: OutcomeOK}
}

// EscalationWorthy reports whether this classification should push the
// proxy escalator to the next tier rather than surface as a terminal error.
func (c Classification) EscalationWorthy() bool {
	return c.Outcome == OutcomeSoftBan || c.Outcome == OutcomeHardBan || c.Outcome == OutcomeEmptyResponse
}
