package bandetect_test

import (
	"strings"
	"testing"

	"github.com/titan-flow/fetchengine/internal/bandetect"
)

func longBody(s string) []byte {
	padded := s + strings.Repeat(" ", 600)
	return []byte(padded)
}

func TestClassify_HardBan(t *testing.T) {
	d := bandetect.New(0)

	for _, status := range []int{403, 429} {
		c := d.Classify(status, longBody("<html>ok</html>"))
		if c.Outcome != bandetect.OutcomeHardBan {
			t.Errorf("status %d: got %v, want HardBan", status, c.Outcome)
		}
		if c.StatusCode != status {
			t.Errorf("status %d: StatusCode=%d", status, c.StatusCode)
		}
	}
}

func TestClassify_EmptyResponse_BeforeTextRules(t *testing.T) {
	d := bandetect.New(0)

	// Short body that ALSO contains a ban signature: empty-response rule
	// must win since it is evaluated first.
	body := []byte("Cloudflare")
	c := d.Classify(200, body)

	if c.Outcome != bandetect.OutcomeEmptyResponse {
		t.Fatalf("got %v, want EmptyResponse", c.Outcome)
	}
	if c.BodyLen != len(body) {
		t.Errorf("BodyLen=%d, want %d", c.BodyLen, len(body))
	}
}

func TestClassify_SoftBan_TitleTrigger(t *testing.T) {
	d := bandetect.New(0)
	c := d.Classify(200, longBody("<title>Just a moment...</title>"))

	if c.Outcome != bandetect.OutcomeSoftBan {
		t.Fatalf("got %v, want SoftBan", c.Outcome)
	}
	if !strings.HasPrefix(c.Reason, "Title Trigger:") {
		t.Errorf("Reason=%q, want Title Trigger prefix", c.Reason)
	}
}

func TestClassify_SoftBan_BodySignature(t *testing.T) {
	d := bandetect.New(0)
	c := d.Classify(200, longBody("<div class=\"cf-turnstile\"></div>"))

	if c.Outcome != bandetect.OutcomeSoftBan {
		t.Fatalf("got %v, want SoftBan", c.Outcome)
	}
	if !strings.HasPrefix(c.Reason, "Body Trigger:") {
		t.Errorf("Reason=%q, want Body Trigger prefix", c.Reason)
	}
}

func TestClassify_OK(t *testing.T) {
	d := bandetect.New(0)
	c := d.Classify(200, longBody("<html><body>perfectly normal page</body></html>"))

	if c.Outcome != bandetect.OutcomeOK {
		t.Fatalf("got %v, want OK", c.Outcome)
	}
}

func TestEscalationWorthy(t *testing.T) {
	cases := []struct {
		outcome bandetect.Outcome
		want    bool
	}{
		{bandetect.OutcomeOK, false},
		{bandetect.OutcomeSoftBan, true},
		{bandetect.OutcomeHardBan, true},
		{bandetect.OutcomeEmptyResponse, true},
	}
	for _, tc := range cases {
		c := bandetect.Classification{Outcome: tc.outcome}
		if got := c.EscalationWorthy(); got != tc.want {
			t.Errorf("%v.EscalationWorthy() = %v, want %v", tc.outcome, got, tc.want)
		}
	}
}
