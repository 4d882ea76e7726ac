// Package density decides whether a fetched page needs the slow headless
// path or can be served from the fast-path HTML as-is. The composite score
// weighs text density, link density (inverted — a link-heavy page scores
// low), and a structural tag bonus for <article>/<main>.
//
// Grounded on the original crawl engine's density metric (text_density,
// link_density, tag_score weights and the 0.48 threshold), reimplemented
// with goquery selectors in place of the original's scraper-crate tree
// walk — the same library the extraction side of this stack already uses.
package density

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Route is the routing decision.
type Route int

const (
	RouteFast Route = iota
	RouteSlow
)

func (r Route) String() string {
	if r == RouteSlow {
		return "slow"
	}
	return "fast"
}

// Config holds the calibration constants. TextDensityCharsPerWord is the
// magic "× 10" factor from the original metric: a rough chars-per-word
// heuristic, kept configurable per the design notes rather than hardcoded.
type Config struct {
	TextWeight               float64
	LinkWeight               float64
	TagWeight                float64
	TextDensityCharsPerWord  float64
	TagScoreWithArticleMain  float64
	TagScoreWithout          float64
	Threshold                float64
}

func DefaultConfig() Config {
	return Config{
		TextWeight:              0.4,
		LinkWeight:              0.2,
		TagWeight:               0.2,
		TextDensityCharsPerWord: 10,
		TagScoreWithArticleMain: 1.5,
		TagScoreWithout:         0.5,
		Threshold:               0.48,
	}
}

// Score is the computed composite plus its components, useful for logging
// and tests.
type Score struct {
	TextDensity float64
	LinkDensity float64
	TagScore    float64
	Composite   float64
}

// Classify parses rawHTML and returns the composite density score and the
// routing decision. An empty body always routes Slow regardless of score.
func Classify(rawHTML string, cfg Config) (Score, Route) {
	if strings.TrimSpace(rawHTML) == "" {
		return Score{}, RouteSlow
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Score{}, RouteSlow
	}

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	wordCount := len(strings.Fields(bodyText))

	textDensity := min1(float64(wordCount) * cfg.TextDensityCharsPerWord / float64(len(rawHTML)))

	var anchorChars, bodyChars int
	bodyChars = len(bodyText)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		anchorChars += len(strings.TrimSpace(s.Text()))
	})

	var linkDensity float64
	if bodyChars > 0 {
		linkDensity = 1 - min1(float64(anchorChars)/float64(bodyChars))
	}

	tagScore := cfg.TagScoreWithout
	if doc.Find("article, main").Length() > 0 {
		tagScore = cfg.TagScoreWithArticleMain
	}

	composite := cfg.TextWeight*textDensity + cfg.LinkWeight*linkDensity + cfg.TagWeight*tagScore

	score := Score{TextDensity: textDensity, LinkDensity: linkDensity, TagScore: tagScore, Composite: composite}

	route := RouteFast
	if composite < cfg.Threshold {
		route = RouteSlow
	}
	return score, route
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
