// Package fingerprint computes a cheap change-detection digest over a
// page's <head> metadata without parsing a full DOM — four regex-identified
// fields serialized into a fixed canonical string and hashed.
//
// Grounded on the original crawl engine's head-metadata fingerprint module.
package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	titleRegex       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	descriptionRegex = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["'](.*?)["']`)
	ogUpdatedRegex   = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:updated_time["'][^>]+content=["'](.*?)["']`)
	lastModRegex     = regexp.MustCompile(`(?is)<meta[^>]+(?:name|http-equiv)=["']last-modified["'][^>]+content=["'](.*?)["']`)
)

// HeadMetadata is the four extracted fields, trimmed.
type HeadMetadata struct {
	Title         string
	Description   string
	OGUpdatedTime string
	LastModified  string
}

// Extract pulls the four head fields from raw HTML via regex, trimming
// whitespace. A missing field serializes as empty, never as an error.
func Extract(rawHTML string) HeadMetadata {
	return HeadMetadata{
		Title:         firstGroup(titleRegex, rawHTML),
		Description:   firstGroup(descriptionRegex, rawHTML),
		OGUpdatedTime: firstGroup(ogUpdatedRegex, rawHTML),
		LastModified:  firstGroup(lastModRegex, rawHTML),
	}
}

func firstGroup(re *regexp.Regexp, html string) string {
	m := re.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Canonical serializes HeadMetadata into the fixed format the digest is
// computed over: t:{title};d:{desc};ou:{og};lm:{lm}.
func (h HeadMetadata) Canonical() string {
	return fmt.Sprintf("t:%s;d:%s;ou:%s;lm:%s", h.Title, h.Description, h.OGUpdatedTime, h.LastModified)
}

// Digest is the 64-bit non-cryptographic digest (seed 0) of rawHTML's head
// metadata.
func Digest(rawHTML string) uint64 {
	return xxhash.Sum64String(Extract(rawHTML).Canonical())
}

// HasContentChanged reports whether two digests differ.
func HasContentChanged(newDigest, oldDigest uint64) bool {
	return newDigest != oldDigest
}
