// Package identity bundles the browser-impersonation identity the fast and
// slow engines present to a remote server: the header set and the TLS
// ClientHello shape must agree, or the mismatch itself becomes a fingerprint.
package identity

import utls "github.com/refraction-networking/utls"

// Profile is an immutable identity bundle. All fields are derived from a
// single browser version and must be changed together — see Chrome120.
type Profile struct {
	UserAgent              string
	SecChUA                string
	SecChUAPlatform        string
	SecChUAMobile          string
	AcceptLanguage         string
	UpgradeInsecureRequest string
	TLSHelloID             utls.ClientHelloID
}

// Chrome120 is the current IdentityProfile: Chrome 120 on Windows. The four
// load-bearing fields — UA major, sec-ch-ua major, platform, and TLS
// fingerprint — MUST be bumped together; changing one without the others is
// a detectable mismatch.
var Chrome120 = Profile{
	UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36",
	SecChUA:                `"Chromium";v="120", "Google Chrome";v="120", "Not_A Brand";v="99"`,
	SecChUAPlatform:        `"Windows"`,
	SecChUAMobile:          "?0",
	AcceptLanguage:         "en-US,en;q=0.9",
	UpgradeInsecureRequest: "1",
	TLSHelloID:             utls.HelloChrome_120,
}

// Headers returns the header set to apply to every fast-path request under
// this profile, keyed exactly as the wire format expects.
func (p Profile) Headers() map[string]string {
	return map[string]string{
		"User-Agent":                p.UserAgent,
		"sec-ch-ua":                 p.SecChUA,
		"sec-ch-ua-mobile":          p.SecChUAMobile,
		"sec-ch-ua-platform":        p.SecChUAPlatform,
		"Upgrade-Insecure-Requests": p.UpgradeInsecureRequest,
		"Accept-Language":           p.AcceptLanguage,
	}
}
