package identity

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DomainKey is the registrable host of a canonical URL, lowercased.
type DomainKey string

// NewDomainKey lowercases a host into its DomainKey form.
func NewDomainKey(host string) DomainKey {
	return DomainKey(strings.ToLower(host))
}

// Digest renders the 64-bit non-cryptographic digest (seed 0) used as the
// Redis key suffix for this domain, as an unsigned decimal string.
func (k DomainKey) Digest() string {
	return strconv.FormatUint(xxhash.Sum64String(string(k)), 10)
}
