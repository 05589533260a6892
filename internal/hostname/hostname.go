// Package hostname normalizes request hostnames (the HTTPS Host header
// or the Gemini URL authority) before they are stored on
// model.Request.Host, the way the teacher's punycodeHostname helper
// normalizes SNI/Host values (spec.md §4.1(a), SPEC_FULL.md).
package hostname

import (
	"strings"

	"golang.org/x/net/idna"
)

var profile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
)

// Normalize punycode-encodes host (stripping a trailing dot and
// lowercasing first) so an international hostname compares equal to
// its ASCII form regardless of how a client encoded it on the wire.
// An input that fails IDNA validation is returned lowercased,
// unconverted rather than rejecting the request outright; rubyshd
// only records the hostname on the Request and makes no routing or
// security decision from it.
func Normalize(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	ascii, err := profile.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
