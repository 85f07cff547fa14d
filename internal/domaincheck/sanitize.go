// Package domaincheck validates candidate practice website domains: pure
// sanitization and syntax checks first, then a debounced reachability probe.
package domaincheck

import (
	"regexp"
	"strings"
)

// domainPattern accepts label(.label)*.tld where labels are alphanumeric with
// internal hyphens and the final label is at least two letters.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// Sanitize normalizes a free-text domain input: lowercases, strips a leading
// http(s) scheme, a leading "www.", and trailing slashes. Pure, no I/O.
func Sanitize(input string) string {
	domain := strings.ToLower(strings.TrimSpace(input))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	for strings.HasSuffix(domain, "/") {
		domain = strings.TrimSuffix(domain, "/")
	}
	return domain
}

// IsValidSyntax reports whether a sanitized domain is syntactically
// acceptable. Anything rejected here must never reach the network.
func IsValidSyntax(domain string) bool {
	return domainPattern.MatchString(domain)
}
