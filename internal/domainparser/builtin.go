package domainparser

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Builtin is an [Interface] implementation that uses the public suffix list
// compiled into golang.org/x/net/publicsuffix.  It is used when there is no
// list file configured.
type Builtin struct{}

// type check
var _ Interface = Builtin{}

// Parse implements the [Interface] interface for Builtin.
func (Builtin) Parse(host string) (ph *ParsedHost) {
	host = normalizeHost(host)
	if host == "" || strings.Contains(host, ":") {
		return nil
	}

	if !strings.Contains(host, ".") {
		return &ParsedHost{
			Domain: host,
		}
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// The host is a public suffix itself or has an empty label.
		return nil
	}

	suffix, _ := publicsuffix.PublicSuffix(host)

	return &ParsedHost{
		PublicSuffix: suffix,
		Domain:       domain,
	}
}
