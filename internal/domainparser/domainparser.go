// Package domainparser resolves hostnames to their registrable domains, also
// known as eTLD+1, using the public suffix list.
package domainparser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ParsedHost is the result of parsing a hostname.
type ParsedHost struct {
	// PublicSuffix is the effective top-level domain of the host, for example
	// "co.uk".
	PublicSuffix string

	// Domain is the registrable domain of the host, for example
	// "example.co.uk".
	Domain string
}

// Interface is the interface for domain parsers.  All methods must be safe for
// concurrent use.
type Interface interface {
	// Parse returns the parsed host or nil if host has no registrable domain.
	Parse(host string) (ph *ParsedHost)
}

// Config is the configuration structure for a [Default] parser.
type Config struct {
	// Rules is the contents of the public suffix list file.  It must not be
	// empty.
	Rules []byte

	// CacheSize is the number of parsed hosts to keep in the cache.  If zero,
	// results are not cached.
	CacheSize int

	// QuickParsing, if true, makes the parser ignore the exception and
	// wildcard rules.
	QuickParsing bool
}

// Default is the public suffix list parser.  It is built once and is
// immutable afterwards.
type Default struct {
	rules *parsedRules

	// cache contains the results of previous parsing, including negative
	// ones.  It is nil if caching is disabled.
	cache *lru.Cache[string, *ParsedHost]

	quickParsing bool
}

// New returns a new properly initialized *Default.  c must not be nil.
func New(c *Config) (p *Default, err error) {
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("rules: %w", errors.ErrEmptyValue)
	}

	rules, err := parseRules(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("parsing public suffix list: %w", err)
	}

	p = &Default{
		rules:        rules,
		quickParsing: c.QuickParsing,
	}

	if c.CacheSize > 0 {
		p.cache, err = lru.New[string, *ParsedHost](c.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}
	}

	return p, nil
}

// type check
var _ Interface = (*Default)(nil)

// Parse implements the [Interface] interface for *Default.  Hosts without dots
// are their own registrable domains.  IPv6 literals are never parsed.
func (p *Default) Parse(host string) (ph *ParsedHost) {
	host = normalizeHost(host)
	if host == "" || strings.Contains(host, ":") {
		return nil
	}

	if p.cache != nil {
		var ok bool
		if ph, ok = p.cache.Get(host); ok {
			return ph
		}
	}

	ph = p.parse(host)

	if p.cache != nil {
		p.cache.Add(host, ph)
	}

	return ph
}

// parse parses a normalized host.
func (p *Default) parse(host string) (ph *ParsedHost) {
	if !strings.Contains(host, ".") {
		return &ParsedHost{
			Domain: host,
		}
	}

	labels := strings.Split(host, ".")
	if !p.quickParsing {
		r := p.exceptionOrWildcard(labels)
		if r != nil {
			return r.parse(labels)
		}
	}

	return p.parseBasic(labels)
}

// exceptionOrWildcard returns the most specific matching exception rule or, if
// there is none, the most specific matching wildcard rule.
func (p *Default) exceptionOrWildcard(labels []string) (r *rule) {
	last := labels[len(labels)-1]
	for _, group := range [][]*rule{p.rules.exceptions[last], p.rules.wildcards[last]} {
		for _, candidate := range group {
			if candidate.isMatching(labels) {
				return candidate
			}
		}
	}

	return nil
}

// parseBasic parses labels using only the basic suffix rules.  The longest
// matching suffix wins, and an unlisted top-level domain is a public suffix by
// itself.
func (p *Default) parseBasic(labels []string) (ph *ParsedHost) {
	for i := range labels {
		suffix := strings.Join(labels[i:], ".")
		if _, ok := p.rules.basic[suffix]; ok {
			return newParsedHost(labels, len(labels)-i)
		}
	}

	return newParsedHost(labels, 1)
}

// normalizeHost lowercases host and removes the trailing dot, if any.
func normalizeHost(host string) (norm string) {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// BaseDomain returns the registrable domain of the host of the URL in rawURL,
// or an empty string if there is none.
func BaseDomain(p Interface, rawURL string) (domain string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	// Use u.Host and not u.Hostname(), since the latter strips the brackets
	// from IPv6 literals, which must not be parsed.
	host := u.Host
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "[") {
		return ""
	}

	ph := p.Parse(u.Hostname())
	if ph == nil {
		return ""
	}

	return ph.Domain
}

// IsSameParty returns true if both URLs have a registrable domain and these
// domains are equal.
func IsSameParty(p Interface, a, b string) (ok bool) {
	da := BaseDomain(p, a)

	return da != "" && da == BaseDomain(p, b)
}
