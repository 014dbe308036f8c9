package domainparser_test

import (
	"testing"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRules is a small public suffix list for tests.
const testRules = `// ===BEGIN ICANN DOMAINS===
com
uk
co.uk

// Wildcard and exception rules.
ck
*.ck
!www.ck

*.kawasaki.jp
!city.kawasaki.jp
jp
`

// newTestParser returns a new parser with testRules.
func newTestParser(tb testing.TB, quick bool) (p *domainparser.Default) {
	tb.Helper()

	p, err := domainparser.New(&domainparser.Config{
		Rules:        []byte(testRules),
		CacheSize:    100,
		QuickParsing: quick,
	})
	require.NoError(tb, err)

	return p
}

func TestDefault_Parse(t *testing.T) {
	p := newTestParser(t, false)

	testCases := []struct {
		want *domainparser.ParsedHost
		name string
		host string
	}{{
		want: &domainparser.ParsedHost{PublicSuffix: "co.uk", Domain: "example.co.uk"},
		name: "basic_longest",
		host: "www.example.co.uk",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "com", Domain: "example.com"},
		name: "basic",
		host: "a.b.example.com",
	}, {
		want: &domainparser.ParsedHost{Domain: "localhost"},
		name: "no_dot",
		host: "localhost",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "test", Domain: "example.test"},
		name: "unlisted_tld",
		host: "www.example.test",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "foo.ck", Domain: "bar.foo.ck"},
		name: "wildcard",
		host: "www.bar.foo.ck",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "ck", Domain: "www.ck"},
		name: "exception_overrides_wildcard",
		host: "a.www.ck",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "kawasaki.jp", Domain: "city.kawasaki.jp"},
		name: "exception_longer",
		host: "www.city.kawasaki.jp",
	}, {
		want: &domainparser.ParsedHost{PublicSuffix: "com", Domain: "example.com"},
		name: "case_and_trailing_dot",
		host: "WWW.Example.COM.",
	}, {
		want: nil,
		name: "suffix_itself",
		host: "co.uk",
	}, {
		want: nil,
		name: "wildcard_suffix_itself",
		host: "foo.ck",
	}, {
		want: nil,
		name: "ipv6",
		host: "::1",
	}, {
		want: nil,
		name: "empty",
		host: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Parse(tc.host))

			// Check the cached result as well.
			assert.Equal(t, tc.want, p.Parse(tc.host))
		})
	}
}

func TestDefault_Parse_quick(t *testing.T) {
	p := newTestParser(t, true)

	// Without the wildcard and exception rules, "ck" is a basic suffix.
	want := &domainparser.ParsedHost{PublicSuffix: "ck", Domain: "foo.ck"}
	assert.Equal(t, want, p.Parse("www.bar.foo.ck"))

	want = &domainparser.ParsedHost{PublicSuffix: "co.uk", Domain: "example.co.uk"}
	assert.Equal(t, want, p.Parse("www.example.co.uk"))
}

func TestNew_errors(t *testing.T) {
	_, err := domainparser.New(&domainparser.Config{})
	assert.Error(t, err)

	_, err = domainparser.New(&domainparser.Config{
		Rules: []byte("foo..com\n"),
	})
	assert.Error(t, err)

	_, err = domainparser.New(&domainparser.Config{
		Rules: []byte("!com\n"),
	})
	assert.Error(t, err)
}

func TestBaseDomain(t *testing.T) {
	p := newTestParser(t, false)

	testCases := []struct {
		name   string
		rawURL string
		want   string
	}{{
		name:   "https",
		rawURL: "https://www.example.co.uk/path?q=1",
		want:   "example.co.uk",
	}, {
		name:   "port",
		rawURL: "http://ads.example.com:8080/",
		want:   "example.com",
	}, {
		name:   "ipv6",
		rawURL: "http://[::1]/",
		want:   "",
	}, {
		name:   "no_host",
		rawURL: "about:blank",
		want:   "",
	}, {
		name:   "data",
		rawURL: "data:text/plain,hello",
		want:   "",
	}, {
		name:   "bad",
		rawURL: "http://%zz/",
		want:   "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domainparser.BaseDomain(p, tc.rawURL))
		})
	}
}

func TestIsSameParty(t *testing.T) {
	p := newTestParser(t, false)

	assert.True(t, domainparser.IsSameParty(p, "https://a.example.com/", "http://b.example.com/x"))
	assert.False(t, domainparser.IsSameParty(p, "https://a.example.com/", "https://example.org/"))
	assert.False(t, domainparser.IsSameParty(p, "about:blank", "about:blank"))
}

func TestBuiltin_Parse(t *testing.T) {
	p := domainparser.Builtin{}

	want := &domainparser.ParsedHost{PublicSuffix: "co.uk", Domain: "example.co.uk"}
	assert.Equal(t, want, p.Parse("www.example.co.uk"))

	assert.Equal(t, &domainparser.ParsedHost{Domain: "localhost"}, p.Parse("localhost"))
	assert.Nil(t, p.Parse("co.uk"))
	assert.Nil(t, p.Parse("::1"))
}
