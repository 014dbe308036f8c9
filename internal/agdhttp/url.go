package agdhttp

import (
	"fmt"
	"net/url"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
)

// ParseHTTPURL parses an absolute URL and makes sure that it is a valid HTTP(S)
// URL, for example the URL of a downloadable filter list.
func ParseHTTPURL(s string) (u *url.URL, err error) {
	u, err = url.Parse(s)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	if !urlutil.IsValidHTTPURLScheme(u.Scheme) {
		return nil, fmt.Errorf("scheme: %w: %q", errors.ErrBadEnumValue, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("host: %w", errors.ErrEmptyValue)
	}

	return u, nil
}
