package agdhttp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AdguardTeam/golibs/httphdr"
)

// hdrIfModifiedSince is the name of the conditional-request header sent when
// the caller already has a copy of the resource.
const hdrIfModifiedSince = "If-Modified-Since"

// Client is a wrapper around http.Client that downloads filter lists.
type Client struct {
	http      *http.Client
	userAgent string
}

// ClientConfig is the configuration structure for Client.
type ClientConfig struct {
	// Timeout is the timeout for all requests.
	Timeout time.Duration
}

// NewClient returns a new client.  c must not be nil.
func NewClient(conf *ClientConfig) (c *Client) {
	return &Client{
		http: &http.Client{
			Timeout: conf.Timeout,
		},
		userAgent: UserAgent(),
	}
}

// Get sends a GET request to u.  If modSince is not zero, the request is
// conditional, and the server may respond with [http.StatusNotModified] and an
// empty body.
//
// When err is nil, resp always contains a non-nil resp.Body.  Caller should
// close resp.Body when done reading from it.
func (c *Client) Get(
	ctx context.Context,
	u *url.URL,
	modSince time.Time,
) (resp *http.Response, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", http.MethodGet, err)
	}

	req.Header.Set(httphdr.UserAgent, c.userAgent)
	if !modSince.IsZero() {
		req.Header.Set(hdrIfModifiedSince, modSince.UTC().Format(http.TimeFormat))
	}

	resp, err = c.http.Do(req)
	if err != nil && resp != nil && resp.Header != nil {
		// A non-nil response with a non-nil error only occurs when
		// CheckRedirect fails.
		return resp, WrapResponseError(err, resp)
	}

	return resp, err
}
