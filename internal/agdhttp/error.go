package agdhttp

import (
	"fmt"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
)

// StatusError is returned by methods when the HTTP status code is different
// from the expected.
type StatusError struct {
	// URL is the URL of the request with the userinfo redacted.  It is empty
	// if the request is unknown.
	URL string

	// ServerName is the value of the Server header of the response.
	ServerName string

	Expected int
	Got      int
}

// type check
var _ error = (*StatusError)(nil)

// Error implements the error interface for *StatusError.
func (err *StatusError) Error() (msg string) {
	msg = fmt.Sprintf("status code error: expected %d, got %d", err.Expected, err.Got)

	return withResponseInfo(err.URL, err.ServerName, msg)
}

// CheckStatus returns a non-nil error with the data from resp if the status
// code in resp is not equal to expected.  resp must be non-nil.
//
// Any error returned will have the underlying type of *StatusError.
func CheckStatus(resp *http.Response, expected int) (err error) {
	if resp.StatusCode == expected {
		return nil
	}

	return &StatusError{
		URL:        requestURL(resp),
		ServerName: resp.Header.Get(httphdr.Server),
		Expected:   expected,
		Got:        resp.StatusCode,
	}
}

// ResponseError is returned when reading or processing a response fails.
type ResponseError struct {
	Err error

	// URL is the URL of the request with the userinfo redacted.  It is empty
	// if the request is unknown.
	URL string

	// ServerName is the value of the Server header of the response.
	ServerName string
}

// type check
var _ error = (*ResponseError)(nil)

// Error implements the error interface for *ResponseError.
func (err *ResponseError) Error() (msg string) {
	return withResponseInfo(err.URL, err.ServerName, err.Err.Error())
}

// type check
var _ errors.Wrapper = (*ResponseError)(nil)

// Unwrap implements the errors.Wrapper interface for *ResponseError.
func (err *ResponseError) Unwrap() (unwrapped error) {
	return err.Err
}

// WrapResponseError wraps err inside a *ResponseError including data from
// resp.  resp must not be nil.
func WrapResponseError(err error, resp *http.Response) (wrapped *ResponseError) {
	return &ResponseError{
		Err:        err,
		URL:        requestURL(resp),
		ServerName: resp.Header.Get(httphdr.Server),
	}
}

// requestURL returns the redacted URL of the request of resp, if any.
func requestURL(resp *http.Response) (u string) {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}

	return urlutil.RedactUserinfo(resp.Request.URL).String()
}

// withResponseInfo prepends the non-empty response information to msg.
func withResponseInfo(u, srv, msg string) (res string) {
	if srv != "" {
		msg = fmt.Sprintf("server %q: %s", srv, msg)
	}

	if u != "" {
		msg = fmt.Sprintf("%s: %s", u, msg)
	}

	return msg
}
