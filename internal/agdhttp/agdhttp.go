// Package agdhttp contains common constants, functions, and types for working
// with HTTP.
package agdhttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/version"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/c2h5oh/datasize"
)

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextPlain       = "text/plain"
)

// userAgent is the cached User-Agent string for the content blocker.
var userAgent = version.Name() + "/" + version.Version()

// UserAgent returns the ID of the service as a User-Agent string.  It can also
// be used as the value of the Server HTTP header.
func UserAgent() (ua string) {
	return userAgent
}

// DecodeJSON decodes the JSON body of r into v.  The body is limited to
// maxSize bytes.
func DecodeJSON(r *http.Request, v any, maxSize datasize.ByteSize) (err error) {
	err = json.NewDecoder(ioutil.LimitReader(r.Body, maxSize.Bytes())).Decode(v)
	if err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}

	return nil
}

// WriteJSONResponse sets the content type of w to JSON, writes the code, and
// encodes v into w.
func WriteJSONResponse(w http.ResponseWriter, code int, v any) (err error) {
	w.Header().Set(httphdr.ContentType, HdrValApplicationJSON)
	w.WriteHeader(code)

	err = json.NewEncoder(w).Encode(v)
	if err != nil {
		return fmt.Errorf("writing json response: %w", err)
	}

	return nil
}

// WriteTextResponse sets the content type of w to plain text, writes the code,
// and writes s into w.
func WriteTextResponse(w http.ResponseWriter, code int, s string) (err error) {
	w.Header().Set(httphdr.ContentType, HdrValTextPlain)
	w.WriteHeader(code)

	_, err = io.WriteString(w, s)
	if err != nil {
		return fmt.Errorf("writing text response: %w", err)
	}

	return nil
}
