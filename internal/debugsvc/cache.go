package debugsvc

import (
	"net/http"
	"path"
	"slices"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// cacheHandler performs debug cache purges.
type cacheHandler struct {
	manager *agdcache.DefaultManager
}

// type check
var _ http.Handler = (*cacheHandler)(nil)

// cachePurgeRequest describes the request to the POST /debug/api/cache/clear
// HTTP API.
type cachePurgeRequest struct {
	// Patterns is the slice of path patterns to match the cache IDs.
	Patterns []string `json:"ids"`
}

// cachePurgeResponse describes the response to the POST /debug/api/cache/clear
// HTTP API.
type cachePurgeResponse struct {
	Results map[string]string `json:"results"`
}

// ServeHTTP implements the [http.Handler] interface for *cacheHandler.
func (h *cacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	req := &cachePurgeRequest{}
	err := agdhttp.DecodeJSON(r, req, maxReqBodySize)
	if err != nil {
		l.ErrorContext(ctx, "decoding request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	reqIDs, err := h.idsFromReq(req.Patterns)
	if err != nil {
		l.ErrorContext(ctx, "validating request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	resp := &cachePurgeResponse{
		Results: make(map[string]string, len(reqIDs)),
	}

	for _, id := range reqIDs {
		h.manager.ClearByID(id)
		resp.Results[id] = "ok"
	}

	err = agdhttp.WriteJSONResponse(w, http.StatusOK, resp)
	if err != nil {
		l.ErrorContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// idsFromReq returns the IDs of matching caches to purge.
func (h *cacheHandler) idsFromReq(patterns []string) (ids []string, err error) {
	ok, err := isWildcard(patterns)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	cacheIDs := h.manager.IDs()
	if ok {
		return cacheIDs, nil
	}

	return matchPatterns(cacheIDs, patterns), nil
}

// isWildcard returns true if patterns is a single "*".  err is not nil if
// patterns is empty or contains "*" along with other patterns.
func isWildcard(patterns []string) (ok bool, err error) {
	switch len(patterns) {
	case 0:
		return false, errors.Error("no ids")
	case 1:
		return patterns[0] == "*", nil
	default:
		if slices.Contains(patterns, "*") {
			return false, errors.Error(`"*" cannot be used with other ids`)
		}

		return false, nil
	}
}

// matchPatterns returns the IDs matching any of the patterns.  The patterns
// have the syntax of [path.Match].  Malformed patterns match nothing.
func matchPatterns(ids, patterns []string) (matched []string) {
	for _, id := range ids {
		for _, p := range patterns {
			if ok, _ := path.Match(p, id); ok {
				matched = append(matched, id)

				break
			}
		}
	}

	return matched
}
