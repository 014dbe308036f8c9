package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdservice"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/sync/errgroup"
)

// RefresherID is a type alias for strings that represent IDs of refreshers.
type RefresherID = string

// Refreshers maps the IDs of refreshers, such as "filters" or
// "content_blockers", to the refreshers themselves.
type Refreshers map[RefresherID]agdservice.Refresher

// refreshResultNotFound is the result for a requested ID that neither names a
// refresher nor matches any.
const refreshResultNotFound = "error: refresher not found"

// refreshHandler performs debug refreshes.  The requested refreshers run
// concurrently, since a filter refresh may take minutes.
type refreshHandler struct {
	refrs Refreshers
}

// refreshRequest describes the request to the POST /debug/api/refresh HTTP API.
// IDs may be path patterns, see [path.Match].
type refreshRequest struct {
	IDs []RefresherID `json:"ids"`
}

// refreshResponse describes the response to the POST /debug/api/refresh HTTP
// API.
type refreshResponse struct {
	Results map[RefresherID]string `json:"results"`
}

// type check
var _ http.Handler = (*refreshHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *refreshHandler.
func (h *refreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	req := &refreshRequest{}
	err := agdhttp.DecodeJSON(r, req, maxReqBodySize)
	if err != nil {
		l.ErrorContext(ctx, "decoding request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	ids, unknown, err := h.idsFromReq(req.IDs)
	if err != nil {
		l.ErrorContext(ctx, "validating request", slogutil.KeyError, err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	resp := &refreshResponse{
		Results: h.refreshAll(ctx, l, ids),
	}

	for _, id := range unknown {
		resp.Results[id] = refreshResultNotFound
	}

	err = agdhttp.WriteJSONResponse(w, http.StatusOK, resp)
	if err != nil {
		l.ErrorContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// idsFromReq validates the form of the request and returns the IDs of
// refreshers to refresh as well as the requested patterns that match nothing.
func (h *refreshHandler) idsFromReq(
	patterns []RefresherID,
) (ids, unknown []RefresherID, err error) {
	all := slices.Sorted(maps.Keys(h.refrs))

	ok, err := isWildcard(patterns)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, nil, err
	} else if ok {
		return all, nil, nil
	}

	for _, p := range patterns {
		matched := matchPatterns(all, []string{p})
		if len(matched) == 0 {
			unknown = append(unknown, p)

			continue
		}

		ids = append(ids, matched...)
	}

	slices.Sort(ids)

	return slices.Compact(ids), unknown, nil
}

// refreshAll runs the refreshers with the given IDs concurrently and returns
// their results.  ids must only contain known IDs.
func (h *refreshHandler) refreshAll(
	ctx context.Context,
	l *slog.Logger,
	ids []RefresherID,
) (results map[RefresherID]string) {
	results = make(map[RefresherID]string, len(ids))
	mu := &sync.Mutex{}

	g := &errgroup.Group{}
	for _, id := range ids {
		g.Go(func() (err error) {
			res := h.refresh(ctx, l, id)

			mu.Lock()
			defer mu.Unlock()

			results[id] = res

			return nil
		})
	}

	// The refresh errors are reported as results.
	_ = g.Wait()

	return results
}

// refresh performs a single refresh and returns the result as a string.
func (h *refreshHandler) refresh(ctx context.Context, l *slog.Logger, id RefresherID) (res string) {
	start := time.Now()
	err := h.refrs[id].Refresh(ctx)
	if err != nil {
		l.ErrorContext(ctx, "refresher error", "id", id, slogutil.KeyError, err)

		return fmt.Sprintf("error: %s", err)
	}

	l.InfoContext(ctx, "refresh finished", "id", id, "duration", time.Since(start))

	return "ok"
}
