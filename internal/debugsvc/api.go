package debugsvc

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/pagedata"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
)

// maxReqBodySize is the maximum size of a request body.
const maxReqBodySize = 64 * datasize.KB

// Blocker is the engine cache queried by the API.  [*enginecache.Default] is
// the main implementation.
type Blocker interface {
	pagedata.ScriptTypesSource

	// ShouldBlock returns true if any enabled engine blocks the request.
	ShouldBlock(
		ctx context.Context,
		requestURL string,
		sourceURL string,
		rt adblock.ResourceType,
	) (ok bool)

	// CosmeticSelectors returns the sorted selectors hiding the elements of
	// the frame.
	CosmeticSelectors(
		ctx context.Context,
		frameURL string,
		ids []string,
		classes []string,
	) (aggressive, standard []string)

	// AvailableFilterLists returns the information about the filter lists of
	// the compiled engines.
	AvailableFilterLists() (infos []*adblock.FilterListInfo)
}

// RuleListSource returns the compiled content-blocker rule lists.
// [*contentblocker.Manager] is the main implementation.
type RuleListSource interface {
	// RuleLists returns the rule lists attached to page loads.
	RuleLists(ctx context.Context) (rls []*contentblocker.RuleList)
}

// apiHandler serves the query API.
type apiHandler struct {
	logger    *slog.Logger
	blocker   Blocker
	ruleLists RuleListSource
	parser    domainparser.Interface
}

// shouldBlockRequest describes the request to the POST /api/v1/should_block
// HTTP API.
type shouldBlockRequest struct {
	RequestURL   string               `json:"request_url"`
	SourceURL    string               `json:"source_url"`
	ResourceType adblock.ResourceType `json:"resource_type"`
}

// shouldBlockResponse describes the response to the POST /api/v1/should_block
// HTTP API.
type shouldBlockResponse struct {
	Block bool `json:"block"`
}

// serveShouldBlock handles the POST /api/v1/should_block HTTP API.
func (h *apiHandler) serveShouldBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &shouldBlockRequest{}
	if !decodeRequest(ctx, w, r, req) {
		return
	}

	if req.ResourceType == "" {
		respondBadRequest(ctx, w, errors.Error("resource_type: empty value"))

		return
	}

	writeResponse(ctx, w, &shouldBlockResponse{
		Block: h.blocker.ShouldBlock(ctx, req.RequestURL, req.SourceURL, req.ResourceType),
	})
}

// cosmeticSelectorsRequest describes the request to the POST
// /api/v1/cosmetic_selectors HTTP API.
type cosmeticSelectorsRequest struct {
	FrameURL string   `json:"frame_url"`
	IDs      []string `json:"ids"`
	Classes  []string `json:"classes"`
}

// cosmeticSelectorsResponse describes the response to the POST
// /api/v1/cosmetic_selectors HTTP API.
type cosmeticSelectorsResponse struct {
	AggressiveSelectors []string `json:"aggressive_selectors"`
	StandardSelectors   []string `json:"standard_selectors"`
}

// serveCosmeticSelectors handles the POST /api/v1/cosmetic_selectors HTTP API.
func (h *apiHandler) serveCosmeticSelectors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &cosmeticSelectorsRequest{}
	if !decodeRequest(ctx, w, r, req) {
		return
	}

	aggressive, standard := h.blocker.CosmeticSelectors(ctx, req.FrameURL, req.IDs, req.Classes)

	writeResponse(ctx, w, &cosmeticSelectorsResponse{
		AggressiveSelectors: emptyIfNil(aggressive),
		StandardSelectors:   emptyIfNil(standard),
	})
}

// scriptTypesRequest describes the request to the POST /api/v1/script_types
// HTTP API.
type scriptTypesRequest struct {
	FrameURL    string `json:"frame_url"`
	IsMainFrame bool   `json:"is_main_frame"`
}

// scriptTypesResponse describes the response to the script-types HTTP APIs.
type scriptTypesResponse struct {
	ScriptTypes []adblock.ScriptType `json:"script_types"`
}

// serveScriptTypes handles the POST /api/v1/script_types HTTP API.
func (h *apiHandler) serveScriptTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &scriptTypesRequest{}
	if !decodeRequest(ctx, w, r, req) {
		return
	}

	sts := h.blocker.EngineScriptTypes(ctx, req.FrameURL, req.IsMainFrame)
	writeResponse(ctx, w, newScriptTypesResponse(sts))
}

// newScriptTypesResponse returns the response with the sorted elements of sts.
func newScriptTypesResponse(sts *adblock.ScriptTypes) (resp *scriptTypesResponse) {
	return &scriptTypesResponse{
		ScriptTypes: emptyIfNil(adblock.SortedScriptTypes(sts)),
	}
}

// pageScriptTypesRequest describes the request to the POST
// /api/v1/page_script_types HTTP API.
type pageScriptTypesRequest struct {
	MainFrameURL string   `json:"main_frame_url"`
	SubframeURLs []string `json:"subframe_urls"`
}

// servePageScriptTypes handles the POST /api/v1/page_script_types HTTP API.
func (h *apiHandler) servePageScriptTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &pageScriptTypesRequest{}
	if !decodeRequest(ctx, w, r, req) {
		return
	}

	page := h.newPage(req.MainFrameURL)
	for _, u := range req.SubframeURLs {
		page.AddSubframeURL(u, false)
	}

	writeResponse(ctx, w, newScriptTypesResponse(page.UserScriptTypes(ctx)))
}

// partinessRequest describes the request to the POST /api/v1/partiness HTTP
// API.
type partinessRequest struct {
	FrameURL string   `json:"frame_url"`
	URLs     []string `json:"urls"`
}

// partinessResponse describes the response to the POST /api/v1/partiness HTTP
// API.
type partinessResponse struct {
	Partiness map[string]bool `json:"partiness"`
}

// servePartiness handles the POST /api/v1/partiness HTTP API.
func (h *apiHandler) servePartiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &partinessRequest{}
	if !decodeRequest(ctx, w, r, req) {
		return
	}

	page := h.newPage(req.FrameURL)
	writeResponse(ctx, w, &partinessResponse{
		Partiness: page.URLPartiness(req.FrameURL, req.URLs),
	})
}

// newPage returns the state of a page with the main frame at mainFrameURL.
func (h *apiHandler) newPage(mainFrameURL string) (page *pagedata.PageData) {
	return pagedata.New(&pagedata.Config{
		Logger:       h.logger,
		Scripts:      h.blocker,
		Parser:       h.parser,
		MainFrameURL: mainFrameURL,
	})
}

// filterListJSON is the JSON representation of an [adblock.FilterListInfo].
type filterListJSON struct {
	Source           string `json:"source"`
	FileLocation     string `json:"file_location"`
	RuleListLocation string `json:"rule_list_location,omitempty"`
	Format           string `json:"format"`
}

// filterListsResponse describes the response to the GET /api/v1/filter_lists
// HTTP API.
type filterListsResponse struct {
	FilterLists []*filterListJSON `json:"filter_lists"`
}

// serveFilterLists handles the GET /api/v1/filter_lists HTTP API.
func (h *apiHandler) serveFilterLists(w http.ResponseWriter, r *http.Request) {
	infos := h.blocker.AvailableFilterLists()

	resp := &filterListsResponse{
		FilterLists: make([]*filterListJSON, 0, len(infos)),
	}

	for _, info := range infos {
		resp.FilterLists = append(resp.FilterLists, &filterListJSON{
			Source:           info.Source.String(),
			FileLocation:     info.FileLocation,
			RuleListLocation: info.RuleListLocation,
			Format:           string(info.Format),
		})
	}

	writeResponse(r.Context(), w, resp)
}

// ruleListsResponse describes the response to the GET /api/v1/rule_lists HTTP
// API.
type ruleListsResponse struct {
	Identifiers []string `json:"identifiers"`
}

// serveRuleLists handles the GET /api/v1/rule_lists HTTP API.
func (h *apiHandler) serveRuleLists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rls := h.ruleLists.RuleLists(ctx)

	resp := &ruleListsResponse{
		Identifiers: make([]string, 0, len(rls)),
	}

	for _, rl := range rls {
		resp.Identifiers = append(resp.Identifiers, rl.Identifier)
	}

	writeResponse(ctx, w, resp)
}

// decodeRequest decodes the JSON body of r into req.  If it fails, it responds
// with an error and returns false.
func decodeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, req any) (ok bool) {
	err := agdhttp.DecodeJSON(r, req, maxReqBodySize)
	if err != nil {
		respondBadRequest(ctx, w, err)

		return false
	}

	return true
}

// respondBadRequest logs err and responds with it.
func respondBadRequest(ctx context.Context, w http.ResponseWriter, err error) {
	l := slogutil.MustLoggerFromContext(ctx)
	l.DebugContext(ctx, "bad request", slogutil.KeyError, err)

	http.Error(w, err.Error(), http.StatusBadRequest)
}

// writeResponse writes resp as JSON and logs the errors.
func writeResponse(ctx context.Context, w http.ResponseWriter, resp any) {
	err := agdhttp.WriteJSONResponse(w, http.StatusOK, resp)
	if err != nil {
		l := slogutil.MustLoggerFromContext(ctx)
		l.DebugContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// emptyIfNil returns an empty slice if s is nil, so that it's encoded as an
// empty JSON array.
func emptyIfNil[S ~[]E, E any](s S) (res S) {
	if s == nil {
		return S{}
	}

	return s
}
