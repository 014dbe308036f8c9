// Package cachedengine contains a handle to a native ad-blocking engine that
// serializes the calls to it and memoizes the results of its queries.
package cachedengine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/panjf2000/ants/v2"
)

// Config is the configuration structure for an [*Engine].
type Config struct {
	// Logger is used for logging the operation of the engine.  It must not be
	// nil.
	Logger *slog.Logger

	// Engine is the native engine.  It must not be nil.
	Engine adblock.Engine

	// Parser is used to determine the registrable domains of URLs.  It must
	// not be nil.
	Parser domainparser.Interface

	// CacheManager is used to register the memo caches of the engine.  It must
	// not be nil.
	CacheManager agdcache.Manager

	// Memo is the configuration of the memo caches.  It must not be nil and
	// must be valid.
	Memo *agdcache.MemoConfig

	// Info is the filter list the engine was compiled from.  It must not be
	// nil.
	Info *adblock.FilterListInfo

	// ResourcesInfo is the resources file used by the engine.  It may be nil.
	ResourcesInfo *adblock.ResourcesInfo
}

// scriptKey is the key of the memo of engine script types.
type scriptKey struct {
	frameURL    string
	order       int
	isMainFrame bool
}

// Engine is a handle to a native engine.  All methods are safe for concurrent
// use.
type Engine struct {
	logger       *slog.Logger
	engine       adblock.Engine
	parser       domainparser.Interface
	pool         *ants.Pool
	cacheManager agdcache.Manager

	shouldBlock agdcache.Interface[string, bool]
	cosmetic    agdcache.Interface[string, *adblock.CosmeticFilterModel]
	scripts     agdcache.Interface[scriptKey, *adblock.ScriptTypes]

	info    *adblock.FilterListInfo
	resInfo *adblock.ResourcesInfo

	// caches are the memo caches by their ids in the cache manager.
	caches map[string]agdcache.Clearer

	// queries are the acquired queries, see [Engine.Acquire].
	queries *sync.WaitGroup
}

// New returns a new properly initialized *Engine.  c must not be nil and must
// be valid.
func New(c *Config) (e *Engine) {
	e = &Engine{
		logger:       c.Logger,
		engine:       c.Engine,
		parser:       c.Parser,
		pool:         newWorker(c.Logger),
		cacheManager: c.CacheManager,
		shouldBlock:  agdcache.NewMemo[string, bool](c.Memo),
		cosmetic:     agdcache.NewMemo[string, *adblock.CosmeticFilterModel](c.Memo),
		scripts:      agdcache.NewMemo[scriptKey, *adblock.ScriptTypes](c.Memo),
		info:         c.Info,
		resInfo:      c.ResourcesInfo,
		queries:      &sync.WaitGroup{},
	}

	prefix := "engine/" + c.Info.Source.String() + "/"
	e.caches = map[string]agdcache.Clearer{
		prefix + "should_block": e.shouldBlock,
		prefix + "cosmetic":     e.cosmetic,
		prefix + "script_types": e.scripts,
	}

	for id, cache := range e.caches {
		e.cacheManager.Add(id, cache)
	}

	return e
}

// Info returns the filter list the engine was compiled from.
func (e *Engine) Info() (info *adblock.FilterListInfo) {
	return e.info
}

// ResourcesInfo returns the resources file used by the engine.  It may be nil.
func (e *Engine) ResourcesInfo() (resInfo *adblock.ResourcesInfo) {
	return e.resInfo
}

// ShouldBlock returns true if the request for requestURL made by the page at
// sourceURL must be blocked.  Data URLs, requests from blank pages, and URLs
// without a registrable domain are never blocked.
func (e *Engine) ShouldBlock(
	ctx context.Context,
	requestURL string,
	sourceURL string,
	rt adblock.ResourceType,
) (ok bool) {
	req, ok := e.matchRequest(requestURL, sourceURL, rt)
	if !ok {
		return false
	}

	key := requestURL + "_" + sourceURL + "_" + string(rt)
	if blocked, cached := e.shouldBlock.Get(key); cached {
		return blocked
	}

	res, err := run(ctx, e, func() (res adblock.MatchResult) {
		return e.engine.Match(req)
	})
	if err != nil {
		e.logger.DebugContext(ctx, "matching request", "url", requestURL, slogutil.KeyError, err)

		return false
	}

	e.shouldBlock.Set(key, res.Matched)

	return res.Matched
}

// matchRequest returns the engine request for the URLs.  ok is false if the
// request must not be sent to the engine.
func (e *Engine) matchRequest(
	requestURL string,
	sourceURL string,
	rt adblock.ResourceType,
) (req *adblock.MatchRequest, ok bool) {
	if sourceURL == "about:blank" {
		return nil, false
	}

	reqURL, err := url.Parse(requestURL)
	if err != nil || reqURL.Scheme == "data" || reqURL.Hostname() == "" {
		return nil, false
	}

	srcURL, err := url.Parse(sourceURL)
	if err != nil || srcURL.Hostname() == "" {
		return nil, false
	}

	reqDomain := domainparser.BaseDomain(e.parser, requestURL)
	srcDomain := domainparser.BaseDomain(e.parser, sourceURL)
	if reqDomain == "" || srcDomain == "" {
		return nil, false
	}

	return &adblock.MatchRequest{
		URL:          requestURL,
		Host:         reqURL.Hostname(),
		SourceHost:   srcURL.Hostname(),
		ResourceType: rt,
		IsThirdParty: reqDomain != srcDomain,
	}, true
}

// CosmeticFilterModel returns the cosmetic resources for the frame.  m is nil
// if the engine has none.
func (e *Engine) CosmeticFilterModel(
	ctx context.Context,
	frameURL string,
) (m *adblock.CosmeticFilterModel, err error) {
	if m, ok := e.cosmetic.Get(frameURL); ok {
		return m, nil
	}

	data, err := run(ctx, e, func() (data []byte) {
		return e.engine.CosmeticResources(frameURL)
	})
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	m, err = adblock.DecodeCosmeticFilterModel(data)
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", frameURL, err)
	}

	e.cosmetic.Set(frameURL, m)

	return m, nil
}

// SelectorsForCosmeticRules returns the selectors hiding the elements of the
// frame with the given ids and classes.
func (e *Engine) SelectorsForCosmeticRules(
	ctx context.Context,
	frameURL string,
	ids []string,
	classes []string,
) (sels *container.MapSet[string], err error) {
	m, err := e.CosmeticFilterModel(ctx, frameURL)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	var exceptions []string
	if m != nil {
		exceptions = m.Exceptions
	}

	data, err := run(ctx, e, func() (data []byte) {
		return e.engine.HiddenSelectors(classes, ids, exceptions)
	})
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	list, err := adblock.DecodeSelectors(data)
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", frameURL, err)
	}

	return container.NewMapSet(list...), nil
}

// EngineScriptTypes returns the user scripts of the engine for the frame.
// order is the position of the engine among the enabled ones.  sts is shared
// with the memo and must not be modified.
func (e *Engine) EngineScriptTypes(
	ctx context.Context,
	frameURL string,
	isMainFrame bool,
	order int,
) (sts *adblock.ScriptTypes, err error) {
	key := scriptKey{
		frameURL:    frameURL,
		order:       order,
		isMainFrame: isMainFrame,
	}

	if sts, ok := e.scripts.Get(key); ok {
		return sts, nil
	}

	m, err := e.CosmeticFilterModel(ctx, frameURL)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	sts = adblock.NewScriptTypes()
	if m != nil && m.InjectedScript != "" {
		sts.Add(adblock.ScriptTypeEngine(adblock.EngineScriptConfig{
			FrameURL:       frameURL,
			Source:         m.InjectedScript,
			Order:          order,
			IsMainFrame:    isMainFrame,
			IsDeAMPEnabled: true,
		}))
	}

	e.scripts.Set(key, sts)

	return sts, nil
}

// Acquire registers a query using e, so that [Engine.Close] waits for it to
// finish.  Each call must be followed by a call to [Engine.Release].  Acquire
// must not be called once e is no longer reachable by new queries, that is,
// concurrently with or after Close.
func (e *Engine) Acquire() {
	e.queries.Add(1)
}

// Release unregisters a query registered by [Engine.Acquire].
func (e *Engine) Release() {
	e.queries.Done()
}

// Close waits for the acquired queries to finish, releases the worker of the
// engine, and unregisters its caches.
func (e *Engine) Close() {
	e.queries.Wait()
	e.pool.Release()

	for id, cache := range e.caches {
		e.cacheManager.Remove(id, cache)
	}
}
