// Package enginecache contains the cache of compiled ad-blocking engines, one
// per filter-list source, and the queries over all enabled engines.
package enginecache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/cachedengine"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/c2h5oh/datasize"
	"golang.org/x/sync/semaphore"
)

// EnabledSourcesFunc returns the sources of the engines that must be queried,
// in the order of their priority.
type EnabledSourcesFunc func(ctx context.Context) (srcs []adblock.Source)

// RuleCompiler compiles the content-blocker rule lists converted from the same
// filter lists as the engines.  [*contentblocker.Manager] is the main
// implementation.
type RuleCompiler interface {
	// MissingModes returns the allowed modes of typ without a compiled rule
	// list.
	MissingModes(ctx context.Context, typ contentblocker.BlocklistType) (modes []contentblocker.BlockingMode)

	// CompileFile compiles the rule list in the file at path for the modes.
	CompileFile(
		ctx context.Context,
		path string,
		typ contentblocker.BlocklistType,
		opts contentblocker.CompileOptions,
		modes []contentblocker.BlockingMode,
	) (err error)
}

// type check
var _ RuleCompiler = (*contentblocker.Manager)(nil)

// Config is the configuration structure for a [*Default].
type Config struct {
	// Logger is used for logging the operation of the cache.  It must not be
	// nil.
	Logger *slog.Logger

	// ErrColl is used to collect the compilation and query errors.  It must
	// not be nil.
	ErrColl errcoll.Interface

	// Metrics is used for the collection of the engine cache statistics.  It
	// must not be nil.
	Metrics Metrics

	// Constructor creates the native engines.  It must not be nil.
	Constructor adblock.EngineConstructor

	// Parser is used to determine the registrable domains of URLs.  It must
	// not be nil.
	Parser domainparser.Interface

	// CacheManager is used to register the memo caches of the engines.  It
	// must not be nil.
	CacheManager agdcache.Manager

	// Memo is the configuration of the memo caches of every engine.  It must
	// not be nil and must be valid.
	Memo *agdcache.MemoConfig

	// RuleCompiler, if not nil, is used to compile the missing content-blocker
	// rule lists of the filter lists with a rule-list location.
	RuleCompiler RuleCompiler

	// EnabledSources returns the sources to query.  It must not be nil.
	EnabledSources EnabledSourcesFunc

	// MaxFileSize is the maximum size of the filter-list and resources files.
	// It must be positive.
	MaxFileSize datasize.ByteSize
}

// Default is the cache of compiled engines.  All methods are safe for
// concurrent use.
type Default struct {
	logger         *slog.Logger
	errColl        errcoll.Interface
	metrics        Metrics
	constructor    adblock.EngineConstructor
	parser         domainparser.Interface
	cacheManager   agdcache.Manager
	memo           *agdcache.MemoConfig
	ruleCompiler   RuleCompiler
	enabledSources EnabledSourcesFunc

	// compileSem allows only one compilation at a time.
	compileSem *semaphore.Weighted

	// mu protects engines and resInfo.
	mu      *sync.RWMutex
	engines map[adblock.Source]*cachedengine.Engine
	resInfo *adblock.ResourcesInfo

	maxFileSize datasize.ByteSize
}

// New returns a new properly initialized *Default.  c must not be nil and must
// be valid.
func New(c *Config) (d *Default) {
	return &Default{
		logger:         c.Logger,
		errColl:        c.ErrColl,
		metrics:        c.Metrics,
		constructor:    c.Constructor,
		parser:         c.Parser,
		cacheManager:   c.CacheManager,
		memo:           c.Memo,
		ruleCompiler:   c.RuleCompiler,
		enabledSources: c.EnabledSources,
		compileSem:     semaphore.NewWeighted(1),
		mu:             &sync.RWMutex{},
		engines:        map[adblock.Source]*cachedengine.Engine{},
		maxFileSize:    c.MaxFileSize,
	}
}

// Compile compiles the engine for the filter list unless there already is one
// for its source.  It waits for the compilations in progress to finish first.
// info must not be nil, resInfo may be nil.
func (d *Default) Compile(
	ctx context.Context,
	info *adblock.FilterListInfo,
	resInfo *adblock.ResourcesInfo,
) (err error) {
	err = d.compileSem.Acquire(ctx, 1)
	if err != nil {
		return fmt.Errorf("waiting for compilation: %w", err)
	}
	defer d.compileSem.Release(1)

	if d.engine(info.Source) != nil {
		d.logger.DebugContext(ctx, "engine already compiled", "source", info)

		return nil
	}

	return d.compile(ctx, info, resInfo)
}

// Update compiles the engine for the filter list if there is none for its
// source or if the cached one was compiled from a different file.  The
// previous engine is kept if the compilation fails.  info must not be nil,
// resInfo may be nil.
func (d *Default) Update(
	ctx context.Context,
	info *adblock.FilterListInfo,
	resInfo *adblock.ResourcesInfo,
) (err error) {
	err = d.compileSem.Acquire(ctx, 1)
	if err != nil {
		return fmt.Errorf("waiting for compilation: %w", err)
	}
	defer d.compileSem.Release(1)

	if e := d.engine(info.Source); e != nil && isSameFiles(e, info, resInfo) {
		d.logger.DebugContext(ctx, "engine up to date", "source", info)

		return nil
	}

	return d.compile(ctx, info, resInfo)
}

// isSameFiles returns true if e was compiled from info and resInfo.
func isSameFiles(
	e *cachedengine.Engine,
	info *adblock.FilterListInfo,
	resInfo *adblock.ResourcesInfo,
) (ok bool) {
	if *e.Info() != *info {
		return false
	}

	cached := e.ResourcesInfo()
	if cached == nil || resInfo == nil {
		return cached == resInfo
	}

	return *cached == *resInfo
}

// compile compiles the engine for info and replaces the cached one, if any.
// d.compileSem must be acquired.
func (d *Default) compile(
	ctx context.Context,
	info *adblock.FilterListInfo,
	resInfo *adblock.ResourcesInfo,
) (err error) {
	start := time.Now()
	e, err := cachedengine.Compile(ctx, &cachedengine.CompileConfig{
		Logger:        d.logger.With("source", info.Source.String()),
		Constructor:   d.constructor,
		Parser:        d.parser,
		CacheManager:  d.cacheManager,
		Memo:          d.memo,
		Info:          info,
		ResourcesInfo: resInfo,
		MaxFileSize:   d.maxFileSize,
	})
	d.metrics.ObserveCompile(ctx, info.Source.Kind, time.Since(start), err)
	if err != nil {
		errcoll.Collect(ctx, d.errColl, d.logger, "compiling engine", err)

		return err
	}

	d.set(ctx, info.Source, e, resInfo)

	d.logger.InfoContext(ctx, "compiled engine", "source", info, "elapsed", time.Since(start))

	d.compileRuleLists(ctx, info)

	return nil
}

// set adds e to the cache and closes the engine it replaces, if any.
func (d *Default) set(
	ctx context.Context,
	src adblock.Source,
	e *cachedengine.Engine,
	resInfo *adblock.ResourcesInfo,
) {
	d.mu.Lock()
	prev := d.engines[src]
	d.engines[src] = e
	if resInfo != nil {
		d.resInfo = resInfo
	}
	n := len(d.engines)
	d.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	d.metrics.SetCachedEngines(ctx, n)
}

// compileRuleLists compiles the missing content-blocker rule lists for the
// filter list, if there is a rule compiler and the filter list has them.
func (d *Default) compileRuleLists(ctx context.Context, info *adblock.FilterListInfo) {
	if d.ruleCompiler == nil || info.RuleListLocation == "" {
		return
	}

	typ, ok := info.BlocklistType()
	if !ok {
		return
	}

	modes := d.ruleCompiler.MissingModes(ctx, typ)
	err := d.ruleCompiler.CompileFile(ctx, info.RuleListLocation, typ, contentblocker.OptionsAll, modes)
	if err != nil {
		errcoll.Collect(ctx, d.errColl, d.logger, "compiling rule lists", err)
	}
}

// Evict removes the engine for src from the cache and closes it.  It does
// nothing if there is none.
func (d *Default) Evict(ctx context.Context, src adblock.Source) {
	d.mu.Lock()
	e := d.engines[src]
	delete(d.engines, src)
	n := len(d.engines)
	d.mu.Unlock()

	if e == nil {
		return
	}

	e.Close()
	d.metrics.SetCachedEngines(ctx, n)

	d.logger.InfoContext(ctx, "evicted engine", "source", src)
}

// engine returns the cached engine for src or nil if there is none.
func (d *Default) engine(src adblock.Source) (e *cachedengine.Engine) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.engines[src]
}

// AvailableFilterLists returns the filter lists of the compiled engines sorted
// by source.
func (d *Default) AvailableFilterLists() (infos []*adblock.FilterListInfo) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.engines {
		infos = append(infos, e.Info())
	}

	slices.SortFunc(infos, func(a, b *adblock.FilterListInfo) (res int) {
		return cmp.Or(
			cmp.Compare(a.Source.Kind, b.Source.Kind),
			cmp.Compare(a.Source.ID, b.Source.ID),
		)
	})

	return infos
}

// ResourcesInfo returns the resources used by the most recently compiled
// engine that had them, or nil if there were none.
func (d *Default) ResourcesInfo() (resInfo *adblock.ResourcesInfo) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.resInfo
}

// Shutdown closes all engines.  It is intended to be used as a shutdown hook.
func (d *Default) Shutdown(ctx context.Context) (err error) {
	d.mu.Lock()
	engines := d.engines
	d.engines = map[adblock.Source]*cachedengine.Engine{}
	d.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}

	d.metrics.SetCachedEngines(ctx, 0)

	return nil
}
