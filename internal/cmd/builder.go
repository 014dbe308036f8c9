package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/enginecache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/ufengine"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdio"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdservice"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker/rulestore"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/filterindex"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/metrics"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/prometheus/client_golang/prometheus"
)

// Constants that define debug identifiers for the debug HTTP service.
const (
	debugIDContentBlockers = "content_blockers"
	debugIDFilters         = "filters"
)

// defaultDirPerm is the permissions of the directories created by the
// builder.
const defaultDirPerm = 0o700

// type check
var (
	_ debugsvc.Blocker        = (*enginecache.Default)(nil)
	_ debugsvc.RuleListSource = (*contentblocker.Manager)(nil)
	_ filterindex.Updater     = (*enginecache.Default)(nil)
)

// builder contains the logic of configuring and combining together AdGuard
// Content Blocker entities.
//
// NOTE:  Keep method definitions in the rough order in which they are intended
// to be called.
type builder struct {
	// The fields below are initialized immediately on construction.  Keep them
	// sorted.

	baseLogger     *slog.Logger
	cacheManager   *agdcache.DefaultManager
	conf           *configuration
	debugRefrs     debugsvc.Refreshers
	env            *environment
	errColl        errcoll.Interface
	logger         *slog.Logger
	promRegisterer prometheus.Registerer
	sigHdlr        *service.SignalHandler

	// The fields below are initialized later by calling the builder's methods.
	// Keep them sorted.

	engineCache *enginecache.Default
	filterIndex *filterindex.Index
	parser      domainparser.Interface
	ruleLists   *contentblocker.Manager
	ruleStore   contentblocker.Store
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// conf contains the configuration from the configuration file for the
	// builder.  It must be valid and must not be nil.
	conf *configuration

	// baseLogger is used to create loggers for other entities.  It should not
	// have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be nil.
	errColl errcoll.Interface
}

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		baseLogger:     c.baseLogger,
		cacheManager:   agdcache.NewDefaultManager(),
		conf:           c.conf,
		debugRefrs:     debugsvc.Refreshers{},
		env:            c.envs,
		errColl:        c.errColl,
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		promRegisterer: prometheus.DefaultRegisterer,
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// initDomainParser initializes the domain parser.  If the path to the public
// suffix list isn't set, the list built into the binary is used.
func (b *builder) initDomainParser(ctx context.Context) (err error) {
	path := b.env.PublicSuffixListPath
	if path == "" {
		b.parser = domainparser.Builtin{}
		b.logger.DebugContext(ctx, "initialized builtin domain parser")

		return nil
	}

	rules, err := agdio.ReadFile(path, b.env.MaxFileSize)
	if err != nil {
		return fmt.Errorf("reading public suffix list: %w", err)
	}

	c := b.conf.DomainParser
	b.parser, err = domainparser.New(&domainparser.Config{
		Rules:        rules,
		CacheSize:    c.CacheSize,
		QuickParsing: c.QuickParsing,
	})
	if err != nil {
		return fmt.Errorf("creating domain parser: %w", err)
	}

	b.logger.DebugContext(ctx, "initialized domain parser", "path", path)

	return nil
}

// initRuleStore initializes the content-blocker rule-list store of the type
// set in the environment.
func (b *builder) initRuleStore(ctx context.Context) (err error) {
	typ := b.env.RuleStoreType
	path := b.env.RuleStorePath
	l := b.baseLogger.With(slogutil.KeyPrefix, "rulestore")

	switch typ {
	case rulestore.TypeDir:
		b.ruleStore, err = rulestore.NewDir(&rulestore.DirConfig{
			Logger:       l,
			CacheManager: b.cacheManager,
			Path:         path,
			CacheCount:   b.conf.ContentBlockers.StoreCacheSize,
		})
	case rulestore.TypeBolt:
		var s *rulestore.Bolt
		s, err = rulestore.NewBolt(&rulestore.BoltConfig{
			Logger:  l,
			Path:    path,
			Timeout: b.conf.ContentBlockers.lockTimeout(),
		})
		if err == nil {
			b.ruleStore = s
			b.sigHdlr.AddService(newShutdownService(func(_ context.Context) (err error) {
				return s.Close()
			}))
		}
	default:
		panic(fmt.Errorf("rule store type: %w: %q", errors.ErrBadEnumValue, typ))
	}

	if err != nil {
		return fmt.Errorf("creating %s rule store: %w", typ, err)
	}

	b.logger.DebugContext(ctx, "initialized rule store", "type", typ, "path", path)

	return nil
}

// initContentBlockers initializes the content-blocker rule compiler and loads
// the bundled rule lists.
//
// [builder.initRuleStore] must be called before this method.
func (b *builder) initContentBlockers(ctx context.Context) (err error) {
	mtrc, err := metrics.NewContentBlocker(metrics.Namespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering content blocker metrics: %w", err)
	}

	c := b.conf.ContentBlockers
	b.ruleLists = contentblocker.NewManager(&contentblocker.Config{
		Logger:      b.baseLogger.With(slogutil.KeyPrefix, "contentblocker"),
		Store:       b.ruleStore,
		Metrics:     mtrc,
		BundleDir:   c.BundleDir,
		ValidTypes:  c.validTypes(),
		MaxFileSize: b.env.MaxFileSize,
	})

	err = b.ruleLists.LoadBundledIfNeeded(ctx)
	if err != nil {
		return fmt.Errorf("loading bundled rule lists: %w", err)
	}

	b.debugRefrs[debugIDContentBlockers] = b.ruleLists

	b.logger.DebugContext(ctx, "initialized content blockers")

	return nil
}

// initEngineCache initializes the cache of the compiled filter-list engines.
// The enabled sources are taken from the filter index, which is initialized
// later.
//
// The following methods must be called before this one:
//   - [builder.initContentBlockers]
//   - [builder.initDomainParser]
func (b *builder) initEngineCache(ctx context.Context) (err error) {
	mtrc, err := metrics.NewEngineCache(metrics.Namespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering engine cache metrics: %w", err)
	}

	b.engineCache = enginecache.New(&enginecache.Config{
		Logger:       b.baseLogger.With(slogutil.KeyPrefix, "enginecache"),
		ErrColl:      b.errColl,
		Metrics:      mtrc,
		Constructor:  ufengine.Constructor{},
		Parser:       b.parser,
		CacheManager: b.cacheManager,
		Memo:         b.conf.Cache.toInternal(),
		RuleCompiler: b.ruleLists,
		EnabledSources: func(ctx context.Context) (srcs []adblock.Source) {
			return b.filterIndex.EnabledSources(ctx)
		},
		MaxFileSize: b.env.MaxFileSize,
	})

	b.sigHdlr.AddService(newShutdownService(b.engineCache.Shutdown))

	b.logger.DebugContext(ctx, "initialized engine cache")

	return nil
}

// initFilterIndex initializes the filter index, performs the initial refresh
// of the filter lists, and starts the refresh worker.
//
// [builder.initEngineCache] must be called before this method.
func (b *builder) initFilterIndex(ctx context.Context) (err error) {
	err = os.MkdirAll(b.env.FilterCachePath, defaultDirPerm)
	if err != nil {
		return fmt.Errorf("creating filter cache dir: %w", err)
	}

	mtrc, err := metrics.NewFilterIndex(metrics.Namespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering filter index metrics: %w", err)
	}

	c := b.conf.Filters
	l := b.baseLogger.With(slogutil.KeyPrefix, "filterindex")
	b.filterIndex, err = filterindex.New(&filterindex.Config{
		Logger:    l,
		ErrColl:   b.errColl,
		Metrics:   mtrc,
		Updater:   b.engineCache,
		Resources: c.resourcesInfo(),
		CacheDir:  b.env.FilterCachePath,
		Lists:     c.toInternal(),
		Staleness: time.Duration(c.Staleness),
		Timeout:   time.Duration(c.DownloadTimeout),
		MaxSize:   c.MaxSize,
	})
	if err != nil {
		return fmt.Errorf("creating filter index: %w", err)
	}

	refrConf := b.conf.Refresh
	refrCtx, cancel := context.WithTimeout(ctx, time.Duration(refrConf.Timeout))
	defer cancel()

	err = b.filterIndex.Refresh(refrCtx)
	if err != nil {
		// The errors of single lists are already collected, and the lists that
		// have been compiled are usable.
		b.logger.WarnContext(ctx, "initial filter refresh", slogutil.KeyError, err)
	}

	refr := agdservice.NewRefreshWorker(&agdservice.RefreshWorkerConfig{
		Context:        newCtxWithTimeoutCons(time.Duration(refrConf.Timeout)),
		Refresher:      agdservice.NewRefresherWithErrColl(b.filterIndex, l, b.errColl, debugIDFilters),
		Logger:         l.With("worker", "refresh"),
		Interval:       refrConf.interval(),
		Jitter:         refrConf.Jitter,
	})
	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting filter refresh: %w", err)
	}

	b.sigHdlr.AddService(refr)

	b.debugRefrs[debugIDFilters] = b.filterIndex

	b.logger.DebugContext(ctx, "initialized filter index", "lists", len(c.Lists))

	return nil
}

// mustInitDebugSvc initializes, starts, and registers the debug service.  The
// debug HTTP service is considered critical, so it panics instead of returning
// an error.
//
// The following methods must be called before this one:
//   - [builder.initContentBlockers]
//   - [builder.initDomainParser]
//   - [builder.initEngineCache]
//   - [builder.initFilterIndex]
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	debugSvcConf := b.env.debugConf(b.baseLogger)
	debugSvcConf.Manager = b.cacheManager
	debugSvcConf.Refreshers = b.debugRefrs
	debugSvcConf.Blocker = b.engineCache
	debugSvcConf.RuleLists = b.ruleLists
	debugSvcConf.Parser = b.parser
	debugSvc := debugsvc.New(debugSvcConf)

	errors.Check(debugSvc.Start(context.WithoutCancel(ctx)))

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
	)
}

// handleSignals blocks and processes signals from the OS.  status is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	b.logger.DebugContext(ctx, "cache manager initialized", "ids", b.cacheManager.IDs())

	return b.sigHdlr.Handle(ctx)
}

// newCtxWithTimeoutCons returns a context constructor that creates a simple
// context with the given timeout.
func newCtxWithTimeoutCons(
	timeout time.Duration,
) (c func() (ctx context.Context, cancel context.CancelFunc)) {
	parent := context.Background()

	return func() (ctx context.Context, cancel context.CancelFunc) {
		return context.WithTimeout(parent, timeout)
	}
}

// shutdownService is a [service.Interface] for entities that only need to be
// shut down.
type shutdownService struct {
	shutdown func(ctx context.Context) (err error)
}

// newShutdownService returns a service that calls shutdown on shutdown.
func newShutdownService(shutdown func(ctx context.Context) (err error)) (s *shutdownService) {
	return &shutdownService{
		shutdown: shutdown,
	}
}

// type check
var _ service.Interface = (*shutdownService)(nil)

// Start implements the [service.Interface] interface for *shutdownService.
// err is always nil.
func (s *shutdownService) Start(_ context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for *shutdownService.
func (s *shutdownService) Shutdown(ctx context.Context) (err error) {
	return s.shutdown(ctx)
}
