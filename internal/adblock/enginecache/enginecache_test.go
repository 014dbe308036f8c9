package enginecache_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/enginecache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdtest"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testFrameURL is the common frame URL for tests.
const testFrameURL = "https://page.example/"

// newHostEngine returns a mock engine that blocks requests to host, hides the
// "#ad-<host>" selector, and injects host as the script.
func newHostEngine(host string) (e *agdtest.Engine) {
	return &agdtest.Engine{
		OnMatch: func(req *adblock.MatchRequest) (res adblock.MatchResult) {
			return adblock.MatchResult{Matched: req.Host == host}
		},
		OnUseResources: func(_ []byte) {},
		OnDeserialize:  func(_ []byte) (ok bool) { return false },
		OnCosmeticResources: func(_ string) (data []byte) {
			return fmt.Appendf(nil, `{"injected_script":%q}`, host)
		},
		OnHiddenSelectors: func(_, _, _ []string) (data []byte) {
			return fmt.Appendf(nil, `["#ad-%s"]`, host)
		},
	}
}

// testConstructor is a constructor that creates host engines for the host
// written in the filter-list file and counts the calls.
type testConstructor struct {
	// onNew, if not nil, is called on every construction.
	onNew func()

	// newEngine, if not nil, is used instead of [newHostEngine].
	newEngine func(host string) (e *agdtest.Engine)

	calls atomic.Int64
}

// newConstructor returns the constructor for the engine cache.
func (c *testConstructor) newConstructor() (cons *agdtest.EngineConstructor) {
	newEngine := c.newEngine
	if newEngine == nil {
		newEngine = newHostEngine
	}

	return &agdtest.EngineConstructor{
		OnNew: func(text []byte) (e adblock.Engine, err error) {
			c.calls.Add(1)
			if c.onNew != nil {
				c.onNew()
			}

			return newEngine(string(text)), nil
		},
	}
}

// writeList writes a filter-list file with host as the contents and returns
// the info for it.
func writeList(tb testing.TB, src adblock.Source, host string) (info *adblock.FilterListInfo) {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "list.txt")
	err := os.WriteFile(path, []byte(host), 0o600)
	require.NoError(tb, err)

	return &adblock.FilterListInfo{
		Source:       src,
		FileLocation: path,
		Format:       adblock.FileFormatText,
	}
}

// testCacheConfig contains the varying parts of the cache configuration.
type testCacheConfig struct {
	// constructor, if not nil, is used instead of a new *testConstructor.
	constructor *testConstructor

	errColl        errcoll.Interface
	cacheManager   agdcache.Manager
	ruleCompiler   enginecache.RuleCompiler
	enabledSources enginecache.EnabledSourcesFunc
}

// newCache returns a new engine cache and the constructor it uses.
func newCache(tb testing.TB, c *testCacheConfig) (d *enginecache.Default, cons *testConstructor) {
	tb.Helper()

	if c.errColl == nil {
		c.errColl = agdtest.NewErrorCollector()
	}

	if c.cacheManager == nil {
		c.cacheManager = agdcache.EmptyManager{}
	}

	cons = c.constructor
	if cons == nil {
		cons = &testConstructor{}
	}

	d = enginecache.New(&enginecache.Config{
		Logger:         slogutil.NewDiscardLogger(),
		ErrColl:        c.errColl,
		Metrics:        enginecache.EmptyMetrics{},
		Constructor:    cons.newConstructor(),
		Parser:         domainparser.Builtin{},
		CacheManager:   c.cacheManager,
		Memo:           agdcache.DefaultMemoConfig(),
		RuleCompiler:   c.ruleCompiler,
		EnabledSources: c.enabledSources,
		MaxFileSize:    1 * datasize.MB,
	})

	testutil.CleanupAndRequireSuccess(tb, func() (err error) {
		return d.Shutdown(context.Background())
	})

	return d, cons
}

// enabled returns an EnabledSourcesFunc that always returns srcs.
func enabled(srcs ...adblock.Source) (f enginecache.EnabledSourcesFunc) {
	return func(_ context.Context) (res []adblock.Source) {
		return srcs
	}
}

func TestDefault_Compile(t *testing.T) {
	src := adblock.SourceAdBlock()
	d, cons := newCache(t, &testCacheConfig{
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	info := writeList(t, src, "ads.example")

	for range 3 {
		err := d.Compile(ctx, info, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), cons.calls.Load())
	assert.Equal(t, []*adblock.FilterListInfo{info}, d.AvailableFilterLists())
	assert.Nil(t, d.ResourcesInfo())

	assert.True(t, d.ShouldBlock(ctx, "https://ads.example/a.js", testFrameURL, adblock.ResourceTypeScript))
}

func TestDefault_Compile_concurrent(t *testing.T) {
	const numCalls = 10

	src := adblock.SourceAdBlock()
	d, cons := newCache(t, &testCacheConfig{
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	info := writeList(t, src, "ads.example")

	wg := &sync.WaitGroup{}
	for range numCalls {
		wg.Go(func() {
			assert.NoError(t, d.Compile(ctx, info, nil))
		})
	}

	wg.Wait()

	assert.Equal(t, int64(1), cons.calls.Load())
	assert.Equal(t, []*adblock.FilterListInfo{info}, d.AvailableFilterLists())
}

func TestDefault_Compile_serialized(t *testing.T) {
	const numSources = 5

	var inFlight, maxInFlight atomic.Int64
	cons := &testConstructor{
		onNew: func() {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)

			for m := maxInFlight.Load(); n > m; m = maxInFlight.Load() {
				if maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}

			time.Sleep(testTimeout / 50)
		},
	}

	srcs := make([]adblock.Source, 0, numSources)
	for i := range numSources {
		srcs = append(srcs, adblock.SourceFilterList(fmt.Sprintf("list-%d", i)))
	}

	d, _ := newCache(t, &testCacheConfig{
		constructor:    cons,
		enabledSources: enabled(srcs...),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)

	wg := &sync.WaitGroup{}
	for i, src := range srcs {
		info := writeList(t, src, fmt.Sprintf("h%d.example", i))
		wg.Go(func() {
			assert.NoError(t, d.Compile(ctx, info, nil))
		})
	}

	wg.Wait()

	assert.Equal(t, int64(1), maxInFlight.Load())
	assert.Equal(t, int64(numSources), cons.calls.Load())
	assert.Len(t, d.AvailableFilterLists(), numSources)
}

func TestDefault_Compile_error(t *testing.T) {
	var collected atomic.Int64
	errColl := &agdtest.ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			collected.Add(1)
			assert.ErrorIs(t, err, adblock.ErrFileNotFound)
		},
	}

	d, _ := newCache(t, &testCacheConfig{
		errColl:        errColl,
		enabledSources: enabled(),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	info := &adblock.FilterListInfo{
		Source:       adblock.SourceFilterList("absent"),
		FileLocation: filepath.Join(t.TempDir(), "absent.txt"),
		Format:       adblock.FileFormatText,
	}

	err := d.Compile(ctx, info, nil)
	assert.ErrorIs(t, err, adblock.ErrFileNotFound)
	assert.Equal(t, int64(1), collected.Load())
	assert.Empty(t, d.AvailableFilterLists())
}

func TestDefault_ShouldBlock(t *testing.T) {
	srcA := adblock.SourceAdBlock()
	srcB := adblock.SourceFilterList("b")

	var enabledSrcs atomic.Pointer[[]adblock.Source]
	enabledSrcs.Store(&[]adblock.Source{srcA})

	d, _ := newCache(t, &testCacheConfig{
		enabledSources: func(_ context.Context) (srcs []adblock.Source) {
			return *enabledSrcs.Load()
		},
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, writeList(t, srcA, "a.example"), nil))
	require.NoError(t, d.Compile(ctx, writeList(t, srcB, "b.example"), nil))

	const (
		urlA = "https://a.example/x.js"
		urlB = "https://b.example/x.js"
	)

	assert.True(t, d.ShouldBlock(ctx, urlA, testFrameURL, adblock.ResourceTypeScript))
	assert.False(t, d.ShouldBlock(ctx, urlB, testFrameURL, adblock.ResourceTypeScript))

	enabledSrcs.Store(&[]adblock.Source{srcA, srcB, adblock.SourceFilterListURL("not-compiled")})

	assert.True(t, d.ShouldBlock(ctx, urlA, testFrameURL, adblock.ResourceTypeScript))
	assert.True(t, d.ShouldBlock(ctx, urlB, testFrameURL, adblock.ResourceTypeScript))
	assert.False(t, d.ShouldBlock(ctx, "https://c.example/", testFrameURL, adblock.ResourceTypeScript))
}

func TestDefault_ShouldBlock_concurrent(t *testing.T) {
	const (
		numSources = 5
		numCalls   = 50
	)

	srcs := make([]adblock.Source, 0, numSources)
	for i := range numSources {
		srcs = append(srcs, adblock.SourceFilterList(fmt.Sprintf("list-%d", i)))
	}

	d, _ := newCache(t, &testCacheConfig{
		enabledSources: enabled(srcs...),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	for i, src := range srcs {
		err := d.Compile(ctx, writeList(t, src, fmt.Sprintf("h%d.example", i)), nil)
		require.NoError(t, err)
	}

	wg := &sync.WaitGroup{}
	for i := range numCalls {
		wg.Go(func() {
			blockedURL := fmt.Sprintf("https://h%d.example/ad.js", i%numSources)
			assert.True(t, d.ShouldBlock(ctx, blockedURL, testFrameURL, adblock.ResourceTypeScript))

			allowedURL := fmt.Sprintf("https://other%d.example/app.js", i)
			assert.False(t, d.ShouldBlock(ctx, allowedURL, testFrameURL, adblock.ResourceTypeScript))
		})
	}

	wg.Wait()
}

func TestDefault_CosmeticSelectors(t *testing.T) {
	srcAdBlock := adblock.SourceAdBlock()
	srcList := adblock.SourceFilterList("list")
	srcURL := adblock.SourceFilterListURL("custom")

	d, _ := newCache(t, &testCacheConfig{
		enabledSources: enabled(srcURL, srcList, srcAdBlock),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, writeList(t, srcAdBlock, "a"), nil))
	require.NoError(t, d.Compile(ctx, writeList(t, srcList, "l"), nil))
	require.NoError(t, d.Compile(ctx, writeList(t, srcURL, "u"), nil))

	aggressive, standard := d.CosmeticSelectors(ctx, testFrameURL, []string{"ad"}, nil)

	assert.Equal(t, []string{"#ad-a", "#ad-l"}, aggressive)
	assert.Equal(t, []string{"#ad-u"}, standard)
}

func TestDefault_EngineScriptTypes(t *testing.T) {
	srcA := adblock.SourceAdBlock()
	srcB := adblock.SourceFilterList("b")

	d, _ := newCache(t, &testCacheConfig{
		enabledSources: enabled(srcA, srcB),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, writeList(t, srcA, "a"), nil))
	require.NoError(t, d.Compile(ctx, writeList(t, srcB, "b"), nil))

	sts := d.EngineScriptTypes(ctx, testFrameURL, true)

	newScript := func(source string, order int) (st adblock.ScriptType) {
		return adblock.ScriptTypeEngine(adblock.EngineScriptConfig{
			FrameURL:       testFrameURL,
			Source:         source,
			Order:          order,
			IsMainFrame:    true,
			IsDeAMPEnabled: true,
		})
	}

	want := []adblock.ScriptType{newScript("a", 0), newScript("b", 1)}
	assert.Equal(t, want, adblock.SortedScriptTypes(sts))
}

func TestDefault_Update(t *testing.T) {
	src := adblock.SourceFilterList("list")

	var collected atomic.Int64
	errColl := &agdtest.ErrorCollector{
		OnCollect: func(_ context.Context, _ error) { collected.Add(1) },
	}

	d, cons := newCache(t, &testCacheConfig{
		errColl:        errColl,
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	oldInfo := writeList(t, src, "old.example")

	require.NoError(t, d.Update(ctx, oldInfo, nil))
	require.NoError(t, d.Update(ctx, oldInfo, nil))
	assert.Equal(t, int64(1), cons.calls.Load())

	newInfo := writeList(t, src, "new.example")
	require.NoError(t, d.Update(ctx, newInfo, nil))
	assert.Equal(t, int64(2), cons.calls.Load())
	assert.Equal(t, []*adblock.FilterListInfo{newInfo}, d.AvailableFilterLists())

	assert.True(t, d.ShouldBlock(ctx, "https://new.example/", testFrameURL, adblock.ResourceTypeScript))
	assert.False(t, d.ShouldBlock(ctx, "https://old.example/", testFrameURL, adblock.ResourceTypeScript))

	badInfo := &adblock.FilterListInfo{
		Source:       src,
		FileLocation: filepath.Join(t.TempDir(), "absent.txt"),
		Format:       adblock.FileFormatText,
	}

	err := d.Update(ctx, badInfo, nil)
	assert.ErrorIs(t, err, adblock.ErrFileNotFound)
	assert.Equal(t, int64(1), collected.Load())

	// The previous engine is kept.
	assert.Equal(t, []*adblock.FilterListInfo{newInfo}, d.AvailableFilterLists())
}

func TestDefault_Update_inFlight(t *testing.T) {
	const (
		oldHost = "old.example"
		newHost = "new.example"
	)

	matching := make(chan struct{})
	unblock := make(chan struct{})
	cons := &testConstructor{
		newEngine: func(host string) (e *agdtest.Engine) {
			e = newHostEngine(host)
			if host != oldHost {
				return e
			}

			e.OnMatch = func(req *adblock.MatchRequest) (res adblock.MatchResult) {
				close(matching)
				<-unblock

				return adblock.MatchResult{Matched: req.Host == oldHost}
			}

			return e
		},
	}

	src := adblock.SourceAdBlock()
	d, _ := newCache(t, &testCacheConfig{
		constructor:    cons,
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, writeList(t, src, oldHost), nil))

	blocked := make(chan bool, 1)
	go func() {
		blocked <- d.ShouldBlock(ctx, "https://old.example/a.js", testFrameURL, adblock.ResourceTypeScript)
	}()

	_, _ = testutil.RequireReceive(t, matching, testTimeout)

	updated := make(chan error, 1)
	newInfo := writeList(t, src, newHost)
	go func() {
		updated <- d.Update(ctx, newInfo, nil)
	}()

	require.Eventually(t, func() (ok bool) {
		infos := d.AvailableFilterLists()

		return len(infos) == 1 && infos[0] == newInfo
	}, testTimeout, testTimeout/100)

	// New queries are served by the new engine while the replaced one still
	// has a query in flight.
	assert.True(t, d.ShouldBlock(ctx, "https://new.example/a.js", testFrameURL, adblock.ResourceTypeScript))
	assert.Empty(t, updated)

	close(unblock)

	ok, _ := testutil.RequireReceive(t, blocked, testTimeout)
	assert.True(t, ok)

	err, _ := testutil.RequireReceive(t, updated, testTimeout)
	require.NoError(t, err)

	assert.Equal(t, []*adblock.FilterListInfo{newInfo}, d.AvailableFilterLists())
}

func TestDefault_Evict(t *testing.T) {
	src := adblock.SourceFilterListURL("custom")
	m := agdcache.NewDefaultManager()

	d, _ := newCache(t, &testCacheConfig{
		cacheManager:   m,
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, writeList(t, src, "a.example"), nil))
	assert.Len(t, m.IDs(), 3)

	d.Evict(ctx, src)
	d.Evict(ctx, src)

	assert.Empty(t, d.AvailableFilterLists())
	assert.Empty(t, m.IDs())
	assert.False(t, d.ShouldBlock(ctx, "https://a.example/", testFrameURL, adblock.ResourceTypeScript))
}

func TestDefault_ruleCompiler(t *testing.T) {
	store := agdtest.NewMemoryRuleStore(t)
	mgr := contentblocker.NewManager(&contentblocker.Config{
		Logger:      slogutil.NewDiscardLogger(),
		Store:       store,
		Metrics:     contentblocker.EmptyMetrics{},
		MaxFileSize: 1 * datasize.MB,
	})

	src := adblock.SourceFilterList("component")
	d, _ := newCache(t, &testCacheConfig{
		ruleCompiler:   mgr,
		enabledSources: enabled(src),
	})

	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	err := os.WriteFile(rulesPath, []byte(`[{"action":{"type":"block"},"trigger":{"url-filter":"ads"}}]`), 0o600)
	require.NoError(t, err)

	info := writeList(t, src, "a.example")
	info.RuleListLocation = rulesPath

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, d.Compile(ctx, info, nil))

	typ := contentblocker.FilterList("component", true)
	assert.True(t, mgr.HasRuleList(ctx, typ, contentblocker.ModeAggressive))
	assert.Empty(t, mgr.MissingModes(ctx, typ))
	assert.Equal(t, 1, store.Compiles())

	// Recompilation with the same info does nothing.
	require.NoError(t, d.Compile(ctx, info, nil))
	assert.Equal(t, 1, store.Compiles())
}

func TestDefault_Update_version(t *testing.T) {
	src := adblock.SourceFilterListURL("list")
	d, cons := newCache(t, &testCacheConfig{
		enabledSources: enabled(src),
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	info := writeList(t, src, "old.example")
	info.Version = 1

	require.NoError(t, d.Update(ctx, info, nil))

	// The same file has been downloaded again.
	require.NoError(t, os.WriteFile(info.FileLocation, []byte("new.example"), 0o600))

	newInfo := *info
	newInfo.Version = 2

	require.NoError(t, d.Update(ctx, &newInfo, nil))
	assert.Equal(t, int64(2), cons.calls.Load())

	assert.True(t, d.ShouldBlock(ctx, "https://new.example/", testFrameURL, adblock.ResourceTypeScript))
}
