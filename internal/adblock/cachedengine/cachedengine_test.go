package cachedengine_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/cachedengine"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdtest"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testFrameURL is the common frame URL for tests.
const testFrameURL = "https://www.example.com/page"

// testInfo is the common filter-list info for tests.
var testInfo = &adblock.FilterListInfo{
	Source:       adblock.SourceFilterList("test-component"),
	FileLocation: "/nonexistent/list.txt",
	Format:       adblock.FileFormatText,
}

// newTestEngine returns a new mock engine all methods of which panic.
func newTestEngine() (e *agdtest.Engine) {
	return &agdtest.Engine{
		OnMatch: func(req *adblock.MatchRequest) (res adblock.MatchResult) {
			panic(testutil.UnexpectedCall(req))
		},
		OnUseResources: func(resources []byte) {
			panic(testutil.UnexpectedCall(resources))
		},
		OnDeserialize: func(data []byte) (ok bool) {
			panic(testutil.UnexpectedCall(data))
		},
		OnCosmeticResources: func(u string) (data []byte) {
			panic(testutil.UnexpectedCall(u))
		},
		OnHiddenSelectors: func(classes, ids, exceptions []string) (data []byte) {
			panic(testutil.UnexpectedCall(classes, ids, exceptions))
		},
	}
}

// newCachedEngine returns a new handle for eng and closes it on cleanup.
func newCachedEngine(
	tb testing.TB,
	eng adblock.Engine,
	m agdcache.Manager,
) (e *cachedengine.Engine) {
	tb.Helper()

	e = cachedengine.New(&cachedengine.Config{
		Logger:       slogutil.NewDiscardLogger(),
		Engine:       eng,
		Parser:       domainparser.Builtin{},
		CacheManager: m,
		Memo:         agdcache.DefaultMemoConfig(),
		Info:         testInfo,
	})
	tb.Cleanup(e.Close)

	return e
}

func TestEngine_ShouldBlock(t *testing.T) {
	var calls atomic.Int64
	var lastReq *adblock.MatchRequest

	eng := newTestEngine()
	eng.OnMatch = func(req *adblock.MatchRequest) (res adblock.MatchResult) {
		calls.Add(1)
		lastReq = req

		return adblock.MatchResult{Matched: req.Host == "ads.example.org"}
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	const (
		adURL  = "https://ads.example.org/banner.png"
		srcURL = "https://www.example.com/"
	)

	assert.True(t, e.ShouldBlock(ctx, adURL, srcURL, adblock.ResourceTypeImage))
	assert.Equal(t, int64(1), calls.Load())
	require.NotNil(t, lastReq)

	assert.Equal(t, &adblock.MatchRequest{
		URL:          adURL,
		Host:         "ads.example.org",
		SourceHost:   "www.example.com",
		ResourceType: adblock.ResourceTypeImage,
		IsThirdParty: true,
	}, lastReq)

	// The result is memoized.
	assert.True(t, e.ShouldBlock(ctx, adURL, srcURL, adblock.ResourceTypeImage))
	assert.Equal(t, int64(1), calls.Load())

	// A different resource type is a different key.
	assert.True(t, e.ShouldBlock(ctx, adURL, srcURL, adblock.ResourceTypeScript))
	assert.Equal(t, int64(2), calls.Load())

	assert.False(t, e.ShouldBlock(ctx, "https://cdn.example.com/a.js", srcURL, adblock.ResourceTypeScript))
	assert.Equal(t, int64(3), calls.Load())
	assert.False(t, lastReq.IsThirdParty)
}

func TestEngine_ShouldBlock_guards(t *testing.T) {
	e := newCachedEngine(t, newTestEngine(), agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	testCases := []struct {
		name       string
		requestURL string
		sourceURL  string
	}{{
		name:       "data",
		requestURL: "data:image/png;base64,AAAA",
		sourceURL:  "https://example.com/",
	}, {
		name:       "about_blank",
		requestURL: "https://ads.example.org/",
		sourceURL:  "about:blank",
	}, {
		name:       "no_request_host",
		requestURL: "/relative/path",
		sourceURL:  "https://example.com/",
	}, {
		name:       "no_source_host",
		requestURL: "https://ads.example.org/",
		sourceURL:  "file:///tmp/page.html",
	}, {
		name:       "public_suffix",
		requestURL: "https://co.uk/",
		sourceURL:  "https://example.com/",
	}, {
		name:       "bad_url",
		requestURL: "https://%zz/",
		sourceURL:  "https://example.com/",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, e.ShouldBlock(ctx, tc.requestURL, tc.sourceURL, adblock.ResourceTypeScript))
		})
	}
}

func TestEngine_ShouldBlock_canceled(t *testing.T) {
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })

	eng := newTestEngine()
	eng.OnMatch = func(_ *adblock.MatchRequest) (res adblock.MatchResult) {
		<-unblock

		return adblock.MatchResult{Matched: true}
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})

	ctx := testutil.ContextWithTimeout(t, 50*time.Millisecond)
	blocked := e.ShouldBlock(ctx, "https://ads.example.org/", "https://example.com/", adblock.ResourceTypeScript)
	assert.False(t, blocked)
}

func TestEngine_ShouldBlock_enginePanic(t *testing.T) {
	const adURL = "https://ads.example.org/banner.png"

	var calls atomic.Int64
	eng := newTestEngine()
	eng.OnMatch = func(req *adblock.MatchRequest) (res adblock.MatchResult) {
		if calls.Add(1) == 1 {
			panic(testutil.UnexpectedCall(req))
		}

		return adblock.MatchResult{Matched: true}
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	assert.False(t, e.ShouldBlock(ctx, adURL, testFrameURL, adblock.ResourceTypeImage))
	require.NoError(t, ctx.Err())

	// The failed result isn't memoized, and the worker survives the panic.
	assert.True(t, e.ShouldBlock(ctx, adURL, testFrameURL, adblock.ResourceTypeImage))
	assert.Equal(t, int64(2), calls.Load())
}

func TestEngine_CosmeticFilterModel_enginePanic(t *testing.T) {
	eng := newTestEngine()
	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	m, err := e.CosmeticFilterModel(ctx, testFrameURL)
	assert.ErrorIs(t, err, cachedengine.ErrEnginePanic)
	assert.Nil(t, m)
	require.NoError(t, ctx.Err())
}

func TestEngine_CosmeticFilterModel(t *testing.T) {
	var calls atomic.Int64

	eng := newTestEngine()
	eng.OnCosmeticResources = func(u string) (data []byte) {
		calls.Add(1)

		switch u {
		case testFrameURL:
			return []byte(`{"hide_selectors":[".ad"],"exceptions":[],"injected_script":"","generichide":false}`)
		case "https://bad.example/":
			return []byte(`{`)
		default:
			return nil
		}
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	m, err := e.CosmeticFilterModel(ctx, testFrameURL)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, []string{".ad"}, m.HideSelectors)

	_, err = e.CosmeticFilterModel(ctx, testFrameURL)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())

	t.Run("nil", func(t *testing.T) {
		for range 2 {
			m, err = e.CosmeticFilterModel(ctx, "https://other.example/")
			require.NoError(t, err)

			assert.Nil(t, m)
		}

		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("error", func(t *testing.T) {
		for range 2 {
			_, err = e.CosmeticFilterModel(ctx, "https://bad.example/")
			assert.Error(t, err)
		}

		assert.Equal(t, int64(4), calls.Load())
	})
}

func TestEngine_SelectorsForCosmeticRules(t *testing.T) {
	eng := newTestEngine()
	eng.OnCosmeticResources = func(_ string) (data []byte) {
		return []byte(`{"exceptions":[".keep"]}`)
	}
	eng.OnHiddenSelectors = func(classes, ids, exceptions []string) (data []byte) {
		assert.Equal(t, []string{"ad"}, classes)
		assert.Equal(t, []string{"banner"}, ids)
		assert.Equal(t, []string{".keep"}, exceptions)

		return []byte(`[".ad","#banner"]`)
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	sels, err := e.SelectorsForCosmeticRules(ctx, testFrameURL, []string{"banner"}, []string{"ad"})
	require.NoError(t, err)

	assert.Equal(t, 2, sels.Len())
	assert.True(t, sels.Has(".ad"))
	assert.True(t, sels.Has("#banner"))
}

func TestEngine_EngineScriptTypes(t *testing.T) {
	var calls atomic.Int64

	eng := newTestEngine()
	eng.OnCosmeticResources = func(u string) (data []byte) {
		calls.Add(1)

		if u == testFrameURL {
			return []byte(`{"injected_script":"console.log(1);"}`)
		}

		return []byte(`{"injected_script":""}`)
	}

	e := newCachedEngine(t, eng, agdcache.EmptyManager{})
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	want := adblock.ScriptTypeEngine(adblock.EngineScriptConfig{
		FrameURL:       testFrameURL,
		Source:         "console.log(1);",
		Order:          2,
		IsMainFrame:    true,
		IsDeAMPEnabled: true,
	})

	for range 2 {
		sts, err := e.EngineScriptTypes(ctx, testFrameURL, true, 2)
		require.NoError(t, err)

		assert.Equal(t, []adblock.ScriptType{want}, adblock.SortedScriptTypes(sts))
	}

	assert.Equal(t, int64(1), calls.Load())

	sts, err := e.EngineScriptTypes(ctx, "https://other.example/", false, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, sts.Len())
}

func TestEngine_Close(t *testing.T) {
	m := agdcache.NewDefaultManager()
	e := cachedengine.New(&cachedengine.Config{
		Logger:       slogutil.NewDiscardLogger(),
		Engine:       newTestEngine(),
		Parser:       domainparser.Builtin{},
		CacheManager: m,
		Memo:         agdcache.DefaultMemoConfig(),
		Info:         testInfo,
	})

	assert.Equal(t, []string{
		"engine/filterList(test-component)/cosmetic",
		"engine/filterList(test-component)/script_types",
		"engine/filterList(test-component)/should_block",
	}, m.IDs())

	e.Close()

	assert.Empty(t, m.IDs())
}

func TestEngine_Close_acquired(t *testing.T) {
	e := cachedengine.New(&cachedengine.Config{
		Logger:       slogutil.NewDiscardLogger(),
		Engine:       newTestEngine(),
		Parser:       domainparser.Builtin{},
		CacheManager: agdcache.EmptyManager{},
		Memo:         agdcache.DefaultMemoConfig(),
		Info:         testInfo,
	})

	e.Acquire()

	closed := make(chan struct{})
	go func() {
		defer close(closed)

		e.Close()
	}()

	assert.Never(t, func() (ok bool) {
		select {
		case <-closed:
			return true
		default:
			return false
		}
	}, testTimeout/10, testTimeout/100)

	e.Release()

	_, _ = testutil.RequireReceive(t, closed, testTimeout)
}

// writeFile writes data to a file in a temporary directory and returns its
// path.
func writeFile(tb testing.TB, name, data string) (path string) {
	tb.Helper()

	path = filepath.Join(tb.TempDir(), name)
	err := os.WriteFile(path, []byte(data), 0o600)
	require.NoError(tb, err)

	return path
}

func TestCompile(t *testing.T) {
	const rulesText = "||ads.example.org^\n"

	listPath := writeFile(t, "list.txt", rulesText)

	var usedResources atomic.Int64
	eng := newTestEngine()
	eng.OnUseResources = func(_ []byte) { usedResources.Add(1) }
	eng.OnDeserialize = func(data []byte) (ok bool) { return string(data) == "good" }

	cons := &agdtest.EngineConstructor{
		OnNew: func(text []byte) (e adblock.Engine, err error) {
			return eng, nil
		},
	}

	newConf := func(info *adblock.FilterListInfo, res *adblock.ResourcesInfo) (c *cachedengine.CompileConfig) {
		return &cachedengine.CompileConfig{
			Logger:        slogutil.NewDiscardLogger(),
			Constructor:   cons,
			Parser:        domainparser.Builtin{},
			CacheManager:  agdcache.EmptyManager{},
			Memo:          agdcache.DefaultMemoConfig(),
			Info:          info,
			ResourcesInfo: res,
			MaxFileSize:   1 * datasize.MB,
		}
	}

	textInfo := &adblock.FilterListInfo{
		Source:       adblock.SourceAdBlock(),
		FileLocation: listPath,
		Format:       adblock.FileFormatText,
	}

	t.Run("text", func(t *testing.T) {
		ctx := testutil.ContextWithTimeout(t, testTimeout)
		e, err := cachedengine.Compile(ctx, newConf(textInfo, nil))
		require.NoError(t, err)
		t.Cleanup(e.Close)

		assert.Same(t, textInfo, e.Info())
		assert.Nil(t, e.ResourcesInfo())
	})

	t.Run("not_found", func(t *testing.T) {
		ctx := testutil.ContextWithTimeout(t, testTimeout)
		info := &adblock.FilterListInfo{
			Source:       adblock.SourceAdBlock(),
			FileLocation: filepath.Join(t.TempDir(), "absent.txt"),
			Format:       adblock.FileFormatText,
		}

		_, err := cachedengine.Compile(ctx, newConf(info, nil))
		assert.ErrorIs(t, err, adblock.ErrFileNotFound)
	})

	t.Run("dat", func(t *testing.T) {
		ctx := testutil.ContextWithTimeout(t, testTimeout)
		info := &adblock.FilterListInfo{
			Source:       adblock.SourceAdBlock(),
			FileLocation: writeFile(t, "list.dat", "good"),
			Format:       adblock.FileFormatDat,
		}

		e, err := cachedengine.Compile(ctx, newConf(info, nil))
		require.NoError(t, err)
		t.Cleanup(e.Close)
	})

	t.Run("bad_dat", func(t *testing.T) {
		ctx := testutil.ContextWithTimeout(t, testTimeout)
		info := &adblock.FilterListInfo{
			Source:       adblock.SourceAdBlock(),
			FileLocation: writeFile(t, "list.dat", "bad"),
			Format:       adblock.FileFormatDat,
		}

		_, err := cachedengine.Compile(ctx, newConf(info, nil))
		assert.ErrorIs(t, err, adblock.ErrCouldNotDeserialize)
	})

	t.Run("resources", func(t *testing.T) {
		testCases := []struct {
			wantErr   error
			name      string
			data      string
			wantCalls int64
		}{{
			wantErr:   nil,
			name:      "empty_array",
			data:      "[]",
			wantCalls: 0,
		}, {
			wantErr:   nil,
			name:      "empty_object",
			data:      "{}",
			wantCalls: 0,
		}, {
			wantErr:   nil,
			name:      "object",
			data:      `{"noop.js":"(function() {})();"}`,
			wantCalls: 1,
		}, {
			wantErr:   adblock.ErrInvalidResourceJSON,
			name:      "string",
			data:      `"resources"`,
			wantCalls: 0,
		}, {
			wantErr:   adblock.ErrInvalidResourceJSON,
			name:      "malformed",
			data:      `[`,
			wantCalls: 0,
		}}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				usedResources.Store(0)

				ctx := testutil.ContextWithTimeout(t, testTimeout)
				res := &adblock.ResourcesInfo{
					FileLocation: writeFile(t, "resources.json", tc.data),
				}

				e, err := cachedengine.Compile(ctx, newConf(textInfo, res))
				if tc.wantErr != nil {
					assert.ErrorIs(t, err, tc.wantErr)
				} else {
					require.NoError(t, err)
					t.Cleanup(e.Close)
				}

				assert.Equal(t, tc.wantCalls, usedResources.Load())
			})
		}
	})

	t.Run("resources_not_found", func(t *testing.T) {
		ctx := testutil.ContextWithTimeout(t, testTimeout)
		res := &adblock.ResourcesInfo{
			FileLocation: filepath.Join(t.TempDir(), "absent.json"),
		}

		_, err := cachedengine.Compile(ctx, newConf(textInfo, res))
		assert.ErrorIs(t, err, adblock.ErrFileNotFound)
	})
}
