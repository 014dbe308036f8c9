package debugsvc_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdtest"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is a common timeout for tests.
const testTimeout = 1 * time.Second

// testAddr is the address of the test service.  The port is chosen by the OS.
const testAddr = "127.0.0.1:0"

// testClearer is an [agdcache.Clearer] for tests.
type testClearer struct {
	cleared bool
}

// Clear implements the [agdcache.Clearer] interface for *testClearer.
func (c *testClearer) Clear() {
	c.cleared = true
}

// newTestBlocker returns a blocker for tests that blocks requests for
// ads.example.
func newTestBlocker() (b *agdtest.Blocker) {
	return &agdtest.Blocker{
		OnEngineScriptTypes: func(
			_ context.Context,
			frameURL string,
			isMainFrame bool,
		) (sts *adblock.ScriptTypes) {
			return adblock.NewScriptTypes(adblock.ScriptTypeEngine(adblock.EngineScriptConfig{
				FrameURL:       frameURL,
				IsMainFrame:    isMainFrame,
				IsDeAMPEnabled: true,
			}))
		},
		OnShouldBlock: func(
			_ context.Context,
			requestURL string,
			_ string,
			_ adblock.ResourceType,
		) (ok bool) {
			return strings.Contains(requestURL, "ads.example")
		},
		OnCosmeticSelectors: func(
			_ context.Context,
			_ string,
			_ []string,
			_ []string,
		) (aggressive, standard []string) {
			return []string{".ad"}, nil
		},
		OnAvailableFilterLists: func() (infos []*adblock.FilterListInfo) {
			return []*adblock.FilterListInfo{{
				Source:       adblock.SourceAdBlock(),
				FileLocation: "/tmp/list.txt",
				Format:       adblock.FileFormatText,
			}}
		},
	}
}

// newTestService starts a new service for tests and returns its base URL.
func newTestService(tb testing.TB, c *debugsvc.Config) (base *url.URL) {
	tb.Helper()

	svc := debugsvc.New(c)
	require.NotNil(tb, svc)

	err := svc.Start(testutil.ContextWithTimeout(tb, testTimeout))
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, func() (err error) {
		return svc.Shutdown(testutil.ContextWithTimeout(tb, testTimeout))
	})

	addr := svc.BoundAddr(testAddr)
	require.NotNil(tb, addr)

	return &url.URL{
		Scheme: "http",
		Host:   addr.String(),
	}
}

func TestService_Start(t *testing.T) {
	refreshed := false
	clearer := &testClearer{}
	mgr := agdcache.NewDefaultManager()
	mgr.Add("engine/adBlock/should_block", clearer)

	base := newTestService(t, &debugsvc.Config{
		Logger:  slogutil.NewDiscardLogger(),
		Manager: mgr,
		Refreshers: debugsvc.Refreshers{
			"test": &agdtest.Refresher{
				OnRefresh: func(_ context.Context) (err error) {
					refreshed = true

					return nil
				},
			},
		},
		Blocker: newTestBlocker(),
		RuleLists: &agdtest.RuleListSource{
			OnRuleLists: func(_ context.Context) (rls []*contentblocker.RuleList) {
				return []*contentblocker.RuleList{{
					Identifier: "block-ads-aggressive",
				}}
			},
		},
		Parser:         domainparser.Builtin{},
		APIAddr:        testAddr,
		PprofAddr:      testAddr,
		PrometheusAddr: testAddr,
	})

	client := &http.Client{
		Timeout: testTimeout,
	}

	t.Run("health_check", func(t *testing.T) {
		resp, err := client.Get(base.JoinPath(debugsvc.PathPatternHealthCheck).String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK\n", readRespBody(t, resp))
	})

	t.Run("pprof", func(t *testing.T) {
		resp, err := client.Get(base.JoinPath("/debug/pprof/").String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, readRespBody(t, resp))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := client.Get(base.JoinPath(debugsvc.PathPatternMetrics).String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, readRespBody(t, resp))
	})

	t.Run("refresh", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternDebugAPIRefresh, `{"ids":["test"]}`)
		assert.JSONEq(t, `{"results":{"test":"ok"}}`, body)
		assert.True(t, refreshed)
	})

	t.Run("refresh_pattern", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternDebugAPIRefresh, `{"ids":["te*","missing"]}`)
		assert.JSONEq(t, `{"results":{
			"test":"ok",
			"missing":"error: refresher not found"
		}}`, body)
	})

	t.Run("cache_clear", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternDebugAPICache, `{"ids":["engine/*/should_block"]}`)
		assert.JSONEq(t, `{"results":{"engine/adBlock/should_block":"ok"}}`, body)
		assert.True(t, clearer.cleared)
	})

	t.Run("should_block", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternAPIShouldBlock, `{
			"request_url":"https://ads.example/a.js",
			"source_url":"https://example.com/",
			"resource_type":"script"
		}`)
		assert.JSONEq(t, `{"block":true}`, body)
	})

	t.Run("cosmetic_selectors", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternAPICosmeticSelectors, `{
			"frame_url":"https://example.com/",
			"ids":[],
			"classes":["ad"]
		}`)
		assert.JSONEq(t, `{"aggressive_selectors":[".ad"],"standard_selectors":[]}`, body)
	})

	t.Run("partiness", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternAPIPartiness, `{
			"frame_url":"https://www.example.com/",
			"urls":["https://cdn.example.com/","https://example.org/"]
		}`)
		assert.JSONEq(t, `{"partiness":{
			"https://cdn.example.com/":true,
			"https://example.org/":false
		}}`, body)
	})

	t.Run("script_types", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternAPIScriptTypes, `{
			"frame_url":"https://example.com/",
			"is_main_frame":true
		}`)
		assert.Contains(t, body, `"frame_url":"https://example.com/"`)
	})

	t.Run("page_script_types", func(t *testing.T) {
		body := post(t, client, base, debugsvc.PathPatternAPIPageScriptTypes, `{
			"main_frame_url":"https://example.com/",
			"subframe_urls":["https://frame.example/"]
		}`)
		assert.Contains(t, body, `"kind":"gpc"`)
		assert.Contains(t, body, `"frame_url":"https://frame.example/"`)
	})

	t.Run("filter_lists", func(t *testing.T) {
		resp, err := client.Get(base.JoinPath(debugsvc.PathPatternAPIFilterLists).String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"filter_lists":[{
			"source":"adBlock",
			"file_location":"/tmp/list.txt",
			"format":"text"
		}]}`, readRespBody(t, resp))
	})

	t.Run("rule_lists", func(t *testing.T) {
		resp, err := client.Get(base.JoinPath(debugsvc.PathPatternAPIRuleLists).String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"identifiers":["block-ads-aggressive"]}`, readRespBody(t, resp))
	})

	t.Run("panic", func(t *testing.T) {
		u := base.JoinPath(debugsvc.PathPatternDebugPanic).String()
		resp, err := client.Post(u, "application/json", http.NoBody)
		if err == nil {
			_ = readRespBody(t, resp)
		}

		// The server drops the connection of a panicking handler.
		assert.Error(t, err)

		// The service keeps serving.
		resp, err = client.Get(base.JoinPath(debugsvc.PathPatternHealthCheck).String())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK\n", readRespBody(t, resp))
	})
}

func TestService_badRequests(t *testing.T) {
	base := newTestService(t, &debugsvc.Config{
		Logger:     slogutil.NewDiscardLogger(),
		Manager:    agdcache.NewDefaultManager(),
		Refreshers: debugsvc.Refreshers{},
		Blocker:    newTestBlocker(),
		RuleLists:  &agdtest.RuleListSource{},
		Parser:     domainparser.Builtin{},
		APIAddr:    testAddr,
	})

	client := &http.Client{
		Timeout: testTimeout,
	}

	testCases := []struct {
		name string
		path string
		body string
	}{{
		name: "bad_json",
		path: debugsvc.PathPatternAPIShouldBlock,
		body: `{`,
	}, {
		name: "bad_resource_type",
		path: debugsvc.PathPatternAPIShouldBlock,
		body: `{"request_url":"https://a.example/","resource_type":"font"}`,
	}, {
		name: "no_resource_type",
		path: debugsvc.PathPatternAPIShouldBlock,
		body: `{"request_url":"https://a.example/"}`,
	}, {
		name: "no_ids",
		path: debugsvc.PathPatternDebugAPIRefresh,
		body: `{"ids":[]}`,
	}, {
		name: "wildcard_with_ids",
		path: debugsvc.PathPatternDebugAPICache,
		body: `{"ids":["*","a"]}`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u := base.JoinPath(tc.path).String()
			resp, err := client.Post(u, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)

			_ = readRespBody(t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

// post is a helper that sends a POST request with body to the path, checks
// the response code, and returns the response body.
func post(tb testing.TB, client *http.Client, base *url.URL, path, body string) (respBody string) {
	tb.Helper()

	u := base.JoinPath(path).String()
	resp, err := client.Post(u, "application/json", strings.NewReader(body))
	require.NoError(tb, err)

	respBody = readRespBody(tb, resp)
	require.Equal(tb, http.StatusOK, resp.StatusCode, respBody)

	return respBody
}

// readRespBody is a helper function that reads and returns body from response.
func readRespBody(tb testing.TB, resp *http.Response) (body string) {
	tb.Helper()

	b, err := io.ReadAll(resp.Body)
	require.NoError(tb, err)
	require.NoError(tb, resp.Body.Close())

	return string(b)
}
