package debugsvc

import (
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrDebugPanic is a default error for panic handler.
const ErrDebugPanic errors.Error = "debug panic"

// Path pattern constants.
const (
	PathPatternAPICosmeticSelectors = "/api/v1/cosmetic_selectors"
	PathPatternAPIFilterLists       = "/api/v1/filter_lists"
	PathPatternAPIPageScriptTypes   = "/api/v1/page_script_types"
	PathPatternAPIPartiness         = "/api/v1/partiness"
	PathPatternAPIRuleLists         = "/api/v1/rule_lists"
	PathPatternAPIScriptTypes       = "/api/v1/script_types"
	PathPatternAPIShouldBlock       = "/api/v1/should_block"
	PathPatternDebugAPICache        = "/debug/api/cache/clear"
	PathPatternDebugAPIRefresh      = "/debug/api/refresh"
	PathPatternDebugPanic           = "/debug/panic"
	PathPatternHealthCheck          = "/health-check"
	PathPatternMetrics              = "/metrics"
)

// Route pattern constants.
const (
	routePatternAPICosmeticSelectors = http.MethodPost + " " + PathPatternAPICosmeticSelectors
	routePatternAPIFilterLists       = http.MethodGet + " " + PathPatternAPIFilterLists
	routePatternAPIPageScriptTypes   = http.MethodPost + " " + PathPatternAPIPageScriptTypes
	routePatternAPIPartiness         = http.MethodPost + " " + PathPatternAPIPartiness
	routePatternAPIRuleLists         = http.MethodGet + " " + PathPatternAPIRuleLists
	routePatternAPIScriptTypes       = http.MethodPost + " " + PathPatternAPIScriptTypes
	routePatternAPIShouldBlock       = http.MethodPost + " " + PathPatternAPIShouldBlock
	routePatternDebugAPICache        = http.MethodPost + " " + PathPatternDebugAPICache
	routePatternDebugAPIRefresh      = http.MethodPost + " " + PathPatternDebugAPIRefresh
	routePatternDebugPanic           = http.MethodPost + " " + PathPatternDebugPanic
	routePatternHealthCheck          = http.MethodGet + " " + PathPatternHealthCheck
	routePatternMetrics              = http.MethodGet + " " + PathPatternMetrics
)

// route further initializes the svc.servers field by adding handlers and
// loggers to each server.
func (svc *Service) route(c *Config) {
	const hdlrGrpKey = "hdlr_grp"

	if srv := svc.servers[c.APIAddr]; srv != nil {
		router := srv.http.Handler.(httputil.Router)
		l := svc.logger.With(hdlrGrpKey, handlerGroupAPI)

		router.Handle(
			routePatternHealthCheck,
			httputil.NewLogMiddleware(l, slogutil.LevelTrace).Wrap(httputil.HealthCheckHandler),
		)

		debugLogMw := httputil.NewLogMiddleware(l, slog.LevelDebug)
		api := svc.apiHdlr
		router.Handle(routePatternAPIShouldBlock, debugLogMw.Wrap(http.HandlerFunc(api.serveShouldBlock)))
		router.Handle(
			routePatternAPICosmeticSelectors,
			debugLogMw.Wrap(http.HandlerFunc(api.serveCosmeticSelectors)),
		)
		router.Handle(routePatternAPIScriptTypes, debugLogMw.Wrap(http.HandlerFunc(api.serveScriptTypes)))
		router.Handle(
			routePatternAPIPageScriptTypes,
			debugLogMw.Wrap(http.HandlerFunc(api.servePageScriptTypes)),
		)
		router.Handle(routePatternAPIPartiness, debugLogMw.Wrap(http.HandlerFunc(api.servePartiness)))
		router.Handle(routePatternAPIFilterLists, debugLogMw.Wrap(http.HandlerFunc(api.serveFilterLists)))
		router.Handle(routePatternAPIRuleLists, debugLogMw.Wrap(http.HandlerFunc(api.serveRuleLists)))

		infoLogMw := httputil.NewLogMiddleware(l, slog.LevelInfo)
		router.Handle(routePatternDebugAPIRefresh, infoLogMw.Wrap(svc.refrHdlr))
		router.Handle(routePatternDebugAPICache, infoLogMw.Wrap(svc.cacheHdlr))
		router.Handle(routePatternDebugPanic, infoLogMw.Wrap(panicHandler(ErrDebugPanic)))
	}

	if srv := svc.servers[c.PprofAddr]; srv != nil {
		router := srv.http.Handler.(httputil.Router)
		l := svc.logger.With(hdlrGrpKey, handlerGroupPprof)
		mw := httputil.NewLogMiddleware(l, slog.LevelDebug)

		routeWithMw := httputil.RouterFunc(func(pattern string, h http.Handler) {
			router.Handle(pattern, mw.Wrap(h))
		})

		httputil.RoutePprof(routeWithMw)
	}

	if srv := svc.servers[c.PrometheusAddr]; srv != nil {
		router := srv.http.Handler.(httputil.Router)
		l := svc.logger.With(hdlrGrpKey, handlerGroupPrometheus)

		router.Handle(
			routePatternMetrics,
			httputil.NewLogMiddleware(l, slogutil.LevelTrace).Wrap(promhttp.Handler()),
		)
	}

	srvHdrMw := httputil.ServerHeaderMiddleware(agdhttp.UserAgent())
	for _, srv := range svc.servers {
		l := svc.logger.With("name", srv.name)
		srv.http.ErrorLog = slog.NewLogLogger(l.Handler(), slog.LevelDebug)
		srv.http.Handler = srvHdrMw.Wrap(srv.http.Handler)
	}
}

// panicHandler returns an HTTP handler that panics with v.
func panicHandler(v any) (h http.Handler) {
	return http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(v)
	})
}
