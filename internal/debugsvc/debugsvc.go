// Package debugsvc contains the HTTP API of the content blocker: the query API,
// the debug API, Prometheus metrics, and pprof.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// Service is the HTTP service of the content blocker.  It serves prometheus
// metrics, pprof, health check, the query API, and other endpoints.
type Service struct {
	logger    *slog.Logger
	apiHdlr   *apiHandler
	cacheHdlr *cacheHandler
	refrHdlr  *refreshHandler

	// mu protects the addresses of the servers.
	mu      *sync.Mutex
	servers map[string]*server
}

// Config is the content blocker HTTP service configuration structure.
type Config struct {
	// Logger is used for logging the operation of the service.  It must not be
	// nil.
	Logger *slog.Logger

	// Manager is used to clear the caches by ID.  It must not be nil.
	Manager *agdcache.DefaultManager

	// Refreshers are the refreshers run by the refresh API.
	Refreshers Refreshers

	// Blocker is queried by the API.  It must not be nil.
	Blocker Blocker

	// RuleLists is used to list the compiled content-blocker rule lists.  It
	// must not be nil.
	RuleLists RuleListSource

	// Parser is used to determine the partiness of URLs.  It must not be nil.
	Parser domainparser.Interface

	// APIAddr is the address of the health-check, query, and debug API.
	APIAddr string

	// PprofAddr is the address of the pprof API.
	PprofAddr string

	// PrometheusAddr is the address of the Prometheus metrics.
	PrometheusAddr string
}

// handlerGroup is a semantic alias for names of handler groups.
type handlerGroup = string

// Valid handler groups.
const (
	handlerGroupAPI        handlerGroup = "api"
	handlerGroupPprof      handlerGroup = "pprof"
	handlerGroupPrometheus handlerGroup = "prometheus"
)

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		apiHdlr: &apiHandler{
			logger:    c.Logger,
			blocker:   c.Blocker,
			ruleLists: c.RuleLists,
			parser:    c.Parser,
		},
		cacheHdlr: &cacheHandler{
			manager: c.Manager,
		},
		refrHdlr: &refreshHandler{
			refrs: c.Refreshers,
		},
		mu:      &sync.Mutex{},
		servers: map[string]*server{},
	}

	svc.addServer(c.APIAddr, handlerGroupAPI)
	svc.addServer(c.PprofAddr, handlerGroupPprof)
	svc.addServer(c.PrometheusAddr, handlerGroupPrometheus)

	svc.route(c)

	return svc
}

// server is a single server within the content blocker HTTP service.
type server struct {
	http     *http.Server
	name     string
	initAddr string

	// boundAddr is the address the server is actually listening on.  It is
	// set after the server is started.
	boundAddr net.Addr
}

// addServer adds a new server for the handler group, or adds the group to the
// existing server with the same address.  If addr is empty, the server isn't
// created.
func (svc *Service) addServer(addr string, grp handlerGroup) {
	if addr == "" {
		return
	}

	if srv, ok := svc.servers[addr]; ok {
		srv.name += ";" + grp

		return
	}

	svc.servers[addr] = &server{
		// #nosec G112 -- Do not set the timeouts, since debug/pprof and similar
		// debug APIs may be busy for a long time.
		http: &http.Server{
			Addr:    addr,
			Handler: http.NewServeMux(),
		},
		name:     grp,
		initAddr: addr,
	}
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// listening on all addresses and serving in the background.  If any server
// fails to listen, the servers that have already been started are shut down.
func (svc *Service) Start(ctx context.Context) (err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var started []*server
	for _, srv := range svc.servers {
		err = svc.startServer(ctx, srv)
		if err != nil {
			for _, s := range started {
				err = errors.WithDeferred(err, s.http.Shutdown(ctx))
			}

			return fmt.Errorf("starting server %s: %w", srv.name, err)
		}

		started = append(started, srv)
	}

	return nil
}

// startServer starts listening on the address of srv and serves it in a
// separate goroutine.  svc.mu must be locked.
func (svc *Service) startServer(ctx context.Context, srv *server) (err error) {
	lc := &net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp", srv.initAddr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	srv.boundAddr = l.Addr()
	svc.logger.InfoContext(ctx, "listening", "name", srv.name, "addr", srv.boundAddr)

	go svc.serve(ctx, srv, l)

	return nil
}

// serve serves srv on l and logs the unexpected errors.  It is intended to be
// used as a goroutine.
func (svc *Service) serve(ctx context.Context, srv *server, l net.Listener) {
	err := srv.http.Serve(l)
	if !errors.Is(err, http.ErrServerClosed) {
		svc.logger.ErrorContext(ctx, "serving", "name", srv.name, slogutil.KeyError, err)
	}
}

// Shutdown implements the [service.Interface] interface for *Service.  It stops
// serving all endpoints.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var errs []error
	for _, srv := range svc.servers {
		err = srv.http.Shutdown(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("server %s shutdown: %w", srv.name, err))

			continue
		}

		svc.logger.InfoContext(ctx, "server is shutdown", "name", srv.name)
	}

	return errors.Join(errs...)
}

// BoundAddr returns the address the server with the initial address addr is
// listening on.  addr is nil if there is no such server or it isn't started.
func (svc *Service) BoundAddr(initAddr string) (addr net.Addr) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if srv, ok := svc.servers[initAddr]; ok {
		return srv.boundAddr
	}

	return nil
}
