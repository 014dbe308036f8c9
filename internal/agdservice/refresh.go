package agdservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"golang.org/x/exp/rand"
)

// Refresher is the interface for entities that can update themselves, such as
// the filter index or the content-blocker rule compiler.
type Refresher interface {
	// Refresh is called by a [RefreshWorker].  The error returned by Refresh is
	// only returned from [RefreshWorker.Shutdown] and only when
	// [RefreshWorkerConfig.RefreshOnShutdown] is true.  In all other cases, the
	// error is ignored, and refreshers must handle error reporting themselves.
	Refresh(ctx context.Context) (err error)
}

// RefresherFunc is an adapter to allow the use of ordinary functions as
// [Refresher].
type RefresherFunc func(ctx context.Context) (err error)

// type check
var _ Refresher = RefresherFunc(nil)

// Refresh implements the [Refresher] interface for RefresherFunc.
func (f RefresherFunc) Refresh(ctx context.Context) (err error) {
	return f(ctx)
}

// jitterDivisor defines the maximum jitter of a refresh as a fraction of the
// refresh interval.
const jitterDivisor = 10

// RefreshWorker is a [service.Interface] implementation that calls its
// [Refresher] once every interval, optionally delayed by a random jitter.
type RefreshWorker struct {
	logger    *slog.Logger
	done      chan unit
	newCtx    func() (ctx context.Context, cancel context.CancelFunc)
	refr      Refresher
	rand      *rand.Rand
	ivl       time.Duration
	maxJitter time.Duration

	refrOnShutdown bool
}

// RefreshWorkerConfig is the configuration structure for a *RefreshWorker.
type RefreshWorkerConfig struct {
	// Context is used to provide a context for the Refresh method of Refresher.
	// It is not used for the shutdown refresh.
	Context func() (ctx context.Context, cancel context.CancelFunc)

	// Refresher is the entity being refreshed.
	Refresher Refresher

	// Logger is used for logging the operation of the worker.
	Logger *slog.Logger

	// Interval is the refresh interval.  Must be greater than zero.
	Interval time.Duration

	// RefreshOnShutdown, if true, instructs the worker to call the Refresher's
	// Refresh method before shutting down the worker.
	RefreshOnShutdown bool

	// Jitter, if true, delays every refresh by a random duration of up to 10 %
	// of Interval.  It spreads the load from several instances that download
	// filter lists from the same server.
	Jitter bool
}

// NewRefreshWorker returns a new valid *RefreshWorker with the provided
// parameters.  c must not be nil.
func NewRefreshWorker(c *RefreshWorkerConfig) (w *RefreshWorker) {
	w = &RefreshWorker{
		logger:         c.Logger,
		done:           make(chan unit),
		newCtx:         c.Context,
		refr:           c.Refresher,
		ivl:            c.Interval,
		refrOnShutdown: c.RefreshOnShutdown,
	}

	if c.Jitter {
		w.maxJitter = c.Interval / jitterDivisor
		// #nosec G115 -- The Unix epoch time is highly unlikely to be negative.
		w.rand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}

	return w
}

// type check
var _ service.Interface = (*RefreshWorker)(nil)

// Start implements the [service.Interface] interface for *RefreshWorker.  err
// is always nil.
func (w *RefreshWorker) Start(_ context.Context) (err error) {
	go w.refreshInALoop()

	return nil
}

// Shutdown implements the [service.Interface] interface for *RefreshWorker.
// It must only be called once.
//
// NOTE:  The context provided by [RefreshWorkerConfig.Context] is not used for
// the shutdown refresh.
func (w *RefreshWorker) Shutdown(ctx context.Context) (err error) {
	close(w.done)

	if !w.refrOnShutdown {
		w.logger.InfoContext(ctx, "shut down successfully")

		return nil
	}

	err = w.refr.Refresh(slogutil.ContextWithLogger(ctx, w.logger))
	if err != nil {
		return fmt.Errorf("refresh on shutdown: %w", err)
	}

	w.logger.InfoContext(ctx, "shut down successfully")

	return nil
}

// refreshInALoop refreshes the entity once every interval until Shutdown is
// called.
func (w *RefreshWorker) refreshInALoop() {
	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, w.logger)

	w.logger.InfoContext(ctx, "starting refresh loop", "interval", w.ivl)

	timer := time.NewTimer(w.nextDelay(ctx))
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			w.logger.InfoContext(ctx, "finished refresh loop")

			return
		case <-timer.C:
			w.refresh()
			timer.Reset(w.nextDelay(ctx))
		}
	}
}

// nextDelay returns the duration until the next refresh.  It must only be
// called from the refresh loop.
func (w *RefreshWorker) nextDelay(ctx context.Context) (d time.Duration) {
	if w.maxJitter == 0 {
		return w.ivl
	}

	jitter := time.Duration(w.rand.Int63n(int64(w.maxJitter)))
	w.logger.Log(ctx, slogutil.LevelTrace, "next refresh", "jitter", jitter)

	return w.ivl + jitter
}

// refresh refreshes the entity.  The errors are reported by the refresher.
func (w *RefreshWorker) refresh() {
	ctx, cancel := w.newCtx()
	defer cancel()

	ctx = slogutil.ContextWithLogger(ctx, w.logger)

	_ = w.refr.Refresh(ctx)
}

// RefresherWithErrColl reports all refresh errors to errColl and logs them
// using the provided logger.
type RefresherWithErrColl struct {
	logger  *slog.Logger
	refr    Refresher
	errColl errcoll.Interface
	prefix  string
}

// NewRefresherWithErrColl wraps refr into a refresher that collects errors and
// logs them.
func NewRefresherWithErrColl(
	refr Refresher,
	logger *slog.Logger,
	errColl errcoll.Interface,
	prefix string,
) (wrapped *RefresherWithErrColl) {
	return &RefresherWithErrColl{
		refr:    refr,
		logger:  logger,
		errColl: errColl,
		prefix:  prefix,
	}
}

// type check
var _ Refresher = (*RefresherWithErrColl)(nil)

// Refresh implements the [Refresher] interface for *RefresherWithErrColl.
func (r *RefresherWithErrColl) Refresh(ctx context.Context) (err error) {
	err = r.refr.Refresh(ctx)
	if err != nil {
		errcoll.Collect(ctx, r.errColl, r.logger, r.prefix+": refreshing", err)
	}

	return err
}
