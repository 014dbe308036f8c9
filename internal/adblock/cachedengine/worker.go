package cachedengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/panjf2000/ants/v2"
)

// ErrEnginePanic is returned when the native engine panics during a call.
const ErrEnginePanic errors.Error = "engine call panic"

// newWorker returns a new pool with a single worker, so that all engine calls
// submitted to it are serialized.  Submission blocks while the worker is busy.
func newWorker(logger *slog.Logger) (p *ants.Pool) {
	p, err := ants.NewPool(1, ants.WithOptions(ants.Options{
		ExpiryDuration: time.Minute,
		PreAlloc:       false,
		Nonblocking:    false,
		DisablePurge:   false,
		Logger: &antsLogger{
			logger: logger,
		},
	}))
	errors.Check(err)

	return p
}

// result is the result of a single engine call.
type result[T any] struct {
	val T
	err error
}

// run submits f to the worker of e and waits for the result.  err is not nil
// if f could not be submitted, if f panicked, or if ctx is done before f has
// finished.
func run[T any](ctx context.Context, e *Engine, f func() (v T)) (v T, err error) {
	resCh := make(chan result[T], 1)
	err = e.pool.Submit(func() {
		res := result[T]{}
		defer func() { resCh <- res }()
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%w: %v", ErrEnginePanic, r)
				e.logger.Error("calling engine", slogutil.KeyError, res.err)
			}
		}()

		res.val = f()
	})
	if err != nil {
		return v, fmt.Errorf("submitting engine call: %w", err)
	}

	select {
	case res := <-resCh:
		return res.val, res.err
	case <-ctx.Done():
		return v, fmt.Errorf("waiting for engine call: %w", context.Cause(ctx))
	}
}

// antsLogger implements the [ants.Logger] interface and writes everything to
// its logger.
type antsLogger struct {
	logger *slog.Logger
}

// type check
var _ ants.Logger = (*antsLogger)(nil)

// Printf implements the [ants.Logger] interface for *antsLogger.
func (l *antsLogger) Printf(format string, args ...any) {
	l.logger.Info("ants pool", slogutil.KeyMessage, fmt.Sprintf(format, args...))
}
