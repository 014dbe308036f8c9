// Package errcoll contains implementations of error collectors, most notably
// Sentry.
package errcoll

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Interface is the interface for error collectors that process information
// about errors, possibly sending them to a remote location.
type Interface interface {
	Collect(ctx context.Context, err error)
}

// Collect is a helper function for reporting non-critical errors.  It writes
// the resulting error into the log and also into errColl.
func Collect(
	ctx context.Context,
	errColl Interface,
	logger *slog.Logger,
	msg string,
	err error,
) {
	logger.ErrorContext(ctx, msg, slogutil.KeyError, err)
	errColl.Collect(ctx, err)
}

// CollectDebug is like [Collect] but logs the error at the debug level.  It is
// used for errors that are expected to happen in normal operation, but that
// still should be visible to developers.
func CollectDebug(
	ctx context.Context,
	errColl Interface,
	logger *slog.Logger,
	msg string,
	err error,
) {
	logger.DebugContext(ctx, msg, slogutil.KeyError, err)
	errColl.Collect(ctx, err)
}
