package filterindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/c2h5oh/datasize"
	renameio "github.com/google/renameio/v2"
)

// downloader keeps a local copy of a remote file up to date.
type downloader struct {
	logger    *slog.Logger
	http      *agdhttp.Client
	staleness time.Duration
	maxSize   datasize.ByteSize
}

// fetch makes sure that the file at cachePath contains the data from u.  The
// data is downloaded only if the file doesn't exist or, unless acceptStale is
// true, is older than the staleness.  A stale file is revalidated with a
// conditional request and only has its mtime updated if the remote list hasn't
// changed.
func (d *downloader) fetch(
	ctx context.Context,
	u *url.URL,
	cachePath string,
	acceptStale bool,
) (err error) {
	now := time.Now()

	fresh, modTime, err := d.isFresh(cachePath, acceptStale, now)
	if err != nil {
		return fmt.Errorf("checking cache file %q: %w", cachePath, err)
	} else if fresh {
		d.logger.DebugContext(ctx, "using cached file", "path", cachePath)

		return nil
	}

	ru := urlutil.RedactUserinfo(u)
	d.logger.InfoContext(ctx, "downloading", "url", ru, "mod_since", modTime)

	err = d.download(ctx, u, cachePath, modTime, now)
	if err != nil {
		return fmt.Errorf("downloading from url %q: %w", ru, err)
	}

	return nil
}

// isFresh returns true if the file at cachePath exists and its mtime shows that
// it's still fresh relative to updTime.  If acceptStale is true, any existing
// file is considered fresh.  modTime is the mtime of the file, if it exists.
func (d *downloader) isFresh(
	cachePath string,
	acceptStale bool,
	updTime time.Time,
) (ok bool, modTime time.Time, err error) {
	fi, err := os.Stat(cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, time.Time{}, nil
	} else if err != nil {
		return false, time.Time{}, err
	}

	modTime = fi.ModTime()
	if acceptStale {
		return true, modTime, nil
	}

	return modTime.Add(d.staleness).After(updTime), modTime, nil
}

// download loads the data from u into the file specified by cachePath and sets
// its atime and mtime to updTime.  If modSince is not zero and the server
// reports that the data hasn't changed since then, only the times are updated.
func (d *downloader) download(
	ctx context.Context,
	u *url.URL,
	cachePath string,
	modSince time.Time,
	updTime time.Time,
) (err error) {
	resp, err := d.http.Get(ctx, u, modSince)
	if err != nil {
		return fmt.Errorf("requesting: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	d.logger.DebugContext(
		ctx,
		"got data from url",
		"code", resp.StatusCode,
		"content-length", resp.ContentLength,
		"server", resp.Header.Get(httphdr.Server),
	)

	if !modSince.IsZero() && resp.StatusCode == http.StatusNotModified {
		d.logger.DebugContext(ctx, "not modified", "path", cachePath)

		return os.Chtimes(cachePath, updTime, updTime)
	}

	err = agdhttp.CheckStatus(resp, http.StatusOK)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	tmpFile, err := renameio.TempFile(filepath.Dir(cachePath), cachePath)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() { err = withDeferredTmpCleanup(err, tmpFile, cachePath, updTime) }()

	n, err := io.Copy(tmpFile, ioutil.LimitReader(resp.Body, d.maxSize.Bytes()))
	if err != nil {
		return agdhttp.WrapResponseError(fmt.Errorf("reading into file: %w", err), resp)
	} else if n == 0 {
		return agdhttp.WrapResponseError(errors.Error("empty file, not resetting"), resp)
	}

	return nil
}

// withDeferredTmpCleanup is a helper that performs the necessary cleanups and
// finalizations of the temporary files based on the returned error.
func withDeferredTmpCleanup(
	returned error,
	tmpFile *renameio.PendingFile,
	cachePath string,
	updTime time.Time,
) (err error) {
	if returned != nil {
		return errors.WithDeferred(returned, tmpFile.Cleanup())
	}

	err = tmpFile.CloseAtomicallyReplace()
	if err != nil {
		return errors.WithDeferred(nil, err)
	}

	return errors.WithDeferred(nil, os.Chtimes(cachePath, updTime, updTime))
}
