// Package filterindex contains the index of the configured filter lists.  The
// index keeps the local copies of the remote lists fresh and updates the
// engines compiled from them.
package filterindex

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdservice"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
)

// List describes a single configured filter list.
type List struct {
	// URL, if not nil, is the HTTP(S) URL the filter list is downloaded from.
	// The downloaded file is stored in [Config.CacheDir].
	URL *url.URL

	// Source is the provenance of the filter list.
	Source adblock.Source

	// Path is the path to the local filter-list file.  It is ignored if URL is
	// set.
	Path string

	// RuleListPath is the optional path to the content-blocker rule list
	// converted from the same filter list.
	RuleListPath string

	// Format is the format of the filter-list file.
	Format adblock.FileFormat

	// Enabled is true if the engine of the filter list is queried.
	Enabled bool
}

// Updater updates the engines compiled from filter lists.
// [*enginecache.Default] is the main implementation.
type Updater interface {
	// Update compiles the engine for info, unless the current engine of its
	// source was compiled from the same files.
	Update(ctx context.Context, info *adblock.FilterListInfo, resInfo *adblock.ResourcesInfo) (err error)

	// Evict removes the engine of the source.
	Evict(ctx context.Context, src adblock.Source)
}

// Config is the configuration structure for an [*Index].
type Config struct {
	// Logger is used for logging the refreshes.  It must not be nil.
	Logger *slog.Logger

	// ErrColl is used to collect the errors of single lists.  It must not be
	// nil.
	ErrColl errcoll.Interface

	// Metrics is used for the collection of the refresh statistics.  It must
	// not be nil.
	Metrics Metrics

	// Updater is the engine cache to update.  It must not be nil.
	Updater Updater

	// Resources describes the shared resources file.  It may be nil.
	Resources *adblock.ResourcesInfo

	// CacheDir is the directory for the downloaded filter lists.  It must not
	// be empty if any list has a URL.
	CacheDir string

	// Lists are the configured filter lists in the order of their priority.
	// The sources must be unique.
	Lists []*List

	// Staleness is the time after which a downloaded list is downloaded again.
	Staleness time.Duration

	// Timeout is the timeout of the downloads.
	Timeout time.Duration

	// MaxSize is the maximum size of a downloaded list.
	MaxSize datasize.ByteSize
}

// Index is the index of the configured filter lists.
type Index struct {
	logger     *slog.Logger
	errColl    errcoll.Interface
	metrics    Metrics
	updater    Updater
	downloader *downloader
	resources  *adblock.ResourcesInfo
	cacheDir   string
	lists      []*List

	// mu protects enabled.
	mu      *sync.RWMutex
	enabled map[adblock.Source]bool

	// refreshed is true after the first refresh.  It is only accessed from
	// Refresh, which is serialized by refrMu.
	refrMu    *sync.Mutex
	refreshed bool
}

// New returns a new properly initialized *Index.  c must not be nil.
func New(c *Config) (idx *Index, err error) {
	enabled := make(map[adblock.Source]bool, len(c.Lists))
	for i, l := range c.Lists {
		if _, ok := enabled[l.Source]; ok {
			return nil, fmt.Errorf("lists: at index %d: duplicate source %s", i, l.Source)
		} else if l.URL != nil && strings.ContainsAny(l.Source.ID, `/\`) {
			return nil, fmt.Errorf("lists: at index %d: bad id %q for remote list", i, l.Source.ID)
		}

		enabled[l.Source] = l.Enabled
	}

	return &Index{
		logger:  c.Logger,
		errColl: c.ErrColl,
		metrics: c.Metrics,
		updater: c.Updater,
		downloader: &downloader{
			logger: c.Logger,
			http: agdhttp.NewClient(&agdhttp.ClientConfig{
				Timeout: c.Timeout,
			}),
			staleness: c.Staleness,
			maxSize:   c.MaxSize,
		},
		resources: c.Resources,
		cacheDir:  c.CacheDir,
		lists:     slices.Clone(c.Lists),
		mu:        &sync.RWMutex{},
		enabled:   enabled,
		refrMu:    &sync.Mutex{},
	}, nil
}

// EnabledSources returns the sources of the enabled filter lists in the order
// of their priority.  It can be used as [enginecache.EnabledSourcesFunc].
func (idx *Index) EnabledSources(_ context.Context) (srcs []adblock.Source) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, l := range idx.lists {
		if idx.enabled[l.Source] {
			srcs = append(srcs, l.Source)
		}
	}

	return srcs
}

// SetEnabled enables or disables the filter list of the source.  ok is false if
// there is no such list.
func (idx *Index) SetEnabled(src adblock.Source, enabled bool) (ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok = idx.enabled[src]; ok {
		idx.enabled[src] = enabled
	}

	return ok
}

// type check
var _ agdservice.Refresher = (*Index)(nil)

// Refresh implements the [agdservice.Refresher] interface for *Index.  It
// downloads the stale remote lists and updates the engines of all enabled
// lists.  Disabled lists are evicted.  The errors of single lists are collected,
// and the engines of the other lists are still updated.  On the first refresh,
// the existing downloaded files are used regardless of their staleness.
func (idx *Index) Refresh(ctx context.Context) (err error) {
	idx.refrMu.Lock()
	defer idx.refrMu.Unlock()

	idx.logger.InfoContext(ctx, "refresh started")
	defer idx.logger.InfoContext(ctx, "refresh finished")

	start := time.Now()
	acceptStale := !idx.refreshed

	var errs []error
	for _, l := range idx.lists {
		if !idx.isEnabled(l.Source) {
			idx.updater.Evict(ctx, l.Source)

			continue
		}

		err = idx.refreshList(ctx, l, acceptStale)
		if err != nil {
			errcoll.Collect(ctx, idx.errColl, idx.logger, "refreshing filter list", err)
			errs = append(errs, err)
		}
	}

	idx.refreshed = true

	err = errors.Join(errs...)
	idx.metrics.ObserveRefresh(ctx, time.Since(start), err)

	return err
}

// isEnabled returns true if the filter list of the source is enabled.
func (idx *Index) isEnabled(src adblock.Source) (ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.enabled[src]
}

// refreshList downloads the list, if needed, and updates its engine.
func (idx *Index) refreshList(ctx context.Context, l *List, acceptStale bool) (err error) {
	defer func() { err = errors.Annotate(err, "list %s: %w", l.Source) }()

	path := l.Path
	if l.URL != nil {
		path = filepath.Join(idx.cacheDir, cacheFileName(l))

		err = idx.downloader.fetch(ctx, l.URL, path, acceptStale)
		if err != nil {
			// Don't wrap the error, since it's annotated above.
			return err
		}
	}

	info := &adblock.FilterListInfo{
		Source:           l.Source,
		FileLocation:     path,
		RuleListLocation: l.RuleListPath,
		Format:           l.Format,
	}

	info.Version, err = fileVersion(path)
	if err != nil {
		return fmt.Errorf("getting version: %w", err)
	}

	return idx.updater.Update(ctx, info, idx.resources)
}

// fileVersion returns the version of the filter-list file at path.  A missing
// file has version zero, the compilation reports it.
func fileVersion(path string) (v int64, err error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		// Don't wrap the error, since it already contains the path.
		return 0, err
	}

	return fi.ModTime().UnixNano(), nil
}

// cacheFileName returns the name of the file for the downloaded list.
func cacheFileName(l *List) (name string) {
	name = l.Source.Kind.String()
	if l.Source.ID != "" {
		name += "_" + strings.ToLower(l.Source.ID)
	}

	ext := ".txt"
	if l.Format == adblock.FileFormatDat {
		ext = ".dat"
	}

	return name + ext
}
