package rulestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/renameio/v2"
)

// dirExt is the extension of the rule-list files.
const dirExt = ".json"

// DirConfig is the configuration structure for a [*Dir].
type DirConfig struct {
	// Logger is used for logging the operation of the store.  It must not be
	// nil.
	Logger *slog.Logger

	// CacheManager is used to register the cache of the store.  It must not
	// be nil.
	CacheManager agdcache.Manager

	// Path is the path to the directory with the rule-list files.  It is
	// created if it doesn't exist.
	Path string

	// CacheCount is the number of rule lists kept in memory.  It must be
	// positive.
	CacheCount int
}

// Dir is a [contentblocker.Store] that keeps every rule list in a file inside
// a directory.
type Dir struct {
	logger *slog.Logger
	cache  *agdcache.Keyed[string, *contentblocker.RuleList]
	path   string
}

// cacheID is the identifier of the cache of a rule-list store in the cache
// manager.
const cacheID = "rulestore"

// NewDir returns a new properly initialized *Dir.  c must not be nil.
func NewDir(c *DirConfig) (s *Dir, err error) {
	err = os.MkdirAll(c.Path, 0o700)
	if err != nil {
		return nil, fmt.Errorf("creating rule store dir: %w", err)
	}

	cache, err := agdcache.NewKeyed[string, *contentblocker.RuleList](&agdcache.KeyedConfig{
		Count: c.CacheCount,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rule store cache: %w", err)
	}

	c.CacheManager.Add(cacheID, cache)

	return &Dir{
		logger: c.Logger,
		cache:  cache,
		path:   c.Path,
	}, nil
}

// type check
var _ contentblocker.Store = (*Dir)(nil)

// Compile implements the [contentblocker.Store] interface for *Dir.
func (s *Dir) Compile(
	ctx context.Context,
	id string,
	encoded []byte,
) (rl *contentblocker.RuleList, err error) {
	rl, err = compile(id, encoded)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	err = renameio.WriteFile(s.filePath(id), encoded, 0o600)
	if err != nil {
		return nil, fmt.Errorf("writing rule list %q: %w", id, err)
	}

	s.cache.Set(id, rl)

	s.logger.DebugContext(ctx, "stored rule list", "id", id, "size", len(encoded))

	return rl, nil
}

// Lookup implements the [contentblocker.Store] interface for *Dir.
func (s *Dir) Lookup(ctx context.Context, id string) (rl *contentblocker.RuleList, err error) {
	err = validateID(id)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	if rl, ok := s.cache.Get(id); ok {
		return rl, nil
	}

	encoded, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading rule list %q: %w", id, err)
	}

	rl = &contentblocker.RuleList{
		Identifier: id,
		Encoded:    encoded,
	}

	s.cache.Set(id, rl)

	return rl, nil
}

// Remove implements the [contentblocker.Store] interface for *Dir.
func (s *Dir) Remove(ctx context.Context, id string) (err error) {
	err = validateID(id)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	s.cache.Remove(id)

	err = os.Remove(s.filePath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing rule list %q: %w", id, err)
	}

	s.logger.DebugContext(ctx, "removed rule list", "id", id)

	return nil
}

// filePath returns the path to the file of the rule list.
func (s *Dir) filePath(id string) (path string) {
	return filepath.Join(s.path, id+dirExt)
}
