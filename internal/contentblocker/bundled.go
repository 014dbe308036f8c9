package contentblocker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdio"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/sync/errgroup"
)

// bundledExt is the extension of the bundled rule-list files.
const bundledExt = ".json"

// CompileBundled compiles the bundled rule list of the category for the
// modes.  It does nothing if modes is empty.
func (m *Manager) CompileBundled(
	ctx context.Context,
	c GenericCategory,
	modes []BlockingMode,
) (err error) {
	if len(modes) == 0 {
		return nil
	}

	path := filepath.Join(m.bundleDir, c.BundledFileName()+bundledExt)
	m.logger.DebugContext(ctx, "compiling bundled rule list", "path", path, "modes", modes)

	return m.CompileFile(ctx, path, Generic(c), 0, modes)
}

// CompileFile reads the JSON rule list from the file at path and compiles it
// for the modes.
func (m *Manager) CompileFile(
	ctx context.Context,
	path string,
	typ BlocklistType,
	opts CompileOptions,
	modes []BlockingMode,
) (err error) {
	if len(modes) == 0 {
		return nil
	}

	encoded, err := agdio.ReadFile(path, m.maxFileSize)
	if err != nil {
		return fmt.Errorf("reading rule list for %s: %w", typ, err)
	}

	return m.Compile(ctx, encoded, typ, opts, modes)
}

// LoadBundledIfNeeded compiles the bundled rule lists of all generic
// categories.  The rule lists of [CategoryBlockAds] can be replaced by
// downloaded ones, so only their missing modes are compiled.  The other
// categories are always recompiled.
func (m *Manager) LoadBundledIfNeeded(ctx context.Context) (err error) {
	errs := make([]error, len(AllGenericCategories))

	g := &errgroup.Group{}
	for i, c := range AllGenericCategories {
		g.Go(func() (loadErr error) {
			defer slogutil.RecoverAndLog(ctx, m.logger)

			typ := Generic(c)
			modes := typ.AllowedModes()
			if c == CategoryBlockAds {
				modes = m.MissingModes(ctx, typ)
			}

			errs[i] = m.CompileBundled(ctx, c, modes)

			return errs[i]
		})
	}

	_ = g.Wait()

	err = errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("loading bundled rule lists: %w", err)
	}

	return nil
}

// Refresh implements the [agdservice.Refresher] interface for *Manager.  It
// loads the bundled rule lists, if needed.
func (m *Manager) Refresh(ctx context.Context) (err error) {
	m.logger.InfoContext(ctx, "refresh started")
	defer m.logger.InfoContext(ctx, "refresh finished")

	return m.LoadBundledIfNeeded(ctx)
}
