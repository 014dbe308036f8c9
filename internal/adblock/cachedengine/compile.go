package cachedengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdio"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
)

// CompileConfig is the configuration structure for [Compile].
type CompileConfig struct {
	// Logger is used for logging the operation of the engine.  It must not be
	// nil.
	Logger *slog.Logger

	// Constructor creates the native engine.  It must not be nil.
	Constructor adblock.EngineConstructor

	// Parser is used to determine the registrable domains of URLs.  It must
	// not be nil.
	Parser domainparser.Interface

	// CacheManager is used to register the memo caches of the engine.  It must
	// not be nil.
	CacheManager agdcache.Manager

	// Memo is the configuration of the memo caches.  It must not be nil and
	// must be valid.
	Memo *agdcache.MemoConfig

	// Info is the filter list to compile.  It must not be nil.
	Info *adblock.FilterListInfo

	// ResourcesInfo is the resources file to use.  It may be nil.
	ResourcesInfo *adblock.ResourcesInfo

	// MaxFileSize is the maximum size of the filter-list and resources files.
	// It must be positive.
	MaxFileSize datasize.ByteSize
}

// Compile reads the filter list and the resources and returns a new engine
// built from them.  c must not be nil and must be valid.  The errors returned
// wrap [adblock.ErrFileNotFound], [adblock.ErrInvalidResourceJSON], or
// [adblock.ErrCouldNotDeserialize] where appropriate.
func Compile(ctx context.Context, c *CompileConfig) (e *Engine, err error) {
	eng, err := newNativeEngine(c)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", c.Info, err)
	}

	if c.ResourcesInfo != nil {
		err = useResources(eng, c.ResourcesInfo.FileLocation, c.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", c.Info, err)
		}
	}

	c.Logger.DebugContext(ctx, "compiled engine", "source", c.Info, "format", c.Info.Format)

	return New(&Config{
		Logger:        c.Logger,
		Engine:        eng,
		Parser:        c.Parser,
		CacheManager:  c.CacheManager,
		Memo:          c.Memo,
		Info:          c.Info,
		ResourcesInfo: c.ResourcesInfo,
	}), nil
}

// newNativeEngine reads the filter-list file and creates the native engine
// from it.
func newNativeEngine(c *CompileConfig) (eng adblock.Engine, err error) {
	data, err := readFile(c.Info.FileLocation, c.MaxFileSize)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	switch c.Info.Format {
	case adblock.FileFormatText:
		eng, err = c.Constructor.New(data)
		if err != nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}
	case adblock.FileFormatDat:
		eng, err = c.Constructor.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}

		if !eng.Deserialize(data) {
			return nil, fmt.Errorf("%q: %w", c.Info.FileLocation, adblock.ErrCouldNotDeserialize)
		}
	default:
		return nil, fmt.Errorf("format: %w: %q", errors.ErrBadEnumValue, c.Info.Format)
	}

	return eng, nil
}

// useResources reads the resources file, validates it, and sets the resources
// of eng.  Empty arrays and objects are ignored.
func useResources(eng adblock.Engine, path string, maxSize datasize.ByteSize) (err error) {
	data, err := readFile(path, maxSize)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	var v any
	err = json.Unmarshal(data, &v)
	if err != nil {
		return fmt.Errorf("%q: %w: %w", path, adblock.ErrInvalidResourceJSON, err)
	}

	switch v := v.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
	default:
		return fmt.Errorf("%q: %w: not an array or object", path, adblock.ErrInvalidResourceJSON)
	}

	eng.UseResources(data)

	return nil
}

// readFile reads the file at path and returns an error wrapping
// [adblock.ErrFileNotFound] if it doesn't exist.
func readFile(path string, maxSize datasize.ByteSize) (data []byte, err error) {
	data, err = agdio.ReadFile(path, maxSize)
	if err == nil {
		return data, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", path, adblock.ErrFileNotFound)
	}

	return nil, fmt.Errorf("reading %q: %w", path, err)
}
