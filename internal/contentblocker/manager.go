package contentblocker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
	"golang.org/x/sync/errgroup"
)

// DefaultComponentIDs returns the component IDs of the filter lists that are
// enabled by default.
func DefaultComponentIDs() (ids []string) {
	return []string{
		"cdbbhgbmjhfnhnmgeddbliobbofkgdhe",
		"bfpgedeaaibpoidldhjcknekahbikncb",
		"llgjaaddopeckcifdceaaadmemagkepi",
	}
}

// DefaultValidTypes returns the rule-list types that are attached to page loads
// by default.
func DefaultValidTypes() (types []BlocklistType) {
	types = []BlocklistType{
		Generic(CategoryBlockAds),
		Generic(CategoryBlockTrackers),
		Generic(CategoryUpgradeMixedContent),
	}

	for _, id := range DefaultComponentIDs() {
		types = append(types, FilterList(id, true))
	}

	return types
}

// Config is the configuration structure for a [*Manager].
type Config struct {
	// Logger is used for logging the compilation.  It must not be nil.
	Logger *slog.Logger

	// Store is the platform rule-list store.  It must not be nil.
	Store Store

	// Metrics is used for the collection of the compilation statistics.  It
	// must not be nil.
	Metrics Metrics

	// BundleDir is the directory with the bundled generic rule lists.
	BundleDir string

	// ValidTypes are the types of the rule lists returned by
	// [Manager.RuleLists].
	ValidTypes []BlocklistType

	// MaxFileSize is the maximum size of a rule-list file.  It must be
	// positive.
	MaxFileSize datasize.ByteSize
}

// compileResult is the memoized result of a compilation or a store lookup.
type compileResult struct {
	list *RuleList
	err  error
}

// Manager compiles rule lists into the store and caches the results by
// identifier.
type Manager struct {
	logger  *slog.Logger
	store   Store
	metrics Metrics

	// mu protects cache.
	mu    *sync.Mutex
	cache map[string]compileResult

	bundleDir   string
	validTypes  []BlocklistType
	maxFileSize datasize.ByteSize
}

// NewManager returns a new properly initialized *Manager.  c must not be nil.
func NewManager(c *Config) (m *Manager) {
	return &Manager{
		logger:      c.Logger,
		store:       c.Store,
		metrics:     c.Metrics,
		mu:          &sync.Mutex{},
		cache:       map[string]compileResult{},
		bundleDir:   c.BundleDir,
		validTypes:  slices.Clone(c.ValidTypes),
		maxFileSize: c.MaxFileSize,
	}
}

// Compile compiles the encoded rules into a rule list for every mode.  The
// encoded rules are decoded and preprocessed once.  If that fails, the error
// is memoized for every mode.  Otherwise the modes are compiled concurrently,
// and the results are memoized.  err contains the errors of all failed modes.
// Compile does nothing if modes is empty.
func (m *Manager) Compile(
	ctx context.Context,
	encoded []byte,
	typ BlocklistType,
	opts CompileOptions,
	modes []BlockingMode,
) (err error) {
	if len(modes) == 0 {
		return nil
	}

	rules, err := m.process(ctx, encoded, typ, opts)
	if err != nil {
		for _, mode := range modes {
			m.setResult(ctx, typ.MakeIdentifier(mode), nil, err)
		}

		return fmt.Errorf("processing rules for %s: %w", typ, err)
	}

	errs := make([]error, len(modes))

	g := &errgroup.Group{}
	for i, mode := range modes {
		g.Go(func() (compErr error) {
			defer slogutil.RecoverAndLog(ctx, m.logger)

			errs[i] = m.compileMode(ctx, typ, mode, rules)

			return errs[i]
		})
	}

	// Wait for all modes, since the errors of every mode are reported.
	_ = g.Wait()

	return errors.Join(errs...)
}

// process decodes encoded and applies opts to the rules.
func (m *Manager) process(
	ctx context.Context,
	encoded []byte,
	typ BlocklistType,
	opts CompileOptions,
) (rules []Rule, err error) {
	rules, err = DecodeRules(encoded)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	origLen := len(rules)

	if opts.Has(OptionStripCosmeticFilters) {
		rules = stripCosmeticFilters(rules)
	}

	if opts.Has(OptionPunycodeDomains) {
		punycodeDomains(rules)
	}

	if n := origLen - len(rules); n > 0 {
		m.logger.DebugContext(ctx, "filtered out rules", "type", typ, "count", n)
	}

	return rules, nil
}

// compileMode compiles the variant of rules for the mode and memoizes the
// result.
func (m *Manager) compileMode(
	ctx context.Context,
	typ BlocklistType,
	mode BlockingMode,
	rules []Rule,
) (err error) {
	id := typ.MakeIdentifier(mode)
	start := time.Now()

	var list *RuleList
	defer func() {
		m.metrics.ObserveCompile(ctx, mode, time.Since(start), err)
		m.setResult(ctx, id, list, err)
	}()

	encoded, err := EncodeRules(SetMode(mode, rules))
	if err != nil {
		return fmt.Errorf("rule list %q: %w", id, err)
	}

	list, err = m.store.Compile(ctx, id, encoded)
	if err != nil {
		return fmt.Errorf("compiling rule list %q: %w", id, err)
	} else if list == nil {
		return fmt.Errorf("compiling rule list %q: %w", id, ErrNoRuleListReturned)
	}

	m.logger.DebugContext(ctx, "compiled rule list", "id", id, "rules", len(rules))

	return nil
}

// setResult memoizes the result for the identifier.
func (m *Manager) setResult(ctx context.Context, id string, list *RuleList, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[id] = compileResult{
		list: list,
		err:  err,
	}

	m.metrics.SetCachedRuleLists(ctx, len(m.cache))
}

// cachedResult returns the memoized result for the identifier, if any.
func (m *Manager) cachedResult(id string) (res compileResult, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok = m.cache[id]

	return res, ok
}

// RuleList returns the rule list of the type for the mode.  The memoized
// results, including the failed ones, are returned first.  Otherwise the rule
// list is looked up in the store and memoized if found.  rl and err are nil if
// there is no such rule list.
func (m *Manager) RuleList(
	ctx context.Context,
	typ BlocklistType,
	mode BlockingMode,
) (rl *RuleList, err error) {
	id := typ.MakeIdentifier(mode)
	if res, ok := m.cachedResult(id); ok {
		return res.list, res.err
	}

	rl, err = m.store.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up rule list %q: %w", id, err)
	} else if rl == nil {
		return nil, nil
	}

	m.setResult(ctx, id, rl, nil)

	return rl, nil
}

// HasRuleList returns true if there is a successfully compiled rule list of
// the type for the mode.
func (m *Manager) HasRuleList(ctx context.Context, typ BlocklistType, mode BlockingMode) (ok bool) {
	rl, err := m.RuleList(ctx, typ, mode)

	return err == nil && rl != nil
}

// MissingModes returns the allowed modes of the type that don't have a
// compiled rule list.
func (m *Manager) MissingModes(ctx context.Context, typ BlocklistType) (modes []BlockingMode) {
	for _, mode := range typ.AllowedModes() {
		if !m.HasRuleList(ctx, typ, mode) {
			modes = append(modes, mode)
		}
	}

	return modes
}

// RemoveRuleLists removes the rule lists of the type for all allowed modes
// from the cache and from the store.  Unless force is true, only the rule lists
// that are in the cache are removed.
func (m *Manager) RemoveRuleLists(ctx context.Context, typ BlocklistType, force bool) (err error) {
	for _, mode := range typ.AllowedModes() {
		err = m.removeRuleList(ctx, typ.MakeIdentifier(mode), force)
		if err != nil {
			// Don't wrap the error, since it's informative enough as is.
			return err
		}
	}

	return nil
}

// removeRuleList removes the rule list with the identifier from the cache and
// from the store.
func (m *Manager) removeRuleList(ctx context.Context, id string, force bool) (err error) {
	m.mu.Lock()
	_, ok := m.cache[id]
	delete(m.cache, id)
	n := len(m.cache)
	m.mu.Unlock()

	if !ok && !force {
		return nil
	}

	m.metrics.SetCachedRuleLists(ctx, n)

	err = m.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("removing rule list %q: %w", id, err)
	}

	return nil
}

// RuleLists returns the rule lists of the valid types in the aggressive mode
// of the user setting, sorted by identifier.  The types without a rule list
// and the failed ones are skipped.
func (m *Manager) RuleLists(ctx context.Context) (rls []*RuleList) {
	results := make([]*RuleList, len(m.validTypes))

	wg := &sync.WaitGroup{}
	for i, typ := range m.validTypes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer slogutil.RecoverAndLog(ctx, m.logger)

			rl, err := m.RuleList(ctx, typ, typ.Mode(true))
			if err != nil {
				// Some rule lists are empty and fail to compile, which is
				// normal.
				m.logger.DebugContext(ctx, "no rule list", "type", typ, slogutil.KeyError, err)

				return
			}

			results[i] = rl
		}()
	}

	wg.Wait()

	for _, rl := range results {
		if rl != nil {
			rls = append(rls, rl)
		}
	}

	slices.SortFunc(rls, func(a, b *RuleList) (res int) {
		return cmp.Compare(a.Identifier, b.Identifier)
	})

	return rls
}
