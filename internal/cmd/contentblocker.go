package cmd

import (
	"fmt"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
)

// contentBlockersConfig is the configuration of the content-blocker rule
// lists.  See the environment type for the rule store parameters.
type contentBlockersConfig struct {
	// BundleDir is the directory with the bundled generic rule lists.
	BundleDir string `yaml:"bundle_dir"`

	// ComponentIDs are the identifiers of the filter-list components whose
	// rule lists are attached to page loads.  If empty, the default ones are
	// used.
	ComponentIDs []string `yaml:"component_ids"`

	// StoreCacheSize is the number of compiled rule lists kept in memory by the
	// directory rule store.
	StoreCacheSize int `yaml:"store_cache_size"`

	// StoreLockTimeout is the timeout of acquiring the lock on the database
	// file of the bbolt rule store.
	StoreLockTimeout timeutil.Duration `yaml:"store_lock_timeout"`
}

// type check
var _ validate.Interface = (*contentBlockersConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *contentBlockersConfig.
func (c *contentBlockersConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("bundle_dir", c.BundleDir),
		validate.Positive("store_cache_size", c.StoreCacheSize),
		validate.Positive("store_lock_timeout", c.StoreLockTimeout),
	}

	for i, id := range c.ComponentIDs {
		if id == "" {
			errs = append(errs, fmt.Errorf("component_ids: at index %d: %w", i, errors.ErrEmptyValue))
		}
	}

	return errors.Join(errs...)
}

// validTypes returns the types of the rule lists attached to page loads.
func (c *contentBlockersConfig) validTypes() (types []contentblocker.BlocklistType) {
	if len(c.ComponentIDs) == 0 {
		return contentblocker.DefaultValidTypes()
	}

	types = []contentblocker.BlocklistType{
		contentblocker.Generic(contentblocker.CategoryBlockAds),
		contentblocker.Generic(contentblocker.CategoryBlockTrackers),
		contentblocker.Generic(contentblocker.CategoryUpgradeMixedContent),
	}

	for _, id := range c.ComponentIDs {
		types = append(types, contentblocker.FilterList(id, true))
	}

	return types
}

// lockTimeout returns the lock timeout of the bbolt rule store.
func (c *contentBlockersConfig) lockTimeout() (timeout time.Duration) {
	return time.Duration(c.StoreLockTimeout)
}
