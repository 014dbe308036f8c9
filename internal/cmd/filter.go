package cmd

import (
	"fmt"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdhttp"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/filterindex"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
)

// filtersConfig contains the configuration for the filter lists compiled into
// the engines.
type filtersConfig struct {
	// Resources is the path to the shared file with the redirect and
	// scriptlet resources.  If empty, the engines use no resources.
	Resources string `yaml:"resources"`

	// Lists are the filter lists in the order of their priority.
	Lists []*filterListConfig `yaml:"lists"`

	// Staleness is the time after which a downloaded filter list is downloaded
	// again.
	Staleness timeutil.Duration `yaml:"staleness"`

	// DownloadTimeout is the timeout of the download of a single filter list.
	DownloadTimeout timeutil.Duration `yaml:"download_timeout"`

	// MaxSize is the maximum size of a downloadable filter list.
	MaxSize datasize.ByteSize `yaml:"max_size"`
}

// type check
var _ validate.Interface = (*filtersConfig)(nil)

// Validate implements the [validate.Interface] interface for *filtersConfig.
func (c *filtersConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.Positive("staleness", c.Staleness),
		validate.Positive("download_timeout", c.DownloadTimeout),
		validate.Positive("max_size", c.MaxSize),
	}

	srcs := container.NewMapSet[string]()
	for i, l := range c.Lists {
		err = l.Validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("lists: at index %d: %w", i, err))

			continue
		}

		if srcs.Has(l.Source) {
			errs = append(errs, fmt.Errorf("lists: at index %d: duplicate source %q", i, l.Source))
		}

		srcs.Add(l.Source)
	}

	return errors.Join(errs...)
}

// toInternal converts the filter lists to the ones used by the filter index.
// c must be valid.
func (c *filtersConfig) toInternal() (lists []*filterindex.List) {
	lists = make([]*filterindex.List, 0, len(c.Lists))
	for _, l := range c.Lists {
		lists = append(lists, l.toInternal())
	}

	return lists
}

// resourcesInfo returns the information about the resources file, if any.
func (c *filtersConfig) resourcesInfo() (resInfo *adblock.ResourcesInfo) {
	if c.Resources == "" {
		return nil
	}

	return &adblock.ResourcesInfo{
		FileLocation: c.Resources,
	}
}

// filterListConfig is the configuration of a single filter list.
type filterListConfig struct {
	// Source is the string representation of the provenance of the list, for
	// example "adBlock" or "filterListURL(<uuid>)".
	Source string `yaml:"source"`

	// URL is the HTTP(S) URL to download the list from.  If set, Path is
	// ignored.
	URL string `yaml:"url"`

	// Path is the path to the local filter-list file.
	Path string `yaml:"path"`

	// RuleListPath is the optional path to the content-blocker JSON rules
	// converted from the same filter list.
	RuleListPath string `yaml:"rule_list_path"`

	// Format is the format of the filter-list file, "text" or "dat".
	Format adblock.FileFormat `yaml:"format"`

	// Enabled shows if the engine of the list is queried.
	Enabled bool `yaml:"enabled"`
}

// type check
var _ validate.Interface = (*filterListConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *filterListConfig.
func (c *filterListConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	_, err = adblock.ParseSource(c.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	err = c.Format.Validate()
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	if c.URL == "" {
		return validate.NotEmpty("path", c.Path)
	}

	_, err = agdhttp.ParseHTTPURL(c.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}

	return nil
}

// toInternal converts c to a filter-index list.  c must be valid.
func (c *filterListConfig) toInternal() (l *filterindex.List) {
	l = &filterindex.List{
		Source:       errors.Must(adblock.ParseSource(c.Source)),
		Path:         c.Path,
		RuleListPath: c.RuleListPath,
		Format:       c.Format,
		Enabled:      c.Enabled,
	}

	if c.URL != "" {
		l.URL = errors.Must(agdhttp.ParseHTTPURL(c.URL))
	}

	return l
}

// refreshConfig is the configuration of the periodic refreshes.
type refreshConfig struct {
	// Interval defines how often the filter lists are refreshed.
	Interval timeutil.Duration `yaml:"interval"`

	// Timeout is the timeout for the entire refresh operation.
	Timeout timeutil.Duration `yaml:"timeout"`

	// Jitter, if true, delays every periodic refresh by a random duration of up
	// to a tenth of the interval.
	Jitter bool `yaml:"jitter"`
}

// type check
var _ validate.Interface = (*refreshConfig)(nil)

// Validate implements the [validate.Interface] interface for *refreshConfig.
func (c *refreshConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.Positive("interval", c.Interval),
		validate.Positive("timeout", c.Timeout),
		validate.NoLessThan("interval", c.Interval, c.Timeout),
	)
}

// interval returns the refresh interval.
func (c *refreshConfig) interval() (ivl time.Duration) {
	return time.Duration(c.Interval)
}
