package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of AdGuard Content
// Blocker.  The order of the fields should generally not be altered.
type configuration struct {
	// Filters is the configuration of the filter lists compiled into the
	// engines.
	Filters *filtersConfig `yaml:"filters"`

	// ContentBlockers is the configuration of the content-blocker rule lists.
	ContentBlockers *contentBlockersConfig `yaml:"content_blockers"`

	// Cache is the configuration of the memoization caches of the engines.
	Cache *cacheConfig `yaml:"cache"`

	// DomainParser is the configuration of the public suffix list parser.  See
	// the environment type for the path to the list.
	DomainParser *domainParserConfig `yaml:"domain_parser"`

	// Refresh is the configuration of the periodic refreshes of the filter
	// lists and the content blockers.
	Refresh *refreshConfig `yaml:"refresh"`

	// AdditionalMetricsInfo is extra information, which is exposed by metrics.
	AdditionalMetricsInfo additionalInfo `yaml:"additional_metrics_info"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "filters",
		Value: c.Filters,
	}, {
		Key:   "content_blockers",
		Value: c.ContentBlockers,
	}, {
		Key:   "cache",
		Value: c.Cache,
	}, {
		Key:   "domain_parser",
		Value: c.DomainParser,
	}, {
		Key:   "refresh",
		Value: c.Refresh,
	}, {
		Key:   "additional_metrics_info",
		Value: c.AdditionalMetricsInfo,
	}}

	var errs []error
	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	return errors.Join(errs...)
}

// parseConfig reads the configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}
