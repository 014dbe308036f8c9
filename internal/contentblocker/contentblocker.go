// Package contentblocker compiles content-blocker JSON rule lists into
// platform rule lists, one variant per blocking mode, and caches the results.
package contentblocker

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// Compile errors.
const (
	// ErrNoRuleListReturned is returned when the store neither compiled a
	// rule list nor returned an error.
	ErrNoRuleListReturned errors.Error = "no rule list returned"

	// ErrInvalidJSONArray is returned when the encoded rules are not a JSON
	// array of objects.
	ErrInvalidJSONArray errors.Error = "invalid json array"
)

// BlockingMode is the variant of a compiled rule list.
type BlockingMode uint8

// BlockingMode values.  Keep in sync with [AllModes].
const (
	// ModeGeneral is the variant for the non-ad categories.  The rules are
	// compiled as is.
	ModeGeneral BlockingMode = iota + 1

	// ModeStandard is the ad-blocking variant that doesn't block first-party
	// ad content.
	ModeStandard

	// ModeAggressive is the ad-blocking variant that blocks first-party ad
	// content as well.
	ModeAggressive
)

// AllModes are all valid blocking modes in their canonical order.
var AllModes = []BlockingMode{
	ModeGeneral,
	ModeStandard,
	ModeAggressive,
}

// String implements the [fmt.Stringer] interface for BlockingMode.
func (m BlockingMode) String() (s string) {
	switch m {
	case ModeGeneral:
		return "general"
	case ModeStandard:
		return "standard"
	case ModeAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("!bad_blocking_mode_%d", uint8(m))
	}
}

// CompileOptions are the bit flags of the rule preprocessing steps.
type CompileOptions uint8

// CompileOptions values.
const (
	// OptionStripCosmeticFilters removes the rules with a selector action.
	OptionStripCosmeticFilters CompileOptions = 1 << iota

	// OptionPunycodeDomains converts the non-ASCII domains in the domain
	// triggers into their ASCII-compatible form.
	OptionPunycodeDomains

	// OptionsAll are all compile options.
	OptionsAll = OptionStripCosmeticFilters | OptionPunycodeDomains
)

// Has returns true if o contains all of the flags in other.
func (o CompileOptions) Has(other CompileOptions) (ok bool) {
	return o&other == other
}
