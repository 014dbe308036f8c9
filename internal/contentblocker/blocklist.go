package contentblocker

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// GenericCategory is the category of a bundled generic rule list.
type GenericCategory uint8

// GenericCategory values.  Keep in sync with [AllGenericCategories].
const (
	CategoryBlockAds GenericCategory = iota + 1
	CategoryBlockCookies
	CategoryBlockTrackers
	CategoryUpgradeMixedContent
)

// AllGenericCategories are all valid generic categories.
var AllGenericCategories = []GenericCategory{
	CategoryBlockAds,
	CategoryBlockCookies,
	CategoryBlockTrackers,
	CategoryUpgradeMixedContent,
}

// BundledFileName returns the name of the bundled rules file of the category
// without the extension.
func (c GenericCategory) BundledFileName() (name string) {
	switch c {
	case CategoryBlockAds:
		return "block-ads"
	case CategoryBlockCookies:
		return "block-cookies"
	case CategoryBlockTrackers:
		return "block-trackers"
	case CategoryUpgradeMixedContent:
		return "mixed-content-upgrade"
	default:
		panic(fmt.Errorf("generic category: %w: %d", errors.ErrBadEnumValue, c))
	}
}

// Mode returns the blocking mode of the category.
func (c GenericCategory) Mode(isAggressive bool) (m BlockingMode) {
	switch c {
	case CategoryBlockAds:
		return aggressiveOrStandard(isAggressive)
	case CategoryBlockCookies, CategoryBlockTrackers, CategoryUpgradeMixedContent:
		return ModeGeneral
	default:
		panic(fmt.Errorf("generic category: %w: %d", errors.ErrBadEnumValue, c))
	}
}

// ParseGenericCategory returns the category with the bundled file name.
func ParseGenericCategory(name string) (c GenericCategory, err error) {
	for _, c = range AllGenericCategories {
		if c.BundledFileName() == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("generic category: %w: %q", errors.ErrBadEnumValue, name)
}

// aggressiveOrStandard returns [ModeAggressive] if isAggressive is true and
// [ModeStandard] otherwise.
func aggressiveOrStandard(isAggressive bool) (m BlockingMode) {
	if isAggressive {
		return ModeAggressive
	}

	return ModeStandard
}

// BlocklistKind is the kind of a [BlocklistType].
type BlocklistKind uint8

// BlocklistKind values.
const (
	BlocklistKindGeneric BlocklistKind = iota + 1
	BlocklistKindFilterList
	BlocklistKindCustomFilterList
)

// Identifier prefixes.
const (
	prefixGeneric          = "stored-type"
	prefixFilterList       = "filter-list"
	prefixCustomFilterList = "filter-list-url"
)

// BlocklistType identifies a content-blocker rule list.  It is comparable and
// is used as a map key.
type BlocklistType struct {
	// ID is the component ID for [BlocklistKindFilterList] and the UUID for
	// [BlocklistKindCustomFilterList].
	ID string

	// Kind is the kind of the rule list.
	Kind BlocklistKind

	// Category is the category for [BlocklistKindGeneric].
	Category GenericCategory

	// AlwaysAggressive is true if a [BlocklistKindFilterList] rule list is
	// compiled in the aggressive mode regardless of the user setting.
	AlwaysAggressive bool
}

// Generic returns the type of a bundled generic rule list.
func Generic(c GenericCategory) (typ BlocklistType) {
	return BlocklistType{
		Kind:     BlocklistKindGeneric,
		Category: c,
	}
}

// FilterList returns the type of a rule list converted from a component
// filter list.
func FilterList(componentID string, alwaysAggressive bool) (typ BlocklistType) {
	return BlocklistType{
		ID:               componentID,
		Kind:             BlocklistKindFilterList,
		AlwaysAggressive: alwaysAggressive,
	}
}

// CustomFilterList returns the type of a rule list converted from a
// user-provided filter list.
func CustomFilterList(uuid string) (typ BlocklistType) {
	return BlocklistType{
		ID:   uuid,
		Kind: BlocklistKindCustomFilterList,
	}
}

// Identifier returns the base identifier of the rule list, which is also the
// identifier of its [ModeGeneral] variant.
func (t BlocklistType) Identifier() (id string) {
	switch t.Kind {
	case BlocklistKindGeneric:
		return prefixGeneric + "-" + t.Category.BundledFileName()
	case BlocklistKindFilterList:
		return prefixFilterList + "-" + t.ID
	case BlocklistKindCustomFilterList:
		return prefixCustomFilterList + "-" + t.ID
	default:
		panic(fmt.Errorf("blocklist kind: %w: %d", errors.ErrBadEnumValue, t.Kind))
	}
}

// String implements the [fmt.Stringer] interface for BlocklistType.
func (t BlocklistType) String() (s string) {
	return t.Identifier()
}

// Mode returns the blocking mode of the rule list for the user setting.
func (t BlocklistType) Mode(isAggressive bool) (m BlockingMode) {
	switch t.Kind {
	case BlocklistKindGeneric:
		return t.Category.Mode(isAggressive)
	case BlocklistKindFilterList:
		return aggressiveOrStandard(t.AlwaysAggressive || isAggressive)
	case BlocklistKindCustomFilterList:
		return ModeGeneral
	default:
		panic(fmt.Errorf("blocklist kind: %w: %d", errors.ErrBadEnumValue, t.Kind))
	}
}

// AllowedModes returns the modes the rule list can be compiled in, in the
// canonical order.  modes always contains one or two elements.
func (t BlocklistType) AllowedModes() (modes []BlockingMode) {
	aggr, std := t.Mode(true), t.Mode(false)
	for _, m := range AllModes {
		if m == aggr || m == std {
			modes = append(modes, m)
		}
	}

	return modes
}

// MakeIdentifier returns the identifier of the variant of the rule list for
// the mode.
func (t BlocklistType) MakeIdentifier(m BlockingMode) (id string) {
	switch m {
	case ModeGeneral:
		return t.Identifier()
	case ModeStandard:
		return t.Identifier() + "-standard"
	case ModeAggressive:
		return t.Identifier() + "-aggressive"
	default:
		panic(fmt.Errorf("blocking mode: %w: %d", errors.ErrBadEnumValue, m))
	}
}
