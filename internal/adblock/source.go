package adblock

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/errors"
)

// SourceKind is the kind of a filter-list [Source].
type SourceKind uint8

// SourceKind values.
const (
	SourceKindAdBlock SourceKind = iota + 1
	SourceKindFilterList
	SourceKindFilterListURL
)

// type check
var _ fmt.Stringer = SourceKind(0)

// String implements the [fmt.Stringer] interface for SourceKind.
func (k SourceKind) String() (s string) {
	switch k {
	case SourceKindAdBlock:
		return "adBlock"
	case SourceKindFilterList:
		return "filterList"
	case SourceKindFilterListURL:
		return "filterListURL"
	default:
		return fmt.Sprintf("!bad_source_kind_%d", uint8(k))
	}
}

// Source identifies the provenance of a single filter list.  It is comparable
// and is used as a map key.
type Source struct {
	// ID is the component ID for [SourceKindFilterList], the UUID for
	// [SourceKindFilterListURL], and empty for [SourceKindAdBlock].
	ID string

	// Kind is the kind of the source.
	Kind SourceKind
}

// SourceAdBlock returns the source of the builtin ad-blocking filter list.
func SourceAdBlock() (s Source) {
	return Source{
		Kind: SourceKindAdBlock,
	}
}

// SourceFilterList returns the source of a regional or component filter list.
func SourceFilterList(componentID string) (s Source) {
	return Source{
		ID:   componentID,
		Kind: SourceKindFilterList,
	}
}

// SourceFilterListURL returns the source of a user-provided filter list.
func SourceFilterListURL(uuid string) (s Source) {
	return Source{
		ID:   uuid,
		Kind: SourceKindFilterListURL,
	}
}

// type check
var _ fmt.Stringer = Source{}

// String implements the [fmt.Stringer] interface for Source.
func (s Source) String() (str string) {
	switch s.Kind {
	case SourceKindAdBlock:
		return s.Kind.String()
	case SourceKindFilterList, SourceKindFilterListURL:
		return sourcePrefixes[s.Kind] + s.ID + ")"
	default:
		return s.Kind.String()
	}
}

// ParseSource parses a source from its string representation, as returned by
// [Source.String].
func ParseSource(str string) (s Source, err error) {
	if str == "adBlock" {
		return SourceAdBlock(), nil
	}

	for _, kind := range []SourceKind{SourceKindFilterListURL, SourceKindFilterList} {
		prefix := sourcePrefixes[kind]
		id, ok := strings.CutPrefix(str, prefix)
		if !ok {
			continue
		}

		id, ok = strings.CutSuffix(id, ")")
		if !ok || id == "" {
			break
		}

		return Source{
			ID:   id,
			Kind: kind,
		}, nil
	}

	return Source{}, fmt.Errorf("source %q: %w", str, errors.ErrBadEnumValue)
}

// sourcePrefixes are the prefixes of the string representations of sources
// with identifiers.
var sourcePrefixes = map[SourceKind]string{
	SourceKindFilterList:    "filterList(",
	SourceKindFilterListURL: "filterListURL(",
}

// FileFormat is the format of a filter-list file.
type FileFormat string

// FileFormat values.
const (
	// FileFormatText is the rule-list text format.
	FileFormatText FileFormat = "text"

	// FileFormatDat is the serialized engine format.
	FileFormatDat FileFormat = "dat"
)

// Validate returns an error if f is not a valid file format.
func (f FileFormat) Validate() (err error) {
	switch f {
	case FileFormatText, FileFormatDat:
		return nil
	default:
		return fmt.Errorf("file format: %w: %q", errors.ErrBadEnumValue, f)
	}
}

// FilterListInfo describes a downloaded or bundled filter list.  It is
// immutable and is replaced wholesale on update.
type FilterListInfo struct {
	// Source is the provenance of the filter list.
	Source Source

	// FileLocation is the path to the filter-list file.
	FileLocation string

	// RuleListLocation is the optional path to the content-blocker JSON rules
	// converted from the same filter list.  If set, the missing content-blocker
	// rule lists are compiled from it after the engine is compiled.
	RuleListLocation string

	// Format is the format of the file at FileLocation.
	Format FileFormat

	// Version is the modification time of the file at FileLocation in Unix
	// nanoseconds, if known.  Infos that only differ in the version describe
	// different contents of the same file.
	Version int64
}

// String implements the [fmt.Stringer] interface for *FilterListInfo.
func (i *FilterListInfo) String() (s string) {
	return i.Source.String()
}

// BlocklistType returns the content-blocker type of the filter list.  ok is
// false if there is no content blocker for the source.
func (i *FilterListInfo) BlocklistType() (typ contentblocker.BlocklistType, ok bool) {
	switch i.Source.Kind {
	case SourceKindAdBlock:
		// The builtin list is covered by the bundled block-ads content blocker.
		return contentblocker.BlocklistType{}, false
	case SourceKindFilterList:
		return contentblocker.FilterList(i.Source.ID, true), true
	case SourceKindFilterListURL:
		return contentblocker.CustomFilterList(i.Source.ID), true
	default:
		panic(fmt.Errorf("source kind: %w: %d", errors.ErrBadEnumValue, i.Source.Kind))
	}
}

// ResourcesInfo describes the shared file with the redirect and scriptlet
// resources used by all engines.
type ResourcesInfo struct {
	// FileLocation is the path to the resources JSON file.
	FileLocation string
}
