package adblock

import (
	"encoding"
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// ResourceType is the type of a requested resource.
type ResourceType string

// ResourceType values.
const (
	ResourceTypeXMLHTTPRequest ResourceType = "xmlhttprequest"
	ResourceTypeScript         ResourceType = "script"
	ResourceTypeImage          ResourceType = "image"
	ResourceTypeSubdocument    ResourceType = "subdocument"
)

// Validate returns an error if rt is not a known resource type.
func (rt ResourceType) Validate() (err error) {
	switch rt {
	case
		ResourceTypeXMLHTTPRequest,
		ResourceTypeScript,
		ResourceTypeImage,
		ResourceTypeSubdocument:
		return nil
	default:
		return fmt.Errorf("resource type: %w: %q", errors.ErrBadEnumValue, rt)
	}
}

// type check
var _ encoding.TextUnmarshaler = (*ResourceType)(nil)

// UnmarshalText implements the [encoding.TextUnmarshaler] interface for
// *ResourceType.
func (rt *ResourceType) UnmarshalText(b []byte) (err error) {
	v := ResourceType(b)
	err = v.Validate()
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	*rt = v

	return nil
}
