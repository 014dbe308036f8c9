package adblock

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CosmeticFilterModel is the set of cosmetic resources for a single frame URL,
// as returned by [Engine.CosmeticResources].
type CosmeticFilterModel struct {
	// StyleSelectors maps selectors to the CSS declarations applied to the
	// matching elements.
	StyleSelectors map[string][]string `json:"style_selectors"`

	// InjectedScript is the scriptlet source to inject into the frame.  It is
	// empty if there are no scriptlets for the frame.
	InjectedScript string `json:"injected_script"`

	// HideSelectors are the selectors of the elements to hide.
	HideSelectors []string `json:"hide_selectors"`

	// Exceptions are the selectors that must not be hidden by the generic
	// rules.
	Exceptions []string `json:"exceptions"`

	// GenericHide is true if the generic cosmetic rules are disabled for the
	// frame.
	GenericHide bool `json:"generichide"`
}

// DecodeCosmeticFilterModel decodes the engine output for a frame.  m is nil
// if data is empty or a JSON null.
func DecodeCosmeticFilterModel(data []byte) (m *CosmeticFilterModel, err error) {
	if isNull(data) {
		return nil, nil
	}

	m = &CosmeticFilterModel{}
	err = json.Unmarshal(data, m)
	if err != nil {
		return nil, fmt.Errorf("decoding cosmetic filter model: %w", err)
	}

	return m, nil
}

// DecodeSelectors decodes the JSON array of selectors returned by
// [Engine.HiddenSelectors].  sels is nil if data is empty or a JSON null.
func DecodeSelectors(data []byte) (sels []string, err error) {
	if isNull(data) {
		return nil, nil
	}

	err = json.Unmarshal(data, &sels)
	if err != nil {
		return nil, fmt.Errorf("decoding selectors: %w", err)
	}

	return sels, nil
}

// isNull returns true if data is empty or contains only a JSON null.
func isNull(data []byte) (ok bool) {
	data = bytes.TrimSpace(data)

	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}
