package adblock

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
)

// ScriptKind is the kind of a user script injected into a page.
type ScriptKind uint8

// ScriptKind values.
const (
	// ScriptKindGPC is the Global Privacy Control script.
	ScriptKindGPC ScriptKind = iota + 1

	// ScriptKindEngine is a script with the scriptlets from an engine.
	ScriptKindEngine
)

// String implements the [fmt.Stringer] interface for ScriptKind.
func (k ScriptKind) String() (s string) {
	switch k {
	case ScriptKindGPC:
		return "gpc"
	case ScriptKindEngine:
		return "engineScript"
	default:
		return fmt.Sprintf("!bad_script_kind_%d", k)
	}
}

// EngineScriptConfig is the configuration of an engine script for a frame.
type EngineScriptConfig struct {
	// FrameURL is the URL of the frame the script is injected into.
	FrameURL string `json:"frame_url"`

	// Source is the scriptlet source code.
	Source string `json:"source"`

	// Order is the position of the engine that produced the script among the
	// enabled engines.
	Order int `json:"order"`

	// IsMainFrame is true if the frame is the main frame of the page.
	IsMainFrame bool `json:"is_main_frame"`

	// IsDeAMPEnabled is true if the AMP pages must be redirected to the
	// canonical ones.
	IsDeAMPEnabled bool `json:"is_deamp_enabled"`
}

// ScriptType is a user script to inject into a page.  It is comparable and is
// used as a set element.
type ScriptType struct {
	// Engine is the configuration of the script for [ScriptKindEngine].
	Engine EngineScriptConfig

	// Kind is the kind of the script.
	Kind ScriptKind

	// GPC is the Global Privacy Control value for [ScriptKindGPC].
	GPC bool
}

// ScriptTypeGPC returns the Global Privacy Control script type.
func ScriptTypeGPC(enabled bool) (st ScriptType) {
	return ScriptType{
		Kind: ScriptKindGPC,
		GPC:  enabled,
	}
}

// ScriptTypeEngine returns an engine script type.
func ScriptTypeEngine(c EngineScriptConfig) (st ScriptType) {
	return ScriptType{
		Engine: c,
		Kind:   ScriptKindEngine,
	}
}

// scriptTypeJSON is the JSON representation of a [ScriptType].
type scriptTypeJSON struct {
	Engine *EngineScriptConfig `json:"engine,omitempty"`
	GPC    *bool               `json:"gpc,omitempty"`
	Kind   string              `json:"kind"`
}

// type check
var _ json.Marshaler = ScriptType{}

// MarshalJSON implements the [json.Marshaler] interface for ScriptType.
func (st ScriptType) MarshalJSON() (b []byte, err error) {
	v := &scriptTypeJSON{
		Kind: st.Kind.String(),
	}

	switch st.Kind {
	case ScriptKindGPC:
		v.GPC = &st.GPC
	case ScriptKindEngine:
		v.Engine = &st.Engine
	default:
		return nil, fmt.Errorf("script kind: %w: %d", errors.ErrBadEnumValue, st.Kind)
	}

	return json.Marshal(v)
}

// ScriptTypes is a set of user scripts.
type ScriptTypes = container.MapSet[ScriptType]

// NewScriptTypes returns a new set of user scripts containing sts.
func NewScriptTypes(sts ...ScriptType) (set *ScriptTypes) {
	return container.NewMapSet(sts...)
}

// SortedScriptTypes returns the elements of set in a stable order: by kind,
// then by order, then by frame URL.
func SortedScriptTypes(set *ScriptTypes) (sts []ScriptType) {
	set.Range(func(st ScriptType) (cont bool) {
		sts = append(sts, st)

		return true
	})

	slices.SortFunc(sts, func(a, b ScriptType) (res int) {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Engine.Order, b.Engine.Order),
			cmp.Compare(a.Engine.FrameURL, b.Engine.FrameURL),
			cmp.Compare(a.Engine.Source, b.Engine.Source),
		)
	})

	return sts
}
