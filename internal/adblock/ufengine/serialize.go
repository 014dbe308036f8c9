package ufengine

import (
	"bytes"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdurlflt"
)

// datMagic is the header of the serialized engine data.
var datMagic = []byte("UFENGINE\x00\x01\n")

// Serialize returns the serialized form of the rules of e, which can be loaded
// with [Engine.Deserialize].
func (e *Engine) Serialize() (data []byte) {
	rules := agdurlflt.RulesToBytes(e.lines)
	data = make([]byte, 0, len(datMagic)+len(rules))
	data = append(data, datMagic...)

	return append(data, rules...)
}

// Deserialize implements the [adblock.Engine] interface for *Engine.  The
// resources of e are kept.
func (e *Engine) Deserialize(data []byte) (ok bool) {
	text, ok := bytes.CutPrefix(data, datMagic)
	if !ok {
		return false
	}

	return e.load(text) == nil
}
