package contentblocker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/idna"
)

// Rule is a single content-blocker rule.  Unknown fields are preserved.
type Rule = map[string]any

// Rule field names and values.
const (
	fieldAction       = "action"
	fieldIfDomain     = "if-domain"
	fieldLoadType     = "load-type"
	fieldResourceType = "resource-type"
	fieldSelector     = "selector"
	fieldTrigger      = "trigger"
	fieldType         = "type"
	fieldUnlessDomain = "unless-domain"
	fieldURLFilter    = "url-filter"

	actionIgnorePreviousRules = "ignore-previous-rules"
	loadTypeFirstParty        = "first-party"
	urlFilterAll              = ".*"
)

// DecodeRules decodes the JSON array of rule objects.  Numbers are kept as
// [json.Number] so that they are encoded back without changes.
func DecodeRules(encoded []byte) (rules []Rule, err error) {
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()

	var arr []any
	err = dec.Decode(&arr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSONArray, err)
	}

	if arr == nil {
		// The top-level value is a JSON null.
		return nil, ErrInvalidJSONArray
	}

	rules = make([]Rule, 0, len(arr))
	for i, v := range arr {
		r, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rule at index %d: %w", i, ErrInvalidJSONArray)
		}

		rules = append(rules, r)
	}

	return rules, nil
}

// EncodeRules encodes rules into a JSON array.  HTML characters are not
// escaped.
func EncodeRules(rules []Rule) (encoded []byte, err error) {
	if rules == nil {
		rules = []Rule{}
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	err = enc.Encode(rules)
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// newFirstPartyException returns a new rule that makes the engine ignore all
// previous rules for first-party requests.
func newFirstPartyException() (r Rule) {
	return Rule{
		fieldAction: map[string]any{
			fieldType: actionIgnorePreviousRules,
		},
		fieldTrigger: map[string]any{
			fieldURLFilter: urlFilterAll,
			fieldLoadType:  []any{loadTypeFirstParty},
		},
	}
}

// isFirstPartyException returns true if r ignores all previous rules for all
// first-party requests of any resource type.
func isFirstPartyException(r Rule) (ok bool) {
	action, ok := r[fieldAction].(map[string]any)
	if !ok || action[fieldType] != actionIgnorePreviousRules {
		return false
	}

	trigger, ok := r[fieldTrigger].(map[string]any)
	if !ok || trigger[fieldURLFilter] != urlFilterAll || trigger[fieldResourceType] != nil {
		return false
	}

	loadType, ok := trigger[fieldLoadType].([]any)

	return ok && len(loadType) == 1 && loadType[0] == loadTypeFirstParty
}

// SetMode returns the variant of rules for the mode.  Only the last rule is
// considered: [ModeAggressive] removes the first-party exception if it is the
// last rule, [ModeStandard] appends one if it is not, and [ModeGeneral] keeps
// the rules as is.  Empty rules are returned unchanged.  rules are never
// modified.
func SetMode(m BlockingMode, rules []Rule) (res []Rule) {
	if len(rules) == 0 {
		return rules
	}

	last := rules[len(rules)-1]
	switch m {
	case ModeAggressive:
		if !isFirstPartyException(last) {
			return rules
		}

		return rules[:len(rules)-1:len(rules)-1]
	case ModeStandard:
		if isFirstPartyException(last) {
			return rules
		}

		return append(slices.Clip(rules), newFirstPartyException())
	case ModeGeneral:
		return rules
	default:
		panic(fmt.Errorf("blocking mode: %w: %d", errors.ErrBadEnumValue, m))
	}
}

// stripCosmeticFilters returns the rules without the ones that have a selector
// in their action.
func stripCosmeticFilters(rules []Rule) (res []Rule) {
	return slices.DeleteFunc(slices.Clone(rules), func(r Rule) (del bool) {
		action, ok := r[fieldAction].(map[string]any)
		if !ok {
			return false
		}

		_, del = action[fieldSelector]

		return del
	})
}

// punycodeDomains converts the domain triggers of rules into the
// ASCII-compatible form in place.
func punycodeDomains(rules []Rule) {
	for _, r := range rules {
		trigger, ok := r[fieldTrigger].(map[string]any)
		if !ok {
			continue
		}

		for _, field := range []string{fieldIfDomain, fieldUnlessDomain} {
			domains, isStrings := toStrings(trigger[field])
			if isStrings {
				trigger[field] = PunycodeConversion(domains)
			}
		}
	}
}

// toStrings returns v as a slice of strings.  ok is false if v is not a JSON
// array of strings.
func toStrings(v any) (strs []string, ok bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}

	strs = make([]string, 0, len(arr))
	for _, elem := range arr {
		var s string
		s, ok = elem.(string)
		if !ok {
			return nil, false
		}

		strs = append(strs, s)
	}

	return strs, true
}

// PunycodeConversion returns domains with the non-ASCII ones converted into
// their ASCII-compatible form.  ASCII domains are kept byte-identical, and the
// domains that cannot be converted are dropped.  A leading "*" wildcard is
// preserved.
func PunycodeConversion(domains []string) (res []any) {
	res = make([]any, 0, len(domains))
	for _, d := range domains {
		if isASCII(d) {
			res = append(res, d)

			continue
		}

		wildcard, host := "", d
		if rest, ok := strings.CutPrefix(d, "*"); ok {
			wildcard, host = "*", rest
		}

		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			continue
		}

		res = append(res, wildcard+ascii)
	}

	return res
}

// isASCII returns true if s only contains ASCII characters.
func isASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
