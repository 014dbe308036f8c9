package ufengine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlfilter/rules"
)

// cosmeticListID is the filter-list identifier of the cosmetic rules of an
// engine.
const cosmeticListID = networkListID

// scriptletPrefix is the prefix of the content of a scriptlet injection rule.
const scriptletPrefix = "+js("

// isScriptlet returns true if r is a scriptlet injection rule, for example
// "example.org##+js(set-constant, foo, 1)".
func isScriptlet(r *rules.CosmeticRule) (ok bool) {
	return strings.HasPrefix(r.Content, scriptletPrefix) && strings.HasSuffix(r.Content, ")")
}

// isUnrestricted returns true if r has neither permitted nor restricted
// domains.  The text of such rules starts with the rule marker.
func isUnrestricted(r *rules.CosmeticRule) (ok bool) {
	return strings.HasPrefix(r.Text(), "#")
}

// CSS injection rule markers.  urlfilter doesn't support CSS injection rules,
// so these are parsed as element-hiding rules with the corresponding markers
// to reuse the urlfilter domain matching.
const (
	markerStyle          = "#$#"
	markerStyleException = "#@$#"
)

// styleRule is a CSS injection rule, for example
// "example.org#$#.ad { display: none; }".
type styleRule struct {
	// rule is the element-hiding form of the rule, used for domain matching.
	rule *rules.CosmeticRule

	// sel is the CSS selector of the rule.
	sel string

	// style are the CSS declarations of the rule.
	style string
}

// parseStyleRule parses line as a CSS injection rule.  sr is nil if line isn't
// one.
func parseStyleRule(line string) (sr *styleRule, err error) {
	hidingLine := strings.Replace(line, markerStyleException, "#@#", 1)
	if hidingLine == line {
		hidingLine = strings.Replace(line, markerStyle, "##", 1)
	}

	if hidingLine == line {
		return nil, nil
	}

	r, err := rules.NewCosmeticRule(hidingLine, cosmeticListID)
	if err != nil {
		return nil, fmt.Errorf("style rule %q: %w", line, err)
	}

	sel, style, err := parseStyle(r.Content)
	if err != nil {
		return nil, fmt.Errorf("style rule %q: %w", line, err)
	}

	return &styleRule{
		rule:  r,
		sel:   sel,
		style: style,
	}, nil
}

// parseStyle parses the content of a styling rule, for example
// ".ad { display: none; }".
func parseStyle(body string) (sel, style string, err error) {
	open := strings.IndexByte(body, '{')
	if open < 0 || !strings.HasSuffix(body, "}") {
		return "", "", fmt.Errorf("style %q: no declarations block", body)
	}

	sel = strings.TrimSpace(body[:open])
	style = strings.TrimSpace(body[open+1 : len(body)-1])
	if sel == "" || style == "" {
		return "", "", fmt.Errorf("style %q: %w", body, errors.ErrEmptyValue)
	}

	return sel, style, nil
}

// cosmeticIndex is the index of the cosmetic rules of an engine.
type cosmeticIndex struct {
	// classes maps class names to the generic hiding selectors starting with
	// them.
	classes map[string][]string

	// ids maps element ids to the generic hiding selectors starting with them.
	ids map[string][]string

	// genericMisc are the generic hiding selectors that start with neither a
	// class nor an id.
	genericMisc []string

	// specific are the element-hiding rules and exceptions with domains.
	specific []*rules.CosmeticRule

	// styles are the CSS injection rules and their exceptions.
	styles []*styleRule

	// scriptlets are the scriptlet injection rules and their exceptions.
	scriptlets []*rules.CosmeticRule
}

// newCosmeticIndex returns a new empty *cosmeticIndex.
func newCosmeticIndex() (idx *cosmeticIndex) {
	return &cosmeticIndex{
		classes: map[string][]string{},
		ids:     map[string][]string{},
	}
}

// add adds line to the index if it's a cosmetic rule.  ok is false if line
// isn't a valid cosmetic rule.  Generic exceptions, such as "#@#.ad", aren't
// valid cosmetic rules.  Rules of other types urlfilter recognizes, such as
// JavaScript or HTML filtering rules, are accepted and ignored.
func (idx *cosmeticIndex) add(line string) (ok bool) {
	r, err := rules.NewCosmeticRule(line, cosmeticListID)
	if errors.Is(err, rules.ErrUnsupportedRule) {
		return idx.addStyle(line)
	} else if err != nil {
		return false
	}

	if isScriptlet(r) {
		idx.scriptlets = append(idx.scriptlets, r)
	} else {
		idx.addHiding(r)
	}

	return true
}

// addStyle adds line to the index if it's a CSS injection rule.  ok is false
// only if line is an invalid CSS injection rule.
func (idx *cosmeticIndex) addStyle(line string) (ok bool) {
	sr, err := parseStyleRule(line)
	if err != nil {
		return false
	}

	if sr != nil {
		idx.styles = append(idx.styles, sr)
	}

	return true
}

// addHiding adds an element-hiding rule or exception to the index.
func (idx *cosmeticIndex) addHiding(r *rules.CosmeticRule) {
	if r.Whitelist || !isUnrestricted(r) {
		idx.specific = append(idx.specific, r)

		return
	}

	sel := r.Content
	switch key := selectorKey(sel[1:]); {
	case sel[0] == '.' && key != "":
		idx.classes[key] = append(idx.classes[key], sel)
	case sel[0] == '#' && key != "":
		idx.ids[key] = append(idx.ids[key], sel)
	default:
		idx.genericMisc = append(idx.genericMisc, sel)
	}
}

// selectorKey returns the leading CSS identifier of s.
func selectorKey(s string) (key string) {
	i := strings.IndexFunc(s, func(c rune) (stop bool) {
		return !(c == '-' || c == '_' ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c > 0x7f)
	})
	if i < 0 {
		return s
	}

	return s[:i]
}

// model returns the cosmetic filter model for host.  If genericHide is true,
// generic hiding selectors are not included.
func (idx *cosmeticIndex) model(
	host string,
	genericHide bool,
	res *resources,
) (m *adblock.CosmeticFilterModel) {
	hide := container.NewMapSet[string]()
	exceptions := container.NewMapSet[string]()

	if !genericHide {
		for _, sel := range idx.genericMisc {
			hide.Add(sel)
		}
	}

	for _, r := range idx.specific {
		if !r.Match(host) {
			continue
		}

		if r.Whitelist {
			exceptions.Add(r.Content)
		} else {
			hide.Add(r.Content)
		}
	}

	var hideSels []string
	hide.Range(func(sel string) (cont bool) {
		if !exceptions.Has(sel) {
			hideSels = append(hideSels, sel)
		}

		return true
	})

	slices.Sort(hideSels)

	excSels := exceptions.Values()
	slices.Sort(excSels)

	return &adblock.CosmeticFilterModel{
		StyleSelectors: idx.matchingStyles(host),
		InjectedScript: res.injectedScript(idx.matchingScriptlets(host)),
		HideSelectors:  hideSels,
		Exceptions:     excSels,
		GenericHide:    genericHide,
	}
}

// matchingStyles returns the CSS declarations of the style rules for host
// mapped by their selectors.
func (idx *cosmeticIndex) matchingStyles(host string) (styles map[string][]string) {
	excepted := container.NewMapSet[string]()
	for _, sr := range idx.styles {
		if sr.rule.Whitelist && sr.rule.Match(host) {
			excepted.Add(sr.rule.Content)
		}
	}

	styles = map[string][]string{}
	for _, sr := range idx.styles {
		r := sr.rule
		if !r.Whitelist && r.Match(host) && !excepted.Has(r.Content) {
			styles[sr.sel] = append(styles[sr.sel], sr.style)
		}
	}

	return styles
}

// matchingScriptlets returns the scriptlet calls for host in the order of
// their rules.
func (idx *cosmeticIndex) matchingScriptlets(host string) (calls []string) {
	excepted := container.NewMapSet[string]()
	for _, r := range idx.scriptlets {
		if r.Whitelist && r.Match(host) {
			excepted.Add(r.Content)
		}
	}

	for _, r := range idx.scriptlets {
		if !r.Whitelist && r.Match(host) && !excepted.Has(r.Content) {
			calls = append(calls, r.Content)
		}
	}

	return calls
}

// hiddenSelectors returns the sorted generic selectors for the given classes
// and ids, except those in exceptions.
func (idx *cosmeticIndex) hiddenSelectors(classes, ids, exceptions []string) (sels []string) {
	set := container.NewMapSet[string]()
	for _, c := range classes {
		for _, sel := range idx.classes[c] {
			set.Add(sel)
		}
	}

	for _, id := range ids {
		for _, sel := range idx.ids[id] {
			set.Add(sel)
		}
	}

	set.Range(func(sel string) (cont bool) {
		if !slices.Contains(exceptions, sel) {
			sels = append(sels, sel)
		}

		return true
	})

	slices.Sort(sels)

	return sels
}

// hostname returns the lowercase hostname of the URL in u, or an empty string
// if there is none.
func hostname(u string) (host string) {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Hostname())
}

// mustMarshal returns the JSON encoding of v.  It panics on errors, since v is
// always one of the types known to be encodable.
func mustMarshal(v any) (data []byte) {
	return errors.Must(json.Marshal(v))
}
