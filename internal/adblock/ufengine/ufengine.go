// Package ufengine contains an [adblock.Engine] implementation based on the
// urlfilter network engine and an index of urlfilter cosmetic rules.
package ufengine

import (
	"fmt"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdurlflt"
	"github.com/AdguardTeam/urlfilter"
	"github.com/AdguardTeam/urlfilter/filterlist"
	"github.com/AdguardTeam/urlfilter/rules"
)

// networkListID is the identifier of the only rule list in the storage of an
// engine.
const networkListID = 1

// Engine is an [adblock.Engine] backed by the urlfilter network engine.  It is
// not safe for concurrent use.
type Engine struct {
	network   *urlfilter.NetworkEngine
	cosmetic  *cosmeticIndex
	resources *resources

	// lines are the rule lines the engine was built from.  They are used for
	// serialization.
	lines []string
}

// New returns a new engine with the rules from text.  text may be empty.
func New(text []byte) (e *Engine, err error) {
	e = &Engine{
		resources: newResources(),
	}

	err = e.load(text)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// load replaces the rules of e with the ones from text.
func (e *Engine) load(text []byte) (err error) {
	all, err := agdurlflt.NonEmptyLines(text, maxLineLen)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	var lines, networkLines []string
	cosmetic := newCosmeticIndex()
	for _, line := range all {
		if isComment(line) {
			continue
		}

		switch {
		case cosmetic.add(line):
			lines = append(lines, line)
		case line[0] == '#':
			// A hosts-file comment or a cosmetic rule urlfilter doesn't
			// accept, such as a generic exception.
		default:
			lines = append(lines, line)
			networkLines = append(networkLines, line)
		}
	}

	lists := []filterlist.Interface{
		filterlist.NewBytes(&filterlist.BytesConfig{
			ID:             networkListID,
			RulesText:      agdurlflt.RulesToBytes(networkLines),
			IgnoreCosmetic: true,
		}),
	}

	strg, err := filterlist.NewRuleStorage(lists)
	if err != nil {
		return fmt.Errorf("creating rule storage: %w", err)
	}

	e.network = urlfilter.NewNetworkEngine(strg)
	e.cosmetic = cosmetic
	e.lines = lines

	return nil
}

// maxLineLen is the maximum length of a single rule line.
const maxLineLen = 64 * 1024

// isComment returns true if line is a filter-list comment or a list header.
func isComment(line string) (ok bool) {
	switch line[0] {
	case '!':
		return true
	case '[':
		return line[len(line)-1] == ']'
	default:
		return false
	}
}

// type check
var _ adblock.Engine = (*Engine)(nil)

// Match implements the [adblock.Engine] interface for *Engine.
func (e *Engine) Match(req *adblock.MatchRequest) (res adblock.MatchResult) {
	r := newRequest(req)

	nr, ok := e.network.Match(r)
	if !ok {
		return adblock.MatchResult{}
	}

	return adblock.MatchResult{
		Matched:   !nr.Whitelist,
		Exception: nr.Whitelist,
		Important: nr.IsOptionEnabled(rules.OptionImportant),
	}
}

// newRequest converts req into a urlfilter request.
func newRequest(req *adblock.MatchRequest) (r *rules.Request) {
	var sourceURL string
	if req.SourceHost != "" {
		sourceURL = "https://" + req.SourceHost + "/"
	}

	r = rules.NewRequest(req.URL, sourceURL, requestType(req.ResourceType))
	r.ThirdParty = req.IsThirdParty

	return r
}

// requestType returns the urlfilter request type for rt.
func requestType(rt adblock.ResourceType) (t rules.RequestType) {
	switch rt {
	case adblock.ResourceTypeXMLHTTPRequest:
		return rules.TypeXmlhttprequest
	case adblock.ResourceTypeScript:
		return rules.TypeScript
	case adblock.ResourceTypeImage:
		return rules.TypeImage
	case adblock.ResourceTypeSubdocument:
		return rules.TypeSubdocument
	default:
		return rules.TypeOther
	}
}

// UseResources implements the [adblock.Engine] interface for *Engine.
// Malformed resources are ignored.
func (e *Engine) UseResources(data []byte) {
	res, err := parseResources(data)
	if err != nil {
		return
	}

	e.resources = res
}

// CosmeticResources implements the [adblock.Engine] interface for *Engine.
func (e *Engine) CosmeticResources(u string) (data []byte) {
	host := hostname(u)
	if host == "" {
		return nil
	}

	return mustMarshal(e.cosmetic.model(host, e.isGenericHide(u), e.resources))
}

// isGenericHide returns true if there is a $generichide exception rule for the
// document at u.
func (e *Engine) isGenericHide(u string) (ok bool) {
	r := rules.NewRequest(u, "", rules.TypeDocument)
	for _, nr := range e.network.MatchAll(r) {
		if nr.Whitelist && nr.IsOptionEnabled(rules.OptionGenerichide) {
			return true
		}
	}

	return false
}

// HiddenSelectors implements the [adblock.Engine] interface for *Engine.
func (e *Engine) HiddenSelectors(classes, ids, exceptions []string) (data []byte) {
	sels := e.cosmetic.hiddenSelectors(classes, ids, exceptions)
	if len(sels) == 0 {
		return nil
	}

	return mustMarshal(sels)
}

// Constructor is an [adblock.EngineConstructor] creating [*Engine] values.
type Constructor struct{}

// type check
var _ adblock.EngineConstructor = Constructor{}

// New implements the [adblock.EngineConstructor] interface for Constructor.
func (Constructor) New(text []byte) (e adblock.Engine, err error) {
	eng, err := New(text)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	return eng, nil
}
