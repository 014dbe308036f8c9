package domainparser

import (
	"bufio"
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ruleKind is the kind of a public suffix list rule.
type ruleKind uint8

// ruleKind values.
const (
	ruleKindBasic ruleKind = iota
	ruleKindWildcard
	ruleKindException
)

// rule is a single parsed public suffix list rule.
type rule struct {
	// labels are the labels of the rule without the exception mark, in the
	// original order.  The wildcard label is kept as "*".
	labels []string

	kind ruleKind
}

// isMatching returns true if r matches the labels of a host.  The host must
// have at least as many labels as the rule.
func (r *rule) isMatching(hostLabels []string) (ok bool) {
	if len(hostLabels) < len(r.labels) {
		return false
	}

	off := len(hostLabels) - len(r.labels)
	for i, l := range r.labels {
		if l != "*" && l != hostLabels[off+i] {
			return false
		}
	}

	return true
}

// parse returns the parsed host using r, which must match hostLabels.  ph is
// nil if the host is itself a public suffix.
func (r *rule) parse(hostLabels []string) (ph *ParsedHost) {
	suffixLen := len(r.labels)
	if r.kind == ruleKindException {
		suffixLen--
	}

	return newParsedHost(hostLabels, suffixLen)
}

// newParsedHost returns the parsed host for hostLabels, the last suffixLen
// labels of which form the public suffix.  ph is nil if there are no labels
// left for the registrable domain.
func newParsedHost(hostLabels []string, suffixLen int) (ph *ParsedHost) {
	if suffixLen >= len(hostLabels) {
		return nil
	}

	off := len(hostLabels) - suffixLen

	return &ParsedHost{
		PublicSuffix: strings.Join(hostLabels[off:], "."),
		Domain:       strings.Join(hostLabels[off-1:], "."),
	}
}

// parsedRules is the set of rules from a public suffix list file.
type parsedRules struct {
	// basic are the suffixes of the basic rules.
	basic map[string]struct{}

	// exceptions are the exception rules grouped by their last label and
	// sorted from the most specific to the least specific one.
	exceptions map[string][]*rule

	// wildcards are the wildcard rules grouped by their last label and sorted
	// from the most specific to the least specific one.
	wildcards map[string][]*rule
}

// parseRules parses the public suffix list data.
func parseRules(data []byte) (pr *parsedRules, err error) {
	pr = &parsedRules{
		basic:      map[string]struct{}{},
		exceptions: map[string][]*rule{},
		wildcards:  map[string][]*rule{},
	}

	s := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; s.Scan(); lineNum++ {
		err = pr.addLine(s.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	err = s.Err()
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	sortRules(pr.exceptions)
	sortRules(pr.wildcards)

	return pr, nil
}

// addLine parses a single line of the public suffix list and adds the rule
// from it to pr, if there is one.
func (pr *parsedRules) addLine(line string) (err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "//") {
		return nil
	}

	text := strings.ToLower(fields[0])

	r := &rule{
		kind: ruleKindBasic,
	}

	if rest, ok := strings.CutPrefix(text, "!"); ok {
		r.kind = ruleKindException
		text = rest
	} else if strings.Contains(text, "*") {
		r.kind = ruleKindWildcard
	}

	r.labels = strings.Split(text, ".")
	if slices.Contains(r.labels, "") {
		return fmt.Errorf("rule %q: %w", fields[0], errors.ErrEmptyValue)
	}

	last := r.labels[len(r.labels)-1]
	switch r.kind {
	case ruleKindBasic:
		pr.basic[text] = struct{}{}
	case ruleKindWildcard:
		pr.wildcards[last] = append(pr.wildcards[last], r)
	case ruleKindException:
		if len(r.labels) < 2 {
			return fmt.Errorf("exception rule %q: too few labels", fields[0])
		}

		pr.exceptions[last] = append(pr.exceptions[last], r)
	default:
		panic(fmt.Errorf("rule kind: %w: %d", errors.ErrBadEnumValue, r.kind))
	}

	return nil
}

// sortRules sorts every group of rules so that the rules with more labels come
// first.
func sortRules(groups map[string][]*rule) {
	for _, rules := range groups {
		slices.SortStableFunc(rules, func(a, b *rule) (res int) {
			return cmp.Compare(len(b.labels), len(a.labels))
		})
	}
}
