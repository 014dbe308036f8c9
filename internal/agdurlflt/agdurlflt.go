// Package agdurlflt contains utilities for working with filter-list text in the
// format used by the urlfilter module.
package agdurlflt

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// RulesLen returns the length of the byte buffer necessary to write ruleStrs,
// separated by a newline, to it.
func RulesLen[S ~string](ruleStrs []S) (l int) {
	if len(ruleStrs) == 0 {
		return 0
	}

	for _, s := range ruleStrs {
		l += len(s) + len("\n")
	}

	return l
}

// RulesToBytes writes ruleStrs to a byte slice and returns it.
func RulesToBytes[S ~string](ruleStrs []S) (b []byte) {
	l := RulesLen(ruleStrs)
	if l == 0 {
		return nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, l))
	for _, s := range ruleStrs {
		_, _ = buf.WriteString(string(s))
		_ = buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// NonEmptyLines returns the lines of text with the surrounding whitespace
// removed, skipping the empty ones.  maxLineLen is the maximum length of a
// line, it must be positive.
func NonEmptyLines(text []byte, maxLineLen int) (lines []string, err error) {
	s := bufio.NewScanner(bytes.NewReader(text))
	s.Buffer(nil, maxLineLen)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}

	err = s.Err()
	if err != nil {
		return nil, fmt.Errorf("scanning rules: %w", err)
	}

	return lines, nil
}
