// Package rulestore contains implementations of the content-blocker rule-list
// store.
package rulestore

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/errors"
)

// Type is the type of a rule-list store.
type Type string

// Type values.
const (
	TypeDir  Type = "dir"
	TypeBolt Type = "bolt"
)

// Validate returns an error if t is not a valid store type.
func (t Type) Validate() (err error) {
	switch t {
	case TypeDir, TypeBolt:
		return nil
	default:
		return fmt.Errorf("rule store type: %w: %q", errors.ErrBadEnumValue, t)
	}
}

// validateID returns an error if id cannot be used as a rule-list identifier,
// for example as a file name.
func validateID(id string) (err error) {
	if id == "" {
		return fmt.Errorf("identifier: %w", errors.ErrEmptyValue)
	} else if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("identifier %q: bad characters", id)
	}

	return nil
}

// compile validates the encoded rules and returns the rule list for them.
func compile(id string, encoded []byte) (rl *contentblocker.RuleList, err error) {
	err = validateID(id)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	_, err = contentblocker.DecodeRules(encoded)
	if err != nil {
		return nil, fmt.Errorf("rule list %q: %w", id, err)
	}

	return &contentblocker.RuleList{
		Identifier: id,
		Encoded:    encoded,
	}, nil
}
