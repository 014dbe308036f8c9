package contentblocker

import "context"

// RuleList is a compiled platform rule list.
type RuleList struct {
	// Identifier is the identifier the rule list was compiled for.
	Identifier string

	// Encoded is the JSON-encoded rule array the rule list was compiled from.
	Encoded []byte
}

// Store is the platform rule-list store.  All methods must be safe for
// concurrent use.
type Store interface {
	// Compile compiles the encoded rules and stores the result under id,
	// replacing the previous rule list, if any.
	Compile(ctx context.Context, id string, encoded []byte) (rl *RuleList, err error)

	// Lookup returns the rule list stored under id.  rl and err are nil if
	// there is none.
	Lookup(ctx context.Context, id string) (rl *RuleList, err error)

	// Remove removes the rule list stored under id.  It returns nil if there
	// is none.
	Remove(ctx context.Context, id string) (err error)
}
