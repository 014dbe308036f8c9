// Package agdtest contains simple mocks for common interfaces and other test
// utilities.
package agdtest

import (
	"context"
	"sync"
	"testing"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/testutil"
)

// NewErrorCollector returns a new *ErrorCollector all methods of which panic.
func NewErrorCollector() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, err error) { panic(testutil.UnexpectedCall(err)) },
	}
}

// NewErrorCollectorNop returns a new *ErrorCollector that ignores all errors.
func NewErrorCollectorNop() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, _ error) {},
	}
}

// MemoryRuleStore is a thread-safe in-memory [contentblocker.Store] for tests
// that records the compiled rules.
type MemoryRuleStore struct {
	mu    *sync.Mutex
	lists map[string]*contentblocker.RuleList

	compiles int
}

// NewMemoryRuleStore returns a new empty *MemoryRuleStore.
func NewMemoryRuleStore(tb testing.TB) (s *MemoryRuleStore) {
	tb.Helper()

	return &MemoryRuleStore{
		mu:    &sync.Mutex{},
		lists: map[string]*contentblocker.RuleList{},
	}
}

// type check
var _ contentblocker.Store = (*MemoryRuleStore)(nil)

// Compile implements the [contentblocker.Store] interface for
// *MemoryRuleStore.
func (s *MemoryRuleStore) Compile(
	_ context.Context,
	id string,
	encoded []byte,
) (rl *contentblocker.RuleList, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rl = &contentblocker.RuleList{
		Identifier: id,
		Encoded:    encoded,
	}

	s.lists[id] = rl
	s.compiles++

	return rl, nil
}

// Lookup implements the [contentblocker.Store] interface for
// *MemoryRuleStore.
func (s *MemoryRuleStore) Lookup(_ context.Context, id string) (rl *contentblocker.RuleList, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lists[id], nil
}

// Remove implements the [contentblocker.Store] interface for
// *MemoryRuleStore.
func (s *MemoryRuleStore) Remove(_ context.Context, id string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lists, id)

	return nil
}

// Compiles returns the number of compilations performed by s.
func (s *MemoryRuleStore) Compiles() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.compiles
}
