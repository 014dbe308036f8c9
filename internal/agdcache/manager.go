package agdcache

import (
	"maps"
	"slices"
	"sync"
)

// Manager is the cache manager interface.  Engine handles register their memo
// caches here, so that they can be purged through the debug API.  All methods
// must be safe for concurrent use.
type Manager interface {
	// Add adds cache by id, replacing the previous cache with the same id, if
	// any.  cache must not be nil and must be comparable, for example a
	// pointer.
	Add(id string, cache Clearer)

	// ClearByID clears cache by id.  It must not panic if there is no cache
	// with that id.
	ClearByID(id string)

	// Remove removes cache by id, but only if it is the cache currently
	// registered with that id.  A handle that is being closed after its
	// replacement has registered the caches with the same ids must not
	// unregister the caches of the replacement.  It must not panic if there
	// is no cache with that id.
	Remove(id string, cache Clearer)
}

// DefaultManager implements the [Manager] interface that stores caches and can
// clear them by id.
type DefaultManager struct {
	mu     *sync.Mutex
	caches map[string]Clearer
}

// NewDefaultManager returns a new initialized *DefaultManager.
func NewDefaultManager() (m *DefaultManager) {
	return &DefaultManager{
		mu:     &sync.Mutex{},
		caches: map[string]Clearer{},
	}
}

// type check
var _ Manager = (*DefaultManager)(nil)

// Add implements the [Manager] interface for *DefaultManager.
func (m *DefaultManager) Add(id string, cache Clearer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.caches[id] = cache
}

// ClearByID implements the [Manager] interface for *DefaultManager.  The cache
// is cleared outside of the lock, since clearing a large memo may take a
// while.
func (m *DefaultManager) ClearByID(id string) {
	m.mu.Lock()
	cache := m.caches[id]
	m.mu.Unlock()

	if cache != nil {
		cache.Clear()
	}
}

// Remove implements the [Manager] interface for *DefaultManager.
func (m *DefaultManager) Remove(id string, cache Clearer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.caches[id] == cache {
		delete(m.caches, id)
	}
}

// IDs returns a sorted list of stored cache identifiers.
func (m *DefaultManager) IDs() (ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.caches))
}

// EmptyManager implements the [Manager] interface that does nothing.
type EmptyManager struct{}

// type check
var _ Manager = EmptyManager{}

// Add implements the [Manager] interface for EmptyManager.
func (EmptyManager) Add(_ string, _ Clearer) {}

// ClearByID implements the [Manager] interface for EmptyManager.
func (EmptyManager) ClearByID(_ string) {}

// Remove implements the [Manager] interface for EmptyManager.
func (EmptyManager) Remove(_ string, _ Clearer) {}
