// internal/credentials/memory.go
package credentials

import (
	"context"
	"sync"
)

// memStore is the dev/test implementation. The mutex gives the same atomic
// per-key merge guarantee the Postgres UPSERT provides.
type memStore struct {
	mu   sync.Mutex
	byID map[string]Record
}

func NewMemoryStore() Store {
	return &memStore{byID: map[string]Record{}}
}

func key(scope ScopeType, scopeID string) string {
	return string(scope) + ":" + scopeID
}

func (m *memStore) Get(ctx context.Context, scope ScopeType, scopeID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[key(scope, scopeID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *memStore) Upsert(ctx context.Context, scope ScopeType, scopeID string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(scope, scopeID)
	r, ok := m.byID[k]
	if !ok {
		r = Record{ScopeType: scope, ScopeID: scopeID}
	}
	m.byID[k] = p.apply(r)
	return nil
}
