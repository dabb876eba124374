// internal/locations/memory.go
package locations

import (
	"context"
	"sync"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	byID map[string]Summary
}

func NewMemoryStore() Store {
	return &memStore{byID: map[string]Summary{}}
}

func (m *memStore) Upsert(ctx context.Context, s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	m.byID[s.LocationID] = s
	return nil
}

func (m *memStore) CountInstalled(ctx context.Context, agencyID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.byID {
		if s.AgencyID == agencyID && s.Installed {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListByAgency(ctx context.Context, agencyID string) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, s := range m.byID {
		if s.AgencyID == agencyID {
			out = append(out, s)
		}
	}
	return out, nil
}
