// internal/locations/store.go
package locations

import (
	"context"
	"time"
)

// Summary is the locally-cached view of one location's install state. It can
// lag the platform (a location may uninstall upstream with no webhook ever
// arriving), which is why the reconciler prefers the upstream list.
type Summary struct {
	LocationID  string
	DisplayName string
	Installed   bool
	AgencyID    string
	UpdatedAt   time.Time
}

type Store interface {
	Upsert(ctx context.Context, s Summary) error
	CountInstalled(ctx context.Context, agencyID string) (int, error)
	ListByAgency(ctx context.Context, agencyID string) ([]Summary, error)
}
