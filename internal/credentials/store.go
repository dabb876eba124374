// internal/credentials/store.go
package credentials

import (
	"context"
	"errors"
	"time"
)

// ScopeType distinguishes the two authorization scopes the platform issues
// tokens for.
type ScopeType string

const (
	ScopeAgency   ScopeType = "agency"
	ScopeLocation ScopeType = "location"
)

var ErrNotFound = errors.New("credentials: record not found")

// Record is the live credential set for one (scope type, scope id) pair.
// At most one record exists per pair. Records are never deleted
// automatically; removal is a manual maintenance action.
type Record struct {
	ScopeType    ScopeType
	ScopeID      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CompanyID    string // owning agency, for location-scoped records
	MenuID       string // cached custom-menu id, agency records only
	UpdatedAt    time.Time
}

// Patch carries only the fields a writer wants to change; nil fields are
// left untouched by Upsert. A Patch whose RefreshToken points at an empty
// string is ignored by every implementation — a failed refresh must never
// destroy the stored recovery token. MenuID may be cleared by pointing at
// an empty string.
type Patch struct {
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
	CompanyID    *string
	MenuID       *string
}

// apply merges p into r. Shared by the in-memory store and by tests as the
// reference merge semantics.
func (p Patch) apply(r Record) Record {
	if p.AccessToken != nil {
		r.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil && *p.RefreshToken != "" {
		r.RefreshToken = *p.RefreshToken
	}
	if p.ExpiresAt != nil {
		r.ExpiresAt = *p.ExpiresAt
	}
	if p.CompanyID != nil {
		r.CompanyID = *p.CompanyID
	}
	if p.MenuID != nil {
		r.MenuID = *p.MenuID
	}
	r.UpdatedAt = time.Now().UTC()
	return r
}

// Store is the sole persistence boundary for credentials. Upsert is an
// atomic per-key merge-write: concurrent writers interleave last-writer-wins
// per field set, never torn records.
type Store interface {
	Get(ctx context.Context, scope ScopeType, scopeID string) (Record, error)
	Upsert(ctx context.Context, scope ScopeType, scopeID string, p Patch) error
}
