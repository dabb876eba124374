// internal/menus/manager.go
package menus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/internal/locations"
	"d4d/pkg/platform"
)

// Outcome of a menu reconcile pass.
type Outcome string

const (
	OutcomeKept     Outcome = "kept_menu"              // installs still exist and not forced
	OutcomeRemoved  Outcome = "removed"                // menu deleted (404 folded in)
	OutcomeNotFound Outcome = "not_found"              // no matching menu existed
	OutcomePending  Outcome = "pending_manual_removal" // no usable token to act
)

// Result pairs the outcome with the install status that drove the decision.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Installed locations.Status
}

type tokenSource interface {
	GetValidAccessToken(ctx context.Context, scope credentials.ScopeType, scopeID string) (string, error)
}

type menuAPI interface {
	ListMenus(ctx context.Context, accessToken string) ([]platform.Menu, error)
	DeleteMenu(ctx context.Context, accessToken, id string) error
}

type installChecker interface {
	AgencyInstalledFresh(ctx context.Context, agencyID string) (locations.Status, error)
}

// Manager owns the single well-known custom menu per agency. Reconcile is
// idempotent: deleting an already-gone menu succeeds, and a menu a live
// tenant still needs is never touched unless forced.
type Manager struct {
	creds    credentials.Store
	tokens   tokenSource
	api      menuAPI
	installs installChecker
	title    string
	baseURL  string
	log      *zap.SugaredLogger
}

func NewManager(creds credentials.Store, tokens tokenSource, api menuAPI, installs installChecker, title, baseURL string, log *zap.SugaredLogger) *Manager {
	return &Manager{
		creds:    creds,
		tokens:   tokens,
		api:      api,
		installs: installs,
		title:    title,
		baseURL:  baseURL,
		log:      log,
	}
}

// matches identifies "our" menu. Title alone is not a safe unique key across
// tenants, so the URL prefix is required as well.
func (m *Manager) matches(menu platform.Menu) bool {
	return menu.Title == m.title && m.baseURL != "" && strings.HasPrefix(menu.URL, m.baseURL)
}

// Reconcile decides whether the agency's menu must be removed and removes it
// when so. No retries happen inside a single call; transient failures are
// returned and recovery is the caller re-invoking.
func (m *Manager) Reconcile(ctx context.Context, agencyID string, force bool) (Result, error) {
	// Always a live read. A stale cached count here could remove the menu
	// of an agency that installed moments ago.
	st, err := m.installs.AgencyInstalledFresh(ctx, agencyID)
	if err != nil {
		return Result{}, fmt.Errorf("menus: install check for %s: %w", agencyID, err)
	}
	if st.Count > 0 && !force {
		return Result{Outcome: OutcomeKept, Installed: st}, nil
	}

	token, err := m.tokens.GetValidAccessToken(ctx, credentials.ScopeAgency, agencyID)
	if err != nil {
		// Deferred, not an error: a human or a later retry handles it.
		m.log.Warnw("no usable agency token, menu removal deferred", "agencyId", agencyID, "err", err)
		return Result{Outcome: OutcomePending, Installed: st}, nil
	}

	id, err := m.resolveMenuID(ctx, agencyID, token)
	if err != nil {
		return Result{}, err
	}
	if id == "" {
		return Result{Outcome: OutcomeNotFound, Installed: st}, nil
	}

	if err := m.api.DeleteMenu(ctx, token, id); err != nil {
		var apiErr *platform.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 404 {
			// Keep the cached id: a transient failure must not lose the last
			// known handle to the menu.
			return Result{}, fmt.Errorf("menus: delete %s: %w", id, err)
		}
		m.log.Infow("menu already gone", "agencyId", agencyID, "menuId", id)
	}
	m.clearCachedID(ctx, agencyID)
	return Result{Outcome: OutcomeRemoved, Installed: st}, nil
}

// resolveMenuID prefers the id cached on the agency's credential record and
// otherwise scans the company-scoped menu list for ours, caching a hit.
func (m *Manager) resolveMenuID(ctx context.Context, agencyID, token string) (string, error) {
	if rec, err := m.creds.Get(ctx, credentials.ScopeAgency, agencyID); err == nil && rec.MenuID != "" {
		return rec.MenuID, nil
	}
	menus, err := m.api.ListMenus(ctx, token)
	if err != nil {
		return "", fmt.Errorf("menus: list for %s: %w", agencyID, err)
	}
	for _, menu := range menus {
		if m.matches(menu) {
			m.cacheID(ctx, agencyID, menu.ID)
			return menu.ID, nil
		}
	}
	return "", nil
}

func (m *Manager) cacheID(ctx context.Context, agencyID, id string) {
	if err := m.creds.Upsert(ctx, credentials.ScopeAgency, agencyID, credentials.Patch{MenuID: &id}); err != nil {
		m.log.Debugw("menu id cache write failed", "agencyId", agencyID, "err", err)
	}
}

func (m *Manager) clearCachedID(ctx context.Context, agencyID string) {
	empty := ""
	if err := m.creds.Upsert(ctx, credentials.ScopeAgency, agencyID, credentials.Patch{MenuID: &empty}); err != nil {
		m.log.Debugw("menu id cache clear failed", "agencyId", agencyID, "err", err)
	}
}
