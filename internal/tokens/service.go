// internal/tokens/service.go
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/pkg/platform"
)

// ErrNoRefreshToken means the scope never completed OAuth or was
// disconnected; callers surface it as "needs reconnection". No network call
// is made when this is returned.
var ErrNoRefreshToken = errors.New("tokens: no refresh token for scope")

type platformAPI interface {
	RefreshToken(ctx context.Context, refreshToken, userType string) (platform.TokenResponse, error)
	ExchangeCode(ctx context.Context, code, userType string) (platform.TokenResponse, error)
	Reconnect(ctx context.Context, companyID string) (string, error)
}

// Service implements the token refresh protocol over the credential store.
// Concurrent refreshes for the same scope are tolerated last-writer-wins;
// the store's merge-write keeps records from tearing and upstream issues a
// fresh token pair on next use, so a lost race self-heals.
type Service struct {
	store  credentials.Store
	api    platformAPI
	margin time.Duration
	now    func() time.Time
	log    *zap.SugaredLogger
}

func NewService(store credentials.Store, api platformAPI, margin time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{store: store, api: api, margin: margin, now: time.Now, log: log}
}

func userTypeFor(scope credentials.ScopeType) string {
	if scope == credentials.ScopeAgency {
		return platform.UserTypeCompany
	}
	return platform.UserTypeLocation
}

// GetValidAccessToken returns a usable access token for the scope,
// refreshing through the upstream token endpoint when the cached one is
// within the safety margin of expiry. Upstream rejection surfaces as
// *platform.APIError with the record left intact, preserving the chance of
// manual reconnection.
func (s *Service) GetValidAccessToken(ctx context.Context, scope credentials.ScopeType, scopeID string) (string, error) {
	rec, err := s.store.Get(ctx, scope, scopeID)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("tokens: load record: %w", err)
	}
	if rec.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}
	if rec.AccessToken != "" && s.now().Add(s.margin).Before(rec.ExpiresAt) {
		return rec.AccessToken, nil
	}

	tr, err := s.api.RefreshToken(ctx, rec.RefreshToken, userTypeFor(scope))
	if err != nil {
		s.log.Warnw("token refresh rejected", "scope", scope, "scopeId", scopeID, "err", err)
		return "", err
	}
	exp := s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	patch := credentials.Patch{
		AccessToken: &tr.AccessToken,
		ExpiresAt:   &exp,
	}
	// Rotate the refresh token only when upstream returned one; the store
	// additionally refuses empty overwrites.
	if tr.RefreshToken != "" {
		patch.RefreshToken = &tr.RefreshToken
	}
	if err := s.store.Upsert(ctx, scope, scopeID, patch); err != nil {
		return "", fmt.Errorf("tokens: persist refreshed token: %w", err)
	}
	s.log.Debugw("token refreshed", "scope", scope, "scopeId", scopeID, "expiresAt", exp)
	return tr.AccessToken, nil
}

// HandleInstallCode exchanges a marketplace install code for a full token
// set and creates the credential record for whichever scope the response
// identifies. This is the first-install path.
func (s *Service) HandleInstallCode(ctx context.Context, code string) (credentials.ScopeType, string, error) {
	tr, err := s.api.ExchangeCode(ctx, code, "")
	if err != nil {
		return "", "", fmt.Errorf("tokens: exchange install code: %w", err)
	}
	return s.PersistExchange(ctx, tr, "")
}

// ReconnectCompany is the maintenance-only fallback for agency scope: ask
// the platform for a fresh authorization code keyed by our client
// credentials, then run the ordinary authorization_code grant with the
// Company marker. Never called on the hot path.
func (s *Service) ReconnectCompany(ctx context.Context, agencyID string) error {
	code, err := s.api.Reconnect(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("tokens: reconnect %s: %w", agencyID, err)
	}
	tr, err := s.api.ExchangeCode(ctx, code, platform.UserTypeCompany)
	if err != nil {
		return fmt.Errorf("tokens: exchange reconnect code: %w", err)
	}
	if _, _, err := s.PersistExchange(ctx, tr, agencyID); err != nil {
		return err
	}
	s.log.Infow("company reconnected", "agencyId", agencyID)
	return nil
}

// PersistExchange stores a full token set from an authorization_code
// exchange, creating the credential record on first install. The response's
// locationId/companyId decide which scope the record belongs to;
// fallbackCompanyID covers responses that omit companyId.
func (s *Service) PersistExchange(ctx context.Context, tr platform.TokenResponse, fallbackCompanyID string) (credentials.ScopeType, string, error) {
	scope := credentials.ScopeAgency
	scopeID := tr.CompanyID
	if scopeID == "" {
		scopeID = fallbackCompanyID
	}
	companyID := tr.CompanyID
	if companyID == "" {
		companyID = fallbackCompanyID
	}
	if tr.LocationID != "" {
		scope = credentials.ScopeLocation
		scopeID = tr.LocationID
	}
	if scopeID == "" {
		return "", "", errors.New("tokens: token response identifies no scope")
	}
	exp := s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	patch := credentials.Patch{
		AccessToken: &tr.AccessToken,
		ExpiresAt:   &exp,
		CompanyID:   &companyID,
	}
	if tr.RefreshToken != "" {
		patch.RefreshToken = &tr.RefreshToken
	}
	if err := s.store.Upsert(ctx, scope, scopeID, patch); err != nil {
		return "", "", fmt.Errorf("tokens: persist exchange: %w", err)
	}
	return scope, scopeID, nil
}
