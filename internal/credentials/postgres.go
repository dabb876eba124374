// internal/credentials/postgres.go
package credentials

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the credentials table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS oauth_credentials (
  scope_type text NOT NULL,
  scope_id text NOT NULL,
  access_token text NOT NULL DEFAULT '',
  refresh_token text NOT NULL DEFAULT '',
  expires_at timestamptz NOT NULL DEFAULT 'epoch',
  company_id text NOT NULL DEFAULT '',
  menu_id text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (scope_type, scope_id)
);`)
	return err
}

func (s *pgStore) Get(ctx context.Context, scope ScopeType, scopeID string) (Record, error) {
	r := Record{ScopeType: scope, ScopeID: scopeID}
	err := s.dbPool.QueryRow(ctx, `
SELECT access_token, refresh_token, expires_at, company_id, menu_id, updated_at
FROM oauth_credentials WHERE scope_type=$1 AND scope_id=$2`,
		string(scope), scopeID,
	).Scan(&r.AccessToken, &r.RefreshToken, &r.ExpiresAt, &r.CompanyID, &r.MenuID, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// Upsert merges the patch in a single statement so concurrent refreshes
// interleave per field set rather than tearing the record. NULL params leave
// columns untouched; NULLIF keeps an empty refresh token from overwriting a
// stored one.
func (s *pgStore) Upsert(ctx context.Context, scope ScopeType, scopeID string, p Patch) error {
	if p.RefreshToken != nil && *p.RefreshToken == "" {
		p.RefreshToken = nil
	}
	_, err := s.dbPool.Exec(ctx, `
INSERT INTO oauth_credentials (scope_type, scope_id, access_token, refresh_token, expires_at, company_id, menu_id, updated_at)
VALUES ($1, $2, COALESCE($3,''), COALESCE($4,''), COALESCE($5,'epoch'::timestamptz), COALESCE($6,''), COALESCE($7,''), NOW())
ON CONFLICT (scope_type, scope_id) DO UPDATE SET
  access_token  = COALESCE($3, oauth_credentials.access_token),
  refresh_token = COALESCE(NULLIF($4,''), oauth_credentials.refresh_token),
  expires_at    = COALESCE($5, oauth_credentials.expires_at),
  company_id    = COALESCE($6, oauth_credentials.company_id),
  menu_id       = COALESCE($7, oauth_credentials.menu_id),
  updated_at    = NOW()`,
		string(scope), scopeID, p.AccessToken, p.RefreshToken, p.ExpiresAt, p.CompanyID, p.MenuID)
	return err
}
