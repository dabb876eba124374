// internal/locations/postgres.go
package locations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the location summaries table if it does not already
// exist. Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS location_summaries (
  location_id text PRIMARY KEY,
  display_name text NOT NULL DEFAULT '',
  installed boolean NOT NULL DEFAULT false,
  agency_id text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS location_summaries_agency_idx ON location_summaries(agency_id);`)
	return err
}

func (s *pgStore) Upsert(ctx context.Context, sum Summary) error {
	_, err := s.dbPool.Exec(ctx, `
INSERT INTO location_summaries (location_id, display_name, installed, agency_id, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (location_id) DO UPDATE SET
  display_name = $2,
  installed    = $3,
  agency_id    = $4,
  updated_at   = NOW()`,
		sum.LocationID, sum.DisplayName, sum.Installed, sum.AgencyID)
	return err
}

func (s *pgStore) CountInstalled(ctx context.Context, agencyID string) (int, error) {
	var n int
	err := s.dbPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM location_summaries WHERE agency_id=$1 AND installed=true`,
		agencyID,
	).Scan(&n)
	return n, err
}

func (s *pgStore) ListByAgency(ctx context.Context, agencyID string) ([]Summary, error) {
	rows, err := s.dbPool.Query(ctx, `
SELECT location_id, display_name, installed, agency_id, updated_at
FROM location_summaries WHERE agency_id=$1 ORDER BY location_id`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.LocationID, &sum.DisplayName, &sum.Installed, &sum.AgencyID, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
