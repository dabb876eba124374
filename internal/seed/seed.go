// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"d4d/internal/credentials"
	"d4d/internal/locations"
)

// File is the dev seed format: pre-provisioned credentials and location
// summaries so the service can run against a mocked or sandboxed platform.
type File struct {
	Credentials []struct {
		ScopeType    string    `yaml:"scopeType"`
		ScopeID      string    `yaml:"scopeId"`
		AccessToken  string    `yaml:"accessToken"`
		RefreshToken string    `yaml:"refreshToken"`
		ExpiresAt    time.Time `yaml:"expiresAt"`
		CompanyID    string    `yaml:"companyId"`
	} `yaml:"credentials"`
	Locations []struct {
		LocationID  string `yaml:"locationId"`
		DisplayName string `yaml:"displayName"`
		AgencyID    string `yaml:"agencyId"`
		Installed   bool   `yaml:"installed"`
	} `yaml:"locations"`
}

// Import loads the seed file into the stores. Existing records are merged,
// not replaced wholesale, so re-running against a live store is safe.
func Import(ctx context.Context, path string, creds credentials.Store, locs locations.Store, log *zap.SugaredLogger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}
	for _, c := range f.Credentials {
		c := c
		p := credentials.Patch{CompanyID: &c.CompanyID}
		if c.AccessToken != "" {
			p.AccessToken = &c.AccessToken
		}
		if c.RefreshToken != "" {
			p.RefreshToken = &c.RefreshToken
		}
		if !c.ExpiresAt.IsZero() {
			p.ExpiresAt = &c.ExpiresAt
		}
		if err := creds.Upsert(ctx, credentials.ScopeType(c.ScopeType), c.ScopeID, p); err != nil {
			return fmt.Errorf("seed: credential %s/%s: %w", c.ScopeType, c.ScopeID, err)
		}
	}
	for _, l := range f.Locations {
		if err := locs.Upsert(ctx, locations.Summary{
			LocationID:  l.LocationID,
			DisplayName: l.DisplayName,
			AgencyID:    l.AgencyID,
			Installed:   l.Installed,
		}); err != nil {
			return fmt.Errorf("seed: location %s: %w", l.LocationID, err)
		}
	}
	log.Infow("seed imported", "path", path, "credentials", len(f.Credentials), "locations", len(f.Locations))
	return nil
}
