// internal/seed/seed_test.go
package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/internal/locations"
)

func TestImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credentials:
  - scopeType: agency
    scopeId: a1
    refreshToken: rt-1
    companyId: a1
locations:
  - locationId: l1
    agencyId: a1
    displayName: Main Office
    installed: true
  - locationId: l2
    agencyId: a1
    installed: false
`), 0o600))

	creds := credentials.NewMemoryStore()
	locs := locations.NewMemoryStore()
	require.NoError(t, Import(context.Background(), path, creds, locs, zap.NewNop().Sugar()))

	rec, err := creds.Get(context.Background(), credentials.ScopeAgency, "a1")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", rec.RefreshToken)

	n, err := locs.CountInstalled(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportMissingFile(t *testing.T) {
	err := Import(context.Background(), "/does/not/exist.yaml",
		credentials.NewMemoryStore(), locations.NewMemoryStore(), zap.NewNop().Sugar())
	assert.Error(t, err)
}
