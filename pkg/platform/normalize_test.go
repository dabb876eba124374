// pkg/platform/normalize_test.go
package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocationsBareArray(t *testing.T) {
	locs, err := normalizeLocations([]byte(`[{"id":"l1","name":"One","isInstalled":true}]`))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "l1", locs[0].ID)
	assert.Equal(t, "One", locs[0].Name)
}

func TestNormalizeLocationsIDToleranceOrder(t *testing.T) {
	locs, err := normalizeLocations([]byte(`{"locations":[
		{"id":"primary","_id":"alt","locationId":"last"},
		{"_id":"alt-only"},
		{"locationId":"loc-only"},
		{"name":"no id at all"}
	]}`))
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, "primary", locs[0].ID)
	assert.Equal(t, "alt-only", locs[1].ID)
	assert.Equal(t, "loc-only", locs[2].ID)
}

func TestNormalizeLocationsMissingFlagMeansInstalled(t *testing.T) {
	// The query filters isInstalled=true; some responses drop the flag.
	locs, err := normalizeLocations([]byte(`[{"id":"l1"}]`))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.True(t, locs[0].IsInstalled)
}

func TestNormalizeLocationsGarbage(t *testing.T) {
	_, err := normalizeLocations([]byte(`"nope"`))
	assert.Error(t, err)
}

func TestNormalizeMenusBothShapes(t *testing.T) {
	bare, err := normalizeMenus([]byte(`[{"id":"m1","title":"T","url":"https://x/y"}]`))
	require.NoError(t, err)
	require.Len(t, bare, 1)
	assert.Equal(t, "m1", bare[0].ID)

	wrapped, err := normalizeMenus([]byte(`{"items":[{"_id":"m2","title":"T2","url":"https://x/z","showOnCompany":true}]}`))
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, "m2", wrapped[0].ID)
	assert.True(t, wrapped[0].ShowOnCompany)
}
