// internal/httpapi/handlers_test.go
package httpapi

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/internal/locations"
	"d4d/internal/menus"
	"d4d/internal/ssocrypt"
	"d4d/internal/tokens"
	"d4d/pkg/config"
	"d4d/pkg/platform"
)

const (
	testSecret     = "sso-secret"
	testAdminToken = "admin-token"
	testMenuTitle  = "Driving for Dollars"
	testMenuURL    = "https://app.example.com/d4d"
)

func newTestApp(t *testing.T, upstreamURL, ssoSecret string) (*App, credentials.Store, locations.Store) {
	t.Helper()
	cfg := config.Config{
		PlatformBaseURL: upstreamURL,
		PlatformVersion: "2021-07-28",
		ClientID:        "cid",
		ClientSecret:    "csecret",
		AppID:           "app-1",
		SSOSecret:       ssoSecret,
		AdminToken:      testAdminToken,
		MenuTitle:       testMenuTitle,
		MenuURL:         testMenuURL,
		RefreshMargin:   time.Minute,
		RequestTimeout:  2 * time.Second,
	}
	log := zap.NewNop().Sugar()
	creds := credentials.NewMemoryStore()
	locs := locations.NewMemoryStore()
	api := platform.NewClient(cfg, log)
	tok := tokens.NewService(creds, api, cfg.RefreshMargin, log)
	rec := locations.NewReconciler(locs, tok, api, cfg.AppID, nil, log)
	mgr := menus.NewManager(creds, tok, api, rec, cfg.MenuTitle, cfg.MenuURL, log)
	codec := ssocrypt.NewCodec(cfg.SSOSecret, log)
	return New(log, cfg, codec, tok, mgr, rec, locs, creds), creds, locs
}

func encryptSSO(t *testing.T, secret string, fields map[string]any) json.RawMessage {
	t.Helper()
	plain, err := json.Marshal(fields)
	require.NoError(t, err)
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	iv := make([]byte, gcm.NonceSize())
	_, err = rand.Read(iv)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, iv, plain, nil)
	ct := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]
	out, err := json.Marshal(map[string]string{
		"iv":         base64.URLEncoding.EncodeToString(iv),
		"cipherText": base64.URLEncoding.EncodeToString(ct),
		"tag":        base64.URLEncoding.EncodeToString(tag),
	})
	require.NoError(t, err)
	return out
}

func postJSON(t *testing.T, h http.Handler, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSSODecode(t *testing.T) {
	app, _, _ := newTestApp(t, "http://unused.invalid", testSecret)
	h := app.Handler()

	payload := encryptSSO(t, testSecret, map[string]any{
		"userId":   "u-1",
		"agencyId": "a-1",
		"role":     "admin",
	})
	w := postJSON(t, h, "/sso/decode", "", map[string]json.RawMessage{"encryptedData": payload})
	require.Equal(t, http.StatusOK, w.Code)

	var got ssocrypt.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.UserID)
	assert.Equal(t, "u-1", *got.UserID)
	require.NotNil(t, got.CompanyID)
	assert.Equal(t, "a-1", *got.CompanyID)
}

func TestSSODecodeGarbageDegradesToNulls(t *testing.T) {
	app, _, _ := newTestApp(t, "http://unused.invalid", testSecret)
	w := postJSON(t, app.Handler(), "/sso/decode", "", map[string]string{"encryptedData": "garbage"})
	require.Equal(t, http.StatusOK, w.Code)

	var got ssocrypt.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Empty())
}

func TestSSODecodeUnconfiguredSecret(t *testing.T) {
	app, _, _ := newTestApp(t, "http://unused.invalid", "")
	w := postJSON(t, app.Handler(), "/sso/decode", "", map[string]string{"encryptedData": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMaintenanceRequiresAdminToken(t *testing.T) {
	app, _, _ := newTestApp(t, "http://unused.invalid", testSecret)
	h := app.Handler()

	w := postJSON(t, h, "/maintenance/menu-cleanup", "", map[string]string{"agencyId": "a1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(t, h, "/maintenance/menu-cleanup", "wrong", map[string]string{"agencyId": "a1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestMaintenanceCleanupScenario walks the full maintenance flow: with one
// location still installed locally and the upstream list unreachable, the
// menu is kept on local-fallback data; after the location uninstalls, a
// forced re-run deletes the menu and a 404 from the platform still counts
// as removed.
func TestMaintenanceCleanupScenario(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/installedLocations":
			http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
		case r.Method == http.MethodDelete && r.URL.Path == "/custom-menus/m-1":
			http.Error(w, `{"message":"menu not found"}`, http.StatusNotFound)
		default:
			http.Error(w, "unexpected call", http.StatusTeapot)
		}
	}))
	defer upstream.Close()

	app, creds, locs := newTestApp(t, upstream.URL, testSecret)
	h := app.Handler()
	ctx := context.Background()

	at, rt, menuID := "tok", "rt", "m-1"
	exp := time.Now().Add(time.Hour)
	require.NoError(t, creds.Upsert(ctx, credentials.ScopeAgency, "a1", credentials.Patch{
		AccessToken:  &at,
		RefreshToken: &rt,
		ExpiresAt:    &exp,
		MenuID:       &menuID,
	}))
	require.NoError(t, locs.Upsert(ctx, locations.Summary{
		LocationID: "l1", AgencyID: "a1", Installed: true,
	}))

	// Upstream unreachable: local fallback reports one install, menu kept.
	w := postJSON(t, h, "/maintenance/menu-cleanup", testAdminToken, map[string]any{"agencyId": "a1"})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Outcome        string `json:"outcome"`
		InstalledCount int    `json:"installedCount"`
		Source         string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, string(menus.OutcomeKept), out.Outcome)
	assert.Equal(t, 1, out.InstalledCount)
	assert.Equal(t, locations.SourceLocalFallback, out.Source)

	// The location uninstalls; a forced re-run removes the menu even though
	// the platform answers 404 on delete.
	require.NoError(t, locs.Upsert(ctx, locations.Summary{
		LocationID: "l1", AgencyID: "a1", Installed: false,
	}))
	w = postJSON(t, h, "/maintenance/menu-cleanup", testAdminToken, map[string]any{"agencyId": "a1", "force": true})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, string(menus.OutcomeRemoved), out.Outcome)

	rec, err := creds.Get(ctx, credentials.ScopeAgency, "a1")
	require.NoError(t, err)
	assert.Empty(t, rec.MenuID)
}

func TestMaintenanceCleanupPendingWithoutToken(t *testing.T) {
	app, _, _ := newTestApp(t, "http://unused.invalid", testSecret)
	w := postJSON(t, app.Handler(), "/maintenance/menu-cleanup", testAdminToken, map[string]any{"agencyId": "ghost"})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, string(menus.OutcomePending), out.Outcome)
}

func TestInstallStatus(t *testing.T) {
	app, _, locs := newTestApp(t, "http://unused.invalid", testSecret)
	h := app.Handler()
	require.NoError(t, locs.Upsert(context.Background(), locations.Summary{
		LocationID: "l1", AgencyID: "a1", Installed: true,
	}))

	req := httptest.NewRequest(http.MethodGet, "/maintenance/install-status?agencyId=a1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/maintenance/install-status?agencyId=a1", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var st locations.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, locations.SourceLocalFallback, st.Source)
}

func TestOAuthCallbackCreatesLocationRecord(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "install-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":86400,"companyId":"a1","locationId":"l1"}`))
	}))
	defer upstream.Close()

	app, creds, locs := newTestApp(t, upstream.URL, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=install-code", nil)
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := creds.Get(context.Background(), credentials.ScopeLocation, "l1")
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.CompanyID)
	assert.Equal(t, "rt", rec.RefreshToken)

	n, err := locs.CountInstalled(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
