// internal/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"d4d/internal/credentials"
	"d4d/internal/locations"
	"d4d/internal/ssocrypt"
	"d4d/internal/tokens"
	"d4d/pkg/platform"
)

// ssoDecode decrypts an SSO context payload. It only hard-fails when the
// shared secret is unconfigured; any malformed payload degrades to all-null
// fields, which the caller treats as unauthenticated. SSO decode failures
// must never block page rendering.
func (a *App) ssoDecode(w http.ResponseWriter, r *http.Request) {
	if !a.codec.Configured() {
		http.Error(w, "server misconfigured: SSO secret not set", http.StatusInternalServerError)
		return
	}
	var body struct {
		EncryptedData json.RawMessage `json:"encryptedData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.EncryptedData) == 0 {
		writeJSON(w, ssocrypt.Context{}, http.StatusOK)
		return
	}
	ctx := a.codec.Decode(ssocrypt.ParsePayload(body.EncryptedData))
	writeJSON(w, ctx, http.StatusOK)
}

// oauthCallback completes a marketplace install: exchanges the code and
// creates the credential record for whichever scope the token response
// identifies. Location installs also mark the location installed locally.
func (a *App) oauthCallback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	scope, scopeID, err := a.tokens.HandleInstallCode(r.Context(), code)
	if err != nil {
		a.log.Errorw("install code exchange failed", "err", err)
		writeUpstreamErr(w, err)
		return
	}
	if scope == credentials.ScopeLocation {
		rec, err := a.creds.Get(r.Context(), scope, scopeID)
		if err == nil {
			if err := a.locs.Upsert(r.Context(), locations.Summary{
				LocationID: scopeID,
				AgencyID:   rec.CompanyID,
				Installed:  true,
			}); err != nil {
				a.log.Warnw("location summary upsert failed", "locationId", scopeID, "err", err)
			}
			a.reconciler.InvalidateCache(r.Context(), rec.CompanyID)
		}
	}
	writeJSON(w, map[string]any{"ok": true, "scope": scope, "scopeId": scopeID}, http.StatusOK)
}

// installStatus reports the reconciled install count for an agency. Serves
// recently cached counts; read-only, so staleness within the cache TTL is
// acceptable here.
func (a *App) installStatus(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.TrimSpace(r.URL.Query().Get("agencyId"))
	if agencyID == "" {
		http.Error(w, "missing agencyId", http.StatusBadRequest)
		return
	}
	st, err := a.reconciler.AgencyInstalled(r.Context(), agencyID)
	if err != nil {
		a.log.Errorw("install status query failed", "agencyId", agencyID, "err", err)
		writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, st, http.StatusOK)
}

// menuCleanup runs one menu reconcile pass for an agency and returns the
// outcome verbatim.
func (a *App) menuCleanup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgencyID string `json:"agencyId"`
		Force    bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.AgencyID) == "" {
		http.Error(w, "missing agencyId", http.StatusBadRequest)
		return
	}
	res, err := a.menus.Reconcile(r.Context(), body.AgencyID, body.Force)
	if err != nil {
		a.log.Errorw("menu cleanup failed", "agencyId", body.AgencyID, "err", err)
		writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"outcome":        res.Outcome,
		"installedCount": res.Installed.Count,
		"source":         res.Installed.Source,
	}, http.StatusOK)
}

// reconnect runs the company reconnect fallback for an agency whose refresh
// token is no longer usable.
func (a *App) reconnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgencyID string `json:"agencyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.AgencyID) == "" {
		http.Error(w, "missing agencyId", http.StatusBadRequest)
		return
	}
	if err := a.tokens.ReconnectCompany(r.Context(), body.AgencyID); err != nil {
		a.log.Errorw("company reconnect failed", "agencyId", body.AgencyID, "err", err)
		writeUpstreamErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

// writeUpstreamErr maps the error taxonomy onto HTTP: upstream rejections
// carry their status and message through, a missing refresh token means the
// tenant needs reconnection, everything else is internal.
func writeUpstreamErr(w http.ResponseWriter, err error) {
	var apiErr *platform.APIError
	switch {
	case errors.As(err, &apiErr):
		writeJSON(w, map[string]any{
			"error":          "upstream rejected",
			"upstreamStatus": apiErr.Status,
			"message":        apiErr.Message,
		}, http.StatusBadGateway)
	case errors.Is(err, tokens.ErrNoRefreshToken):
		writeJSON(w, map[string]any{"error": "needs reconnection"}, http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
