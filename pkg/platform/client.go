// pkg/platform/client.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"d4d/pkg/config"
)

// User types accepted by the token endpoint.
const (
	UserTypeCompany  = "Company"
	UserTypeLocation = "Location"
)

// APIError carries the upstream status and a human-readable message extracted
// from the response body. Timeouts and transport failures are wrapped
// separately by the caller-facing methods.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: upstream status %d: %s", e.Status, e.Message)
}

// TokenResponse is the JSON body of POST /oauth/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	UserType     string `json:"userType,omitempty"`
}

// Client is a thin typed client for the upstream platform API. Every request
// carries the fixed Version header and the configured timeout.
type Client struct {
	base         string
	version      string
	clientID     string
	clientSecret string
	redirectURI  string
	hc           *http.Client
	log          *zap.SugaredLogger
}

func NewClient(cfg config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		base:         strings.TrimRight(cfg.PlatformBaseURL, "/"),
		version:      cfg.PlatformVersion,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		hc:           &http.Client{Timeout: cfg.RequestTimeout},
		log:          log,
	}
}

// RefreshToken performs the refresh_token grant for the given user type.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, userType string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("user_type", userType)
	return c.tokenRequest(ctx, form)
}

// ExchangeCode performs the authorization_code grant.
func (c *Client) ExchangeCode(ctx context.Context, code, userType string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	if userType != "" {
		form.Set("user_type", userType)
	}
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (TokenResponse, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return TokenResponse{}, err
	}
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return TokenResponse{}, fmt.Errorf("platform: decode token response: %w", err)
	}
	return tr, nil
}

// Reconnect asks the platform for a fresh authorization code for an agency
// that still has the app installed but whose refresh token is no longer
// usable. The code must then go through the authorization_code grant.
func (c *Client) Reconnect(ctx context.Context, companyID string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"clientKey":    c.clientID,
		"clientSecret": c.clientSecret,
		"companyId":    companyID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/oauth/reconnect", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		AuthorizationCode string `json:"authorizationCode"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("platform: decode reconnect response: %w", err)
	}
	if out.AuthorizationCode == "" {
		return "", &APIError{Status: http.StatusOK, Message: "reconnect returned no authorization code"}
	}
	return out.AuthorizationCode, nil
}

// InstalledLocations returns the platform's authoritative list of locations
// that currently have the app installed for the given company.
func (c *Client) InstalledLocations(ctx context.Context, accessToken, companyID, appID string) ([]Location, error) {
	q := url.Values{}
	q.Set("companyId", companyID)
	q.Set("appId", appID)
	q.Set("isInstalled", "true")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/oauth/installedLocations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return normalizeLocations(body)
}

// ListMenus returns all company-scoped custom menus.
func (c *Client) ListMenus(ctx context.Context, accessToken string) ([]Menu, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/custom-menus/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return normalizeMenus(body)
}

// DeleteMenu deletes a custom menu by id. A 404 surfaces as *APIError with
// Status 404; callers that want idempotent deletion fold it into success.
func (c *Client) DeleteMenu(ctx context.Context, accessToken, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/custom-menus/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	_, err = c.do(req)
	return err
}

// do executes the request and returns the body. The body is read even on
// failure so upstream error messages can be propagated.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.log.Debugw("platform call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "took", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: messageFromBody(body)}
	}
	return body, nil
}

// messageFromBody pulls a human-readable message out of an error body,
// falling back to the raw text.
func messageFromBody(body []byte) string {
	var m struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		switch v := m.Message.(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if m.Error != "" {
			return m.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}
