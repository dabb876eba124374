// pkg/platform/normalize.go
package platform

import (
	"encoding/json"
	"strings"
)

// Location is a canonical installed-location record. The upstream list comes
// back either as a bare array or wrapped in {"locations":[...]}, and each
// item may name its identifier "id", "_id" or "locationId".
type Location struct {
	ID          string
	Name        string
	IsInstalled bool
}

// Menu is a canonical custom-menu record. The list endpoint returns either a
// bare array or {"items":[...]}.
type Menu struct {
	ID             string
	Title          string
	URL            string
	ShowOnCompany  bool
	ShowOnLocation bool
}

type rawLocation struct {
	ID          string `json:"id"`
	AltID       string `json:"_id"`
	LocationID  string `json:"locationId"`
	Name        string `json:"name"`
	IsInstalled *bool  `json:"isInstalled"`
}

func (r rawLocation) canonical() Location {
	id := firstNonEmpty(r.ID, r.AltID, r.LocationID)
	// The query filters on isInstalled=true; an absent flag means installed.
	installed := r.IsInstalled == nil || *r.IsInstalled
	return Location{ID: id, Name: r.Name, IsInstalled: installed}
}

type rawMenu struct {
	ID             string `json:"id"`
	AltID          string `json:"_id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	ShowOnCompany  bool   `json:"showOnCompany"`
	ShowOnLocation bool   `json:"showOnLocation"`
}

func (r rawMenu) canonical() Menu {
	return Menu{
		ID:             firstNonEmpty(r.ID, r.AltID),
		Title:          r.Title,
		URL:            r.URL,
		ShowOnCompany:  r.ShowOnCompany,
		ShowOnLocation: r.ShowOnLocation,
	}
}

// normalizeLocations handles both list shapes and all three id spellings in
// one place; callers never branch on shape again.
func normalizeLocations(body []byte) ([]Location, error) {
	var raws []rawLocation
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Locations []rawLocation `json:"locations"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		raws = wrapped.Locations
	}
	out := make([]Location, 0, len(raws))
	for _, r := range raws {
		loc := r.canonical()
		if loc.ID == "" {
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

func normalizeMenus(body []byte) ([]Menu, error) {
	var raws []rawMenu
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Items []rawMenu `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		raws = wrapped.Items
	}
	out := make([]Menu, 0, len(raws))
	for _, r := range raws {
		m := r.canonical()
		if m.ID == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
