// internal/ssocrypt/normalize.go
package ssocrypt

import (
	"errors"
	"fmt"
	"strings"
)

var errMalformed = errors.New("ssocrypt: malformed payload")

// Upstream alias order per canonical field; the first present, non-empty,
// trimmed value wins.
var aliases = map[string][]string{
	"userId":           {"userId", "id"},
	"companyId":        {"companyId", "agencyId", "company", "agency"},
	"role":             {"role", "userRole"},
	"type":             {"type"},
	"activeLocationId": {"activeLocation", "activeLocationId", "locationId"},
	"userName":         {"userName", "name"},
	"email":            {"email"},
}

func normalize(fields map[string]any) Context {
	pick := func(canonical string) *string {
		for _, k := range aliases[canonical] {
			v, ok := fields[k]
			if !ok || v == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(v))
			if s != "" {
				return &s
			}
		}
		return nil
	}
	return Context{
		UserID:           pick("userId"),
		CompanyID:        pick("companyId"),
		Role:             pick("role"),
		Type:             pick("type"),
		ActiveLocationID: pick("activeLocationId"),
		UserName:         pick("userName"),
		Email:            pick("email"),
	}
}
