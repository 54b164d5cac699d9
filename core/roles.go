package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/corpix/uarand"
)

// Roles maps role names to prompt text. The "default" entry is the one
// used for users without a custom role.
type Roles map[string]string

// RoleSource fetches the current role catalogue.
type RoleSource interface {
	Fetch(ctx context.Context) Roles
}

type RoleFetcher struct {
	url      string
	http     *http.Client
	settings *Settings
}

func NewRoleFetcher(url string, settings *Settings) *RoleFetcher {
	return &RoleFetcher{
		url:      url,
		http:     &http.Client{Timeout: 5 * time.Second},
		settings: settings,
	}
}

// Fetch never fails: an unreachable or malformed catalogue yields an empty
// set. The configured default role, when present, replaces "default".
func (f *RoleFetcher) Fetch(ctx context.Context) Roles {
	roles, err := f.fetch(ctx)
	if err != nil {
		log.Printf("[ROLES] fetch: %v", err)
		return Roles{}
	}
	if name := f.settings.DefaultRole(); name != "" {
		if text, ok := roles[name]; ok {
			roles["default"] = text
		}
	}
	return roles
}

func (f *RoleFetcher) fetch(ctx context.Context) (Roles, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", uarand.GetRandom())

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roles: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return parseRoles(body)
}

// parseRoles accepts role values given either as a string or as a list of
// lines.
func parseRoles(body []byte) (Roles, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	roles := make(Roles, len(raw))
	for name, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			roles[name] = s
			continue
		}
		var lines []string
		if err := json.Unmarshal(v, &lines); err == nil {
			roles[name] = strings.Join(lines, "\n")
			continue
		}
		roles[name] = strings.TrimSpace(string(v))
	}
	return roles, nil
}

func (r Roles) list() string {
	if len(r) == 0 {
		return "No roles found."
	}
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, "- "+name)
	}
	slices.Sort(names)
	return strings.Join(names, "\n")
}
