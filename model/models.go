package model

import "strings"

var modelAliases = map[string]string{
	"flash":      "gemini-2.0-flash",
	"flash-lite": "gemini-2.0-flash-lite",
	"2.5-flash":  "gemini-2.5-flash",
	"pro":        "gemini-2.5-pro",
}

// ResolveModel expands short aliases and strips the "models/" prefix the
// API list endpoint reports.
func ResolveModel(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, "models/")
	if target, ok := modelAliases[name]; ok {
		return target
	}
	return name
}
