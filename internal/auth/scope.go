package auth

import "strings"

const (
	ScopeAgentsRead        = "agents:read"
	ScopeAgentsWrite       = "agents:write"
	ScopeDocumentsRead     = "documents:read"
	ScopeDocumentsWrite    = "documents:write"
	ScopePhoneNumbersRead  = "phone_numbers:read"
	ScopePhoneNumbersWrite = "phone_numbers:write"
	ScopeOrganizationRead  = "organization:read"
	ScopeWildcard          = "*"
)

var knownScopes = map[string]bool{
	ScopeAgentsRead:        true,
	ScopeAgentsWrite:       true,
	ScopeDocumentsRead:     true,
	ScopeDocumentsWrite:    true,
	ScopePhoneNumbersRead:  true,
	ScopePhoneNumbersWrite: true,
	ScopeOrganizationRead:  true,
	ScopeWildcard:          true,
}

func KnownScope(s string) bool { return knownScopes[s] }

// HasScope reports whether scopes grant required. The wildcard grants
// everything, and a "<resource>:write" scope also grants "<resource>:read".
func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == ScopeWildcard || s == required {
			return true
		}
		if resource, ok := strings.CutSuffix(s, ":write"); ok && required == resource+":read" {
			return true
		}
	}
	return false
}
