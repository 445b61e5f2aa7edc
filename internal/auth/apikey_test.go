package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	require.NoError(t, err)
	b, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, a.Raw, b.Raw)
	assert.NotEqual(t, a.Hash, b.Hash)

	assert.True(t, strings.HasPrefix(a.Raw, APIKeyPrefix))
	assert.Len(t, a.Raw, len(APIKeyPrefix)+32)
	assert.Equal(t, HashAPIKey(a.Raw), a.Hash)
	assert.Equal(t, a.Raw[:12], a.Prefix)
	assert.Equal(t, a.Raw[len(a.Raw)-4:], a.LastFour)
	assert.True(t, ValidateAPIKeyFormat(a.Raw))
	assert.NotContains(t, a.Hash, a.Raw)
}

func TestHashAPIKey(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashAPIKey("abc"))
}

func TestValidateAPIKeyFormat(t *testing.T) {
	valid := APIKeyPrefix + strings.Repeat("aZ09", 8)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", valid, true},
		{"empty", "", false},
		{"missing prefix", strings.Repeat("a", len(valid)), false},
		{"too short", valid[:len(valid)-1], false},
		{"too long", valid + "a", false},
		{"bad charset", APIKeyPrefix + strings.Repeat("a", 31) + "-", false},
		{"hash instead of key", HashAPIKey(valid), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAPIKeyFormat(tt.key))
		})
	}
}

func TestHasScope(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		required string
		want     bool
	}{
		{"write implies read", []string{"agents:write"}, "agents:read", true},
		{"read does not imply write", []string{"agents:read"}, "agents:write", false},
		{"wildcard grants anything", []string{"*"}, "phone_numbers:write", true},
		{"exact match", []string{"documents:read"}, "documents:read", true},
		{"write only implies same resource", []string{"agents:write"}, "documents:read", false},
		{"no scopes", nil, "agents:read", false},
		{"read implies nothing else", []string{"agents:read"}, "documents:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasScope(tt.scopes, tt.required))
		})
	}
}
