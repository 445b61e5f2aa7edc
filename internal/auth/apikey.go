package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix marks every issued key so bearer tokens can be routed to
	// key validation instead of session validation.
	APIKeyPrefix = "va_live_"

	apiKeyRandomLen  = 32
	apiKeyLen        = len(APIKeyPrefix) + apiKeyRandomLen
	apiKeyDisplayLen = 12

	apiKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GeneratedKey is a freshly issued credential. Raw must be shown to the caller
// once and then discarded.
type GeneratedKey struct {
	Raw      string
	Hash     string
	Prefix   string
	LastFour string
}

func GenerateAPIKey() (*GeneratedKey, error) {
	buf := make([]byte, apiKeyRandomLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(apiKeyLen)
	sb.WriteString(APIKeyPrefix)
	for _, b := range buf {
		sb.WriteByte(apiKeyAlphabet[int(b)%len(apiKeyAlphabet)])
	}
	raw := sb.String()

	return &GeneratedKey{
		Raw:      raw,
		Hash:     HashAPIKey(raw),
		Prefix:   raw[:apiKeyDisplayLen],
		LastFour: raw[len(raw)-4:],
	}, nil
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// LooksLikeAPIKey reports whether a bearer token should be treated as an API
// key rather than a session token.
func LooksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, APIKeyPrefix)
}

// ValidateAPIKeyFormat rejects malformed tokens before any database lookup.
func ValidateAPIKeyFormat(key string) bool {
	if len(key) != apiKeyLen || !strings.HasPrefix(key, APIKeyPrefix) {
		return false
	}
	for _, c := range key[len(APIKeyPrefix):] {
		if !isAlphanumeric(c) {
			return false
		}
	}
	return true
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
