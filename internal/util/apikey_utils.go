package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
)

const apiKeyScheme = "lm"

// randomAlphanumeric returns exactly n characters from the URL-safe base64
// alphabet minus '-' and '_', since '_' separates the parts of an API key.
func randomAlphanumeric(n int) (string, error) {
	var sb strings.Builder
	buf := make([]byte, (n*3+3)/4)
	for sb.Len() < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		chunk := base64.RawURLEncoding.EncodeToString(buf)
		sb.WriteString(strings.NewReplacer("-", "", "_", "").Replace(chunk))
	}
	return sb.String()[:n], nil
}

// GenerateAPIKey mints "lm_<prefix>_<secret>". Only the prefix and the hash
// are meant to be stored.
func GenerateAPIKey() (fullKey, prefix, keyHash string, err error) {
	prefix, err = randomAlphanumeric(apikey.APIKeyPrefixLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate prefix: %w", err)
	}

	secret, err := randomAlphanumeric(apikey.APIKeySecretLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	fullKey = fmt.Sprintf(apikey.APIKeyFormat, prefix, secret)
	return fullKey, prefix, HashAPIKey(fullKey), nil
}

// ParseAPIKeyPrefix extracts the lookup prefix from a presented key.
func ParseAPIKeyPrefix(fullKey string) (string, bool) {
	parts := strings.SplitN(fullKey, "_", 3)
	if len(parts) != 3 || parts[0] != apiKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}

func HashAPIKey(fullKey string) string {
	sum := sha256.Sum256([]byte(fullKey))
	return hex.EncodeToString(sum[:])
}
