package util

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	licenseKeyGroups    = 5
	licenseKeyGroupSize = 5
)

// Crockford-style alphabet: no I, L, O or U, so keys survive being read aloud.
var licenseKeyEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// GenerateLicenseKey returns a key like 7K2QF-0M9ZD-XW4TR-H8B1N-C6VPE carrying
// 125 bits from crypto/rand.
func GenerateLicenseKey() (string, error) {
	// 16 random bytes encode to 26 symbols; the first 25 are used.
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes for license key: %w", err)
	}
	encoded := licenseKeyEncoding.EncodeToString(b)

	groups := make([]string, 0, licenseKeyGroups)
	for i := 0; i < licenseKeyGroups; i++ {
		groups = append(groups, encoded[i*licenseKeyGroupSize:(i+1)*licenseKeyGroupSize])
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeLicenseKey trims and upper-cases a key typed by a user.
func NormalizeLicenseKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
