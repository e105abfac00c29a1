package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var licenseKeyPattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{5}(-[0-9A-HJKMNP-TV-Z]{5}){4}$`)

func TestGenerateLicenseKey(t *testing.T) {
	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		key, err := GenerateLicenseKey()
		require.NoError(t, err)
		require.Regexp(t, licenseKeyPattern, key)

		_, dup := seen[key]
		require.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
	}
}

func TestNormalizeLicenseKey(t *testing.T) {
	assert.Equal(t, "ABCDE-12345", NormalizeLicenseKey("  abcde-12345\n"))
}
