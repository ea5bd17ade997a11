// internal/utils/license_key.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const licenseKeyRandomBytes = 8

// GenerateLicenseKey returns {PREFIX}-XXXX-XXXX-XXXX-XXXX built from 8 random bytes.
// Uniqueness is not checked here; callers re-roll on collision.
func GenerateLicenseKey(prefix string) (string, error) {
	b := make([]byte, licenseKeyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	h := strings.ToUpper(hex.EncodeToString(b))
	return fmt.Sprintf("%s-%s-%s-%s-%s", strings.ToUpper(prefix), h[0:4], h[4:8], h[8:12], h[12:16]), nil
}

// VerifyLicenseKeyFormat is a coarse shape check (at least five dash-separated
// segments). It says nothing about whether the key exists.
func VerifyLicenseKeyFormat(key string) bool {
	return len(strings.Split(key, "-")) >= 5
}

// LicenseKeyPrefix returns the segment before the first dash.
func LicenseKeyPrefix(key string) string {
	prefix, _, _ := strings.Cut(key, "-")
	return prefix
}

// MaskLicenseKey keeps the prefix and the last group, e.g. EML-****-****-****-9F2C.
func MaskLicenseKey(key string) string {
	parts := strings.Split(key, "-")
	if len(parts) < 3 {
		return "****"
	}
	masked := make([]string, len(parts))
	masked[0] = parts[0]
	for i := 1; i < len(parts)-1; i++ {
		masked[i] = "****"
	}
	masked[len(parts)-1] = parts[len(parts)-1]
	return strings.Join(masked, "-")
}
