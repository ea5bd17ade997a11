// internal/utils/jwt_test.go
package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSessionSecret = "session-secret-for-tests-0123456789"
	testPluginSecret  = "plugin-secret-for-tests-9876543210"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	issuer := NewSessionTokenIssuer(testSessionSecret, time.Hour)
	userID := uuid.New()

	token, expiresAt, err := issuer.Issue(userID, "ops@example.com", "Ops", "Admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "Admin", claims.Role)
}

func TestPluginTokenRoundTrip(t *testing.T) {
	issuer := NewPluginTokenIssuer(testPluginSecret, "VerifyHubPortal", "VerifyHubPlugin")
	licenseID := uuid.New()
	expiresAt := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	token, err := issuer.Issue(licenseID, "EML-1A2B-3C4D-5E6F-7A8B", "shop.example.com", expiresAt)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, licenseID.String(), claims.LicenseID)
	assert.Equal(t, "shop.example.com", claims.Domain)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
}

func TestTokensDoNotCrossIssuers(t *testing.T) {
	sessions := NewSessionTokenIssuer(testSessionSecret, time.Hour)
	plugins := NewPluginTokenIssuer(testPluginSecret, "VerifyHubPortal", "VerifyHubPlugin")

	sessionToken, _, err := sessions.Issue(uuid.New(), "a@example.com", "A", "Customer")
	require.NoError(t, err)
	pluginToken, err := plugins.Issue(uuid.New(), "MOB-1A2B-3C4D-5E6F-7A8B", "shop.example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = plugins.Validate(sessionToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = sessions.Validate(pluginToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPluginTokenPinsIssuerAndAudience(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour)
	foreignIssuer := NewPluginTokenIssuer(testPluginSecret, "SomeoneElse", "VerifyHubPlugin")
	foreignAudience := NewPluginTokenIssuer(testPluginSecret, "VerifyHubPortal", "OtherPlugin")
	plugins := NewPluginTokenIssuer(testPluginSecret, "VerifyHubPortal", "VerifyHubPlugin")

	for name, issuer := range map[string]*PluginTokenIssuer{"issuer": foreignIssuer, "audience": foreignAudience} {
		t.Run(name, func(t *testing.T) {
			token, err := issuer.Issue(uuid.New(), "MOB-1A2B-3C4D-5E6F-7A8B", "shop.example.com", expiresAt)
			require.NoError(t, err)

			_, err = plugins.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPluginTokenExpiresWithLicense(t *testing.T) {
	plugins := NewPluginTokenIssuer(testPluginSecret, "VerifyHubPortal", "VerifyHubPlugin")

	token, err := plugins.Issue(uuid.New(), "MOB-1A2B-3C4D-5E6F-7A8B", "shop.example.com", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = plugins.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
