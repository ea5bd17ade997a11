// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		JWT: JWTConfig{
			SecretKey:       "session-secret-0123456789abcdef0123",
			PluginSecretKey: "plugin-secret-0123456789abcdef01234",
		},
		Database:  DatabaseConfig{Password: "postgres"},
		Licensing: LicensingConfig{SweepInterval: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing session secret",
			mutate:  func(c *Config) { c.JWT.SecretKey = "" },
			wantErr: "must be set",
		},
		{
			name:    "shared secret",
			mutate:  func(c *Config) { c.JWT.PluginSecretKey = c.JWT.SecretKey },
			wantErr: "must differ",
		},
		{
			name: "default secrets in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWT.SecretKey = defaultSessionSecret
			},
			wantErr: "changed in production",
		},
		{
			name: "no database password in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Database.Password = ""
			},
			wantErr: "database password",
		},
		{
			name: "database url in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Database.Password = ""
				c.Database.URL = "postgres://verifyhub@db/verifyhub"
			},
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *Config) { c.Licensing.SweepInterval = 0 },
			wantErr: "LICENSE_SWEEP_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_FillsLicensingDefaults(t *testing.T) {
	c := validConfig()

	require.NoError(t, c.Validate())

	assert.Equal(t, 1, c.Licensing.MaxKeyGenerationTries)
	assert.Equal(t, 500, c.Licensing.SweepBatchSize)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("LICENSE_SWEEP_INTERVAL", "10m")
	t.Setenv("SESSION_MOBILE_QR_TTL", "90s")
	t.Setenv("TELEMETRY_ENFORCE_TOKEN_BINDING", "TRUE")
	t.Setenv("ALLOWED_ORIGINS", "https://portal.example.com, ,https://admin.example.com")
	t.Setenv("PLATFORM_OWNER_EMAIL", "  Owner@Example.com ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Licensing.SweepInterval)
	assert.Equal(t, 90*time.Second, cfg.Sessions.MobileQRTTL)
	assert.True(t, cfg.Licensing.EnforceTokenBinding)
	assert.Equal(t, []string{"https://portal.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "owner@example.com", cfg.Platform.OwnerEmail)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "pw", Database: "verifyhub", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=verifyhub sslmode=disable", d.DSN())

	d.URL = "postgres://app@db/verifyhub"
	assert.Equal(t, "postgres://app@db/verifyhub", d.DSN())
}
