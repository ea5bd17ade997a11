// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSessionSecret = "super-secret-key-min-32-chars-xxxx"
	defaultPluginSecret  = "plugin-secret-key-min-32-chars!!!"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Platform    PlatformConfig
	Admin       AdminBootstrapConfig
	Licensing   LicensingConfig
	Sessions    SessionConfig
	Log         LogConfig
	CORS        CORSConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

// JWTConfig carries the two signing secrets. They must never be equal: a leaked
// plugin secret may not mint portal sessions.
type JWTConfig struct {
	SecretKey       string
	PluginSecretKey string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	PluginIssuer    string
	PluginAudience  string
	SessionIssuer   string
}

type RedisConfig struct {
	URL string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

// PlatformConfig holds display-only values. BaseDomain is used for renewal links,
// never for a security decision.
type PlatformConfig struct {
	BaseDomain string
	Domain     string
	OwnerEmail string
	OwnerName  string
}

type AdminBootstrapConfig struct {
	Email         string
	Password      string
	Name          string
	ResetPassword bool
}

type LicensingConfig struct {
	SweepInterval         time.Duration
	SweepTimeout          time.Duration
	SweepBatchSize        int
	EnforceTokenBinding   bool
	MaxKeyGenerationTries int
}

type SessionConfig struct {
	SweepInterval time.Duration
	MobileQRTTL   time.Duration
	EmailLinkTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedSuffix  string
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")
	logFormat := "text"
	if env == "production" {
		logFormat = "json"
	}

	config := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "verifyhub"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", defaultSessionSecret),
			PluginSecretKey: getEnv("JWT_PLUGIN_SECRET", defaultPluginSecret),
			AccessTokenTTL:  time.Duration(getEnvAsInt("JWT_ACCESS_TTL_MINUTES", 60)) * time.Minute,
			RefreshTokenTTL: time.Duration(getEnvAsInt("JWT_REFRESH_TTL_HOURS", 720)) * time.Hour,
			SessionIssuer:   "VerifyHubPortal",
			PluginIssuer:    "VerifyHubPortal",
			PluginAudience:  "VerifyHubPlugin",
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		},
		Platform: PlatformConfig{
			BaseDomain: getEnv("PLATFORM_BASE_DOMAIN", "https://api.verifyhub.io"),
			Domain:     getEnv("PLATFORM_DOMAIN", getEnv("PLATFORM_BASE_DOMAIN", "https://api.verifyhub.io")),
			OwnerEmail: strings.ToLower(strings.TrimSpace(getEnv("PLATFORM_OWNER_EMAIL", "platform@verifyhub.local"))),
			OwnerName:  strings.TrimSpace(getEnv("PLATFORM_OWNER_NAME", "Platform Owner")),
		},
		Admin: AdminBootstrapConfig{
			Email:         strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			Password:      getEnv("ADMIN_PASSWORD", ""),
			Name:          strings.TrimSpace(getEnv("ADMIN_NAME", "Admin")),
			ResetPassword: getEnvAsBool("ADMIN_RESET_PASSWORD", false),
		},
		Licensing: LicensingConfig{
			SweepInterval:         getEnvAsDuration("LICENSE_SWEEP_INTERVAL", time.Hour),
			SweepTimeout:          getEnvAsDuration("LICENSE_SWEEP_TIMEOUT", 5*time.Minute),
			SweepBatchSize:        getEnvAsInt("LICENSE_SWEEP_BATCH_SIZE", 500),
			EnforceTokenBinding:   getEnvAsBool("TELEMETRY_ENFORCE_TOKEN_BINDING", false),
			MaxKeyGenerationTries: getEnvAsInt("LICENSE_KEY_MAX_TRIES", 5),
		},
		Sessions: SessionConfig{
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			MobileQRTTL:   getEnvAsDuration("SESSION_MOBILE_QR_TTL", 5*time.Minute),
			EmailLinkTTL:  getEnvAsDuration("SESSION_EMAIL_LINK_TTL", 15*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", logFormat),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
			AllowedSuffix:  getEnv("ALLOWED_ORIGIN_SUFFIX", ".onrender.com"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" || c.JWT.PluginSecretKey == "" {
		return fmt.Errorf("JWT_SECRET and JWT_PLUGIN_SECRET must be set")
	}

	if c.JWT.SecretKey == c.JWT.PluginSecretKey {
		return fmt.Errorf("JWT_SECRET and JWT_PLUGIN_SECRET must differ")
	}

	if c.Environment == "production" {
		if c.JWT.SecretKey == defaultSessionSecret || c.JWT.PluginSecretKey == defaultPluginSecret {
			return fmt.Errorf("JWT secrets must be changed in production")
		}
		if c.Database.URL == "" && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	if c.Licensing.SweepInterval <= 0 {
		return fmt.Errorf("LICENSE_SWEEP_INTERVAL must be positive")
	}

	if c.Licensing.MaxKeyGenerationTries < 1 {
		c.Licensing.MaxKeyGenerationTries = 1
	}

	if c.Licensing.SweepBatchSize < 1 {
		c.Licensing.SweepBatchSize = 500
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
