// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthAccountDisabled    = "auth.account_disabled"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthLoginSuccess       = "auth.login_success"

	// Users
	KeyUserNotFound          = "user.not_found"
	KeyUserProfileUpdated    = "user.profile_updated"
	KeyUserPasswordChanged   = "user.password_changed"
	KeyUserVerificationSaved = "user.verification_saved"

	// Licenses
	KeyLicenseNotFound       = "license.not_found"
	KeyLicenseExpired        = "license.expired"
	KeyLicenseInvalidState   = "license.invalid_state"
	KeyLicenseDomainConflict = "license.domain_conflict"
	KeyLicenseRevoked        = "license.revoked"
	KeyLicenseSuspended      = "license.suspended"
	KeyLicenseReactivated    = "license.reactivated"
	KeyLicenseExpiryChecked  = "license.expiry_checked"

	// Products and plans
	KeyProductNotFound = "product.not_found"
	KeyPlanNotFound    = "plan.not_found"
	KeyPlanUpdated     = "plan.updated"

	// Orders
	KeyOrderNotFound = "order.not_found"
	KeyOrderCreated  = "order.created"

	// Telemetry
	KeyTelemetryNotFound = "telemetry.not_found"

	// Sessions
	KeySessionNotFound = "session.not_found"
	KeySessionExpired  = "session.expired"

	// Settings
	KeySettingsUpdated = "settings.updated"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// System
	KeySystemUnavailable = "system.unavailable"
	KeySystemError       = "system.error"
	KeyRateLimited       = "system.rate_limited"
)
