// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/middleware"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/sessions"
	"github.com/javajoker/verifyhub/internal/utils"
)

type HandlersTestSuite struct {
	suite.Suite

	ctx           context.Context
	store         *repository.MemoryStore
	sessionTokens *utils.SessionTokenIssuer
	pluginTokens  *utils.PluginTokenIssuer
	licenses      *services.LicenseService
	router        *gin.Engine

	user    *models.User
	admin   *models.User
	product models.Product
	starter models.Plan
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *HandlersTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemoryStore()
	s.sessionTokens = utils.NewSessionTokenIssuer("session-secret-for-tests-0123456789", time.Hour)
	s.pluginTokens = utils.NewPluginTokenIssuer("plugin-secret-for-tests-9876543210", "VerifyHubPortal", "VerifyHubPlugin")
	licensing := config.LicensingConfig{SweepInterval: time.Hour, SweepBatchSize: 100, MaxKeyGenerationTries: 5}

	s.product = models.Product{BaseModel: models.BaseModel{ID: uuid.New()}, Name: "Email Verify", Slug: models.ProductSlugEmail, IsActive: true}
	s.starter = models.Plan{BaseModel: models.BaseModel{ID: uuid.New()}, Name: "Starter", PriceUSD: 49, DurationDays: 365, MaxDomains: 1, MaxVerificationsPerMonth: 500}
	s.store.SeedProduct(s.product, s.starter)
	s.starter.ProductID = s.product.ID

	s.user = s.createUser("owner@example.com", models.UserRoleCustomer)
	s.admin = s.createUser("admin@example.com", models.UserRoleAdmin)

	settingsService := services.NewSettingsService(s.store, config.PlatformConfig{BaseDomain: "https://api.verifyhub.io"})
	s.licenses = services.NewLicenseService(s.store, s.pluginTokens, licensing)
	worker := services.NewExpiryWorker(s.licenses, licensing)
	telemetryService := services.NewTelemetryService(s.store, s.licenses, licensing)
	storage, err := services.NewStorageService(config.AWSConfig{})
	s.Require().NoError(err)
	exportService := services.NewExportService(telemetryService, storage)
	sessionService := services.NewSessionService(s.store, sessions.NewMemoryStore(), config.SessionConfig{})
	adminService := services.NewAdminService(s.store, s.licenses, worker, nil, config.PlatformConfig{})
	productService := services.NewProductService(s.store)
	portalService := services.NewPortalService(s.store, s.licenses, nil)

	pluginHandler := NewPluginHandler(s.licenses, sessionService, settingsService)
	telemetryHandler := NewTelemetryHandler(telemetryService, exportService)
	licenseHandler := NewLicenseHandler(s.licenses)
	adminHandler := NewAdminHandler(adminService, productService, settingsService, telemetryService, exportService)
	portalHandler := NewPortalHandler(portalService)

	r := gin.New()
	r.Use(middleware.I18nMiddleware("en"))
	sessionAuth := middleware.AuthRequired(s.sessionTokens)
	pluginAuth := middleware.PluginTokenRequired(s.pluginTokens)

	api := r.Group("/api")
	api.POST("/plugin/activate", pluginHandler.Activate)
	api.POST("/plugin/validate", pluginHandler.Validate)
	api.POST("/plugin/email-config", pluginHandler.EmailConfig)
	api.POST("/plugin/sessions", pluginAuth, pluginHandler.CreateSession)
	api.POST("/plugin/sessions/:token/complete", pluginAuth, pluginHandler.CompleteSession)
	api.POST("/telemetry/push", pluginAuth, telemetryHandler.Push)
	api.GET("/telemetry/export", sessionAuth, telemetryHandler.ExportMine)
	api.GET("/portal/licenses", sessionAuth, licenseHandler.GetMyLicenses)
	api.GET("/portal/licenses/:id/plugin-token", sessionAuth, licenseHandler.GetPluginToken)
	api.GET("/portal/verification-status", sessionAuth, portalHandler.GetVerificationStatus)
	api.POST("/portal/verification-status/email-complete", sessionAuth, portalHandler.CompleteEmailVerification)
	api.POST("/portal/verification-status/mobile-complete", sessionAuth, portalHandler.CompleteMobileVerification)
	admin := api.Group("/admin", sessionAuth, middleware.AdminRequired())
	admin.POST("/licenses/:id/suspend", adminHandler.SuspendLicense)
	admin.POST("/expire-check", adminHandler.RunExpiryCheck)
	s.router = r
}

func (s *HandlersTestSuite) createUser(email string, role models.UserRole) *models.User {
	user := &models.User{Email: email, Name: "Test", Role: role, IsActive: true}
	s.Require().NoError(user.SetPassword("a-long-password"))
	s.Require().NoError(s.store.CreateUser(s.ctx, user))
	return user
}

func (s *HandlersTestSuite) issue() *models.License {
	license, err := s.licenses.Create(s.ctx, services.CreateLicenseParams{
		UserID:    s.user.ID,
		ProductID: s.product.ID,
		PlanID:    s.starter.ID,
	})
	s.Require().NoError(err)
	return license
}

// storeExpired writes a license that expired yesterday straight to the store.
func (s *HandlersTestSuite) storeExpired() *models.License {
	issued := time.Now().UTC().AddDate(-1, 0, -1)
	license := &models.License{
		UserID:         s.user.ID,
		ProductID:      s.product.ID,
		PlanID:         s.starter.ID,
		Key:            "EML-DEAD-0000-0000-0001",
		KeyPrefix:      models.KeyPrefixEmail,
		Status:         models.LicenseStatusActive,
		IssuedAt:       issued,
		ExpiresAt:      time.Now().UTC().AddDate(0, 0, -1),
		UsageResetDate: issued.AddDate(0, 1, 0),
	}
	s.Require().NoError(s.store.CreateLicense(s.ctx, license))
	return license
}

func (s *HandlersTestSuite) sessionToken(user *models.User) string {
	token, _, err := s.sessionTokens.Issue(user.ID, user.Email, user.Name, string(user.Role))
	s.Require().NoError(err)
	return token
}

func (s *HandlersTestSuite) do(method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *HandlersTestSuite) activate(key, domain string) map[string]interface{} {
	w := s.do(http.MethodPost, "/api/plugin/activate", gin.H{"licenseKey": key, "domain": domain}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return s.decode(w)
}

func (s *HandlersTestSuite) TestActivate() {
	license := s.issue()

	body := s.activate(license.Key, "shop.example.com")

	s.Equal(true, body["activated"])
	s.Equal("email", body["pluginType"])
	s.Equal(float64(1), body["maxDomains"])
	s.Equal(float64(500), body["maxPerMonth"])
	s.NotEmpty(body["pluginToken"])

	claims, err := s.pluginTokens.Validate(body["pluginToken"].(string))
	s.Require().NoError(err)
	s.Equal("shop.example.com", claims.Domain)
}

func (s *HandlersTestSuite) TestActivate_DomainConflictIsFlat409() {
	license := s.issue()
	s.activate(license.Key, "shop.example.com")

	w := s.do(http.MethodPost, "/api/plugin/activate", gin.H{"licenseKey": license.Key, "domain": "other.example.com"}, "")

	s.Equal(http.StatusConflict, w.Code)
	body := s.decode(w)
	s.Contains(body["error"], "shop.example.com")
	s.NotContains(body, "success")
}

func (s *HandlersTestSuite) TestActivate_BadInput() {
	w := s.do(http.MethodPost, "/api/plugin/activate", gin.H{"licenseKey": "not-a-key", "domain": "shop.example.com"}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.NotEmpty(s.decode(w)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/plugin/activate", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersTestSuite) TestActivate_ExpiredIs402() {
	license := s.storeExpired()

	w := s.do(http.MethodPost, "/api/plugin/activate", gin.H{"licenseKey": license.Key, "domain": "shop.example.com"}, "")

	s.Equal(http.StatusPaymentRequired, w.Code)
}

func (s *HandlersTestSuite) TestActivate_StoreFailureIs503() {
	license := s.issue()
	s.store.FailNext("FindLicenseByKey", context.DeadlineExceeded)

	w := s.do(http.MethodPost, "/api/plugin/activate", gin.H{"licenseKey": license.Key, "domain": "shop.example.com"}, "")

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.NotEmpty(s.decode(w)["error"])
}

func (s *HandlersTestSuite) TestValidate() {
	license := s.issue()
	s.activate(license.Key, "shop.example.com")

	w := s.do(http.MethodPost, "/api/plugin/validate", gin.H{"licenseKey": license.Key, "domain": "shop.example.com"}, "")
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal(true, body["valid"])
	s.Equal("Active", body["status"])
	s.Equal(float64(500), body["verificationsLeft"])
}

func (s *HandlersTestSuite) TestValidate_ExpiredIs402() {
	license := s.storeExpired()

	w := s.do(http.MethodPost, "/api/plugin/validate", gin.H{"licenseKey": license.Key}, "")

	s.Equal(http.StatusPaymentRequired, w.Code)
	body := s.decode(w)
	s.Equal(false, body["valid"])
	s.Equal("Expired", body["status"])
}

func (s *HandlersTestSuite) TestValidate_UnknownKeyIs402() {
	w := s.do(http.MethodPost, "/api/plugin/validate", gin.H{"licenseKey": "EML-0000-0000-0000-0000"}, "")

	s.Equal(http.StatusPaymentRequired, w.Code)
	s.Equal("NotFound", s.decode(w)["status"])
}

func (s *HandlersTestSuite) TestEmailConfig_NotConfigured() {
	license := s.issue()

	w := s.do(http.MethodPost, "/api/plugin/email-config", gin.H{"licenseKey": license.Key}, "")

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestTelemetryPush_RequiresPluginToken() {
	license := s.issue()
	payload := gin.H{"licenseKey": license.Key, "snapshotJson": "{}"}

	w := s.do(http.MethodPost, "/api/telemetry/push", payload, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.NotEmpty(s.decode(w)["error"])

	// A portal session token is not a plugin token.
	w = s.do(http.MethodPost, "/api/telemetry/push", payload, s.sessionToken(s.user))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestTelemetryPush() {
	license := s.issue()
	token := s.activate(license.Key, "shop.example.com")["pluginToken"].(string)

	w := s.do(http.MethodPost, "/api/telemetry/push", gin.H{
		"licenseKey":   license.Key,
		"sessionId":    "abc",
		"snapshotJson": `{"ip":"203.0.113.9"}`,
	}, token)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal(true, body["received"])
	s.NotEmpty(body["recordId"])
	s.Equal(1, s.store.TelemetryCount())
}

func (s *HandlersTestSuite) TestSessions() {
	license := s.issue()
	token := s.activate(license.Key, "shop.example.com")["pluginToken"].(string)

	w := s.do(http.MethodPost, "/api/plugin/sessions", gin.H{"channel": "mobile"}, token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := s.decode(w)
	s.Equal("mobile", created["channel"])
	s.Equal(false, created["completed"])

	path := "/api/plugin/sessions/" + created["token"].(string) + "/complete"
	w = s.do(http.MethodPost, path, nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, s.decode(w)["completed"])

	w = s.do(http.MethodPost, path, nil, token)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestPortalLicenses_Envelope() {
	license := s.issue()

	w := s.do(http.MethodGet, "/api/portal/licenses", nil, s.sessionToken(s.user))

	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal(true, body["success"])
	data := body["data"].(map[string]interface{})
	list := data["licenses"].([]interface{})
	s.Require().Len(list, 1)
	s.Equal(license.Key, list[0].(map[string]interface{})["key"])
}

func (s *HandlersTestSuite) TestPortalPluginToken_OtherUsersLicense() {
	license := s.issue()

	w := s.do(http.MethodGet, "/api/portal/licenses/"+license.ID.String()+"/plugin-token", nil, s.sessionToken(s.admin))

	s.Equal(http.StatusNotFound, w.Code)
	body := s.decode(w)
	s.Equal(false, body["success"])
	s.Equal("NOT_FOUND", body["error"].(map[string]interface{})["code"])
}

func (s *HandlersTestSuite) TestPortalVerificationFlow() {
	token := s.sessionToken(s.user)

	w := s.do(http.MethodPost, "/api/portal/verification-status/mobile-complete", nil, token)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(false, s.decode(w)["success"])

	w = s.do(http.MethodPost, "/api/portal/verification-status/email-complete", gin.H{"email": "someone@example.com"}, token)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/portal/verification-status/email-complete", gin.H{"email": "Owner@Example.com"}, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/portal/verification-status/mobile-complete", gin.H{"session_id": "sess-1"}, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/portal/verification-status", nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	data := s.decode(w)["data"].(map[string]interface{})
	s.Equal("owner@example.com", data["email"])
	s.Equal(true, data["email_verified"])
	s.Equal(true, data["mobile_verified"])
	s.NotNil(data["verification_completed_at"])
}

func (s *HandlersTestSuite) TestPortalRequiresSession() {
	w := s.do(http.MethodGet, "/api/portal/licenses", nil, "")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(false, s.decode(w)["success"])
}

func (s *HandlersTestSuite) TestAdmin_SuspendLicense() {
	license := s.issue()
	path := "/api/admin/licenses/" + license.ID.String() + "/suspend"

	w := s.do(http.MethodPost, path, nil, s.sessionToken(s.user))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path, nil, s.sessionToken(s.admin))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	data := s.decode(w)["data"].(map[string]interface{})
	s.Equal("Suspended", data["status"])

	w = s.do(http.MethodPost, path, nil, s.sessionToken(s.admin))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("INVALID_STATE", s.decode(w)["error"].(map[string]interface{})["code"])

	w = s.do(http.MethodPost, "/api/admin/licenses/not-a-uuid/suspend", nil, s.sessionToken(s.admin))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestAdmin_RunExpiryCheck() {
	s.storeExpired()

	w := s.do(http.MethodPost, "/api/admin/expire-check", nil, s.sessionToken(s.admin))

	s.Require().Equal(http.StatusOK, w.Code)
	data := s.decode(w)["data"].(map[string]interface{})
	s.Equal(float64(1), data["expired"])
	s.Equal("Expiry check completed: 1 licenses expired", data["message"])
}

func (s *HandlersTestSuite) TestTelemetryExport_CSV() {
	license := s.issue()
	token := s.activate(license.Key, "shop.example.com")["pluginToken"].(string)
	w := s.do(http.MethodPost, "/api/telemetry/push", gin.H{"licenseKey": license.Key}, token)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/telemetry/export?format=csv", nil, s.sessionToken(s.user))

	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("1", w.Header().Get("X-Export-Rows"))
	s.Contains(w.Header().Get("Content-Disposition"), "attachment;")
	s.Contains(w.Body.String(), "shop.example.com")

	w = s.do(http.MethodGet, "/api/telemetry/export?format=pdf", nil, s.sessionToken(s.user))
	s.Equal(http.StatusBadRequest, w.Code)
}
