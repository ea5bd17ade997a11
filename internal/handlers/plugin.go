// internal/handlers/plugin.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/middleware"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/sessions"
	"github.com/javajoker/verifyhub/internal/utils"
)

// Defaults reported to plugins when a license carries no plan.
const (
	defaultPluginMaxDomains  = 1
	defaultPluginMaxPerMonth = 500
)

// PluginHandler serves the API called by plugins installed on customer servers.
// Every response body is flat JSON; errors are {"error": "..."}.
type PluginHandler struct {
	licenseService  *services.LicenseService
	sessionService  *services.SessionService
	settingsService *services.SettingsService
}

func NewPluginHandler(licenseService *services.LicenseService, sessionService *services.SessionService, settingsService *services.SettingsService) *PluginHandler {
	return &PluginHandler{
		licenseService:  licenseService,
		sessionService:  sessionService,
		settingsService: settingsService,
	}
}

// POST /plugin/activate
func (h *PluginHandler) Activate(c *gin.Context) {
	var req services.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, utils.FirstValidationMessage(err))
		return
	}

	license, err := h.licenseService.Activate(c.Request.Context(), req)
	if err != nil {
		respondPluginError(c, err)
		return
	}

	token, err := h.licenseService.IssuePluginToken(license)
	if err != nil {
		respondPluginError(c, err)
		return
	}

	maxDomains, maxPerMonth := defaultPluginMaxDomains, defaultPluginMaxPerMonth
	if license.Plan != nil {
		maxDomains = license.Plan.MaxDomains
		maxPerMonth = license.Plan.MaxVerificationsPerMonth
	}

	c.JSON(http.StatusOK, gin.H{
		"activated":   true,
		"pluginToken": token.Token,
		"expiresAt":   license.ExpiresAt,
		"daysLeft":    license.DaysLeftAt(time.Now()),
		"pluginType":  string(license.Channel()),
		"maxDomains":  maxDomains,
		"maxPerMonth": maxPerMonth,
	})
}

// POST /plugin/validate
// 402 tells the plugin to stop serving verifications until the license is renewed.
func (h *PluginHandler) Validate(c *gin.Context) {
	var req services.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := h.licenseService.Validate(c.Request.Context(), req)
	if err != nil {
		respondPluginError(c, err)
		return
	}

	if !result.Valid {
		c.JSON(http.StatusPaymentRequired, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /plugin/health
func (h *PluginHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// POST /plugin/email-config
func (h *PluginHandler) EmailConfig(c *gin.Context) {
	var req services.EmailConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	settings, err := h.settingsService.PluginSMTP(c.Request.Context(), req.LicenseKey)
	if err != nil {
		respondPluginError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"smtp": gin.H{
			"host":      settings.Host,
			"port":      settings.Port,
			"enableSsl": settings.EnableSSL,
			"username":  settings.Username,
			"password":  settings.Password,
			"fromEmail": settings.FromEmail,
			"fromName":  settings.FromName,
		},
	})
}

// POST /plugin/sessions
func (h *PluginHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, utils.FirstValidationMessage(err))
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), middleware.GetPluginClaims(c), req)
	if err != nil {
		respondPluginError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionPayload(session))
}

// GET /plugin/sessions/:token
func (h *PluginHandler) GetSession(c *gin.Context) {
	session, err := h.sessionService.Get(c.Request.Context(), middleware.GetPluginClaims(c), c.Param("token"))
	if err != nil {
		respondPluginError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionPayload(session))
}

// POST /plugin/sessions/:token/complete
func (h *PluginHandler) CompleteSession(c *gin.Context) {
	session, err := h.sessionService.Complete(c.Request.Context(), middleware.GetPluginClaims(c), c.Param("token"))
	if err != nil {
		respondPluginError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionPayload(session))
}

func sessionPayload(session *sessions.Session) gin.H {
	return gin.H{
		"sessionId":   session.ID,
		"token":       session.Token,
		"channel":     session.Channel,
		"domain":      session.Domain,
		"subject":     session.Subject,
		"expiresAt":   session.ExpiresAt,
		"completed":   session.CompletedAt != nil,
		"completedAt": session.CompletedAt,
	}
}
