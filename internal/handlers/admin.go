// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/utils"
)

type AdminHandler struct {
	adminService     *services.AdminService
	productService   *services.ProductService
	settingsService  *services.SettingsService
	telemetryService *services.TelemetryService
	exportService    *services.ExportService
}

func NewAdminHandler(
	adminService *services.AdminService,
	productService *services.ProductService,
	settingsService *services.SettingsService,
	telemetryService *services.TelemetryService,
	exportService *services.ExportService,
) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		productService:   productService,
		settingsService:  settingsService,
		telemetryService: telemetryService,
		exportService:    exportService,
	}
}

// GET /admin/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	users, total, err := h.adminService.GetUsers(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/licenses
func (h *AdminHandler) GetLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminLicenseFilter{
		PaginationParams: params,
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.LicenseStatus(status)
	}
	userID, ok := optionalQueryID(c, "user_id")
	if !ok {
		return
	}
	filter.UserID = userID

	licenses, total, err := h.adminService.GetLicenses(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(licenses, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/licenses/:id/revoke
func (h *AdminHandler) RevokeLicense(c *gin.Context) {
	h.changeLicenseStatus(c, "revoke", i18n.KeyLicenseRevoked)
}

// POST /admin/licenses/:id/suspend
func (h *AdminHandler) SuspendLicense(c *gin.Context) {
	h.changeLicenseStatus(c, "suspend", i18n.KeyLicenseSuspended)
}

// POST /admin/licenses/:id/reactivate
func (h *AdminHandler) ReactivateLicense(c *gin.Context) {
	h.changeLicenseStatus(c, "reactivate", i18n.KeyLicenseReactivated)
}

func (h *AdminHandler) changeLicenseStatus(c *gin.Context, action, messageKey string) {
	lang := utils.GetLangFromContext(c)
	licenseID, ok := pathID(c, "id", "license ID")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	license, err := h.adminService.ChangeLicenseStatus(c.Request.Context(), licenseID, action, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, messageKey),
		"id":      license.ID,
		"status":  license.Status,
	})
}

// POST /admin/expire-check
func (h *AdminHandler) RunExpiryCheck(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	expired, err := h.adminService.RunExpiryCheck(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseExpiryChecked, expired),
		"expired": expired,
	})
}

// PUT /admin/plans/:id
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	planID, ok := pathID(c, "id", "plan ID")
	if !ok {
		return
	}

	var req services.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	plan, err := h.productService.UpdatePlan(c.Request.Context(), planID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPlanUpdated),
		"plan":    plan,
	})
}

// GET /admin/telemetry
func (h *AdminHandler) GetTelemetry(c *gin.Context) {
	params := utils.GetPaginationParamsWithLimit(c, 50)

	records, total, err := h.telemetryService.ListAll(c.Request.Context(), c.Query("domain"), params)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(records, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/telemetry/export
func (h *AdminHandler) ExportTelemetry(c *gin.Context) {
	req, ok := exportRequestFromQuery(c)
	if !ok {
		return
	}

	file, err := h.exportService.ExportAll(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	writeExport(c, file)
}

// GET /admin/plugin-settings
func (h *AdminHandler) GetPluginSettings(c *gin.Context) {
	settings, err := h.settingsService.PluginSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settings)
}

// PUT /admin/plugin-settings/base-domain
func (h *AdminHandler) UpdatePluginBaseDomain(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		BaseDomain string `json:"base_domain" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	settings, err := h.settingsService.UpdatePluginBaseDomain(c.Request.Context(), req.BaseDomain, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeySettingsUpdated),
		"settings": settings,
	})
}

// GET /admin/plugin-settings/smtp
// The stored password is never returned, only whether one is set.
func (h *AdminHandler) GetSMTPSettings(c *gin.Context) {
	settings, err := h.settingsService.SMTP(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	settings.Password = ""

	utils.SuccessResponse(c, settings)
}

// PUT /admin/plugin-settings/smtp
func (h *AdminHandler) UpdateSMTPSettings(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateSMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	settings, err := h.settingsService.UpdateSMTP(c.Request.Context(), req, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeySettingsUpdated),
		"settings": settings,
	})
}

// GET /admin/platform-keys
func (h *AdminHandler) GetPlatformKeys(c *gin.Context) {
	keys, err := h.adminService.PlatformKeys(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"keys": keys,
	})
}

// PUT /admin/platform-keys/:id
func (h *AdminHandler) UpdatePlatformKey(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	licenseID, ok := pathID(c, "id", "license ID")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdatePlatformKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	view, err := h.adminService.UpdatePlatformKey(c.Request.Context(), licenseID, req, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySettingsUpdated),
		"license": view,
	})
}
