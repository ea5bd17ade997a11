// internal/handlers/portal.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/utils"
)

type PortalHandler struct {
	portalService *services.PortalService
}

func NewPortalHandler(portalService *services.PortalService) *PortalHandler {
	return &PortalHandler{
		portalService: portalService,
	}
}

// GET /portal/orders
func (h *PortalHandler) GetMyOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := h.portalService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"orders": orders,
	})
}

// POST /portal/orders
func (h *PortalHandler) CreateOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.portalService.CreateOrder(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderCreated),
		"order":   result.Order,
		"license": result.License,
	})
}

// GET /portal/dashboard-stats
func (h *PortalHandler) GetDashboardStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.portalService.DashboardStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /portal/verification-status
func (h *PortalHandler) GetVerificationStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := h.portalService.VerificationStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}

// POST /portal/verification-status/email-complete
func (h *PortalHandler) CompleteEmailVerification(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CompleteEmailVerificationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	status, err := h.portalService.CompleteEmailVerification(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserVerificationSaved),
		"status":  status,
	})
}

// POST /portal/verification-status/mobile-complete
func (h *PortalHandler) CompleteMobileVerification(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CompleteMobileVerificationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	status, err := h.portalService.CompleteMobileVerification(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserVerificationSaved),
		"status":  status,
	})
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}
