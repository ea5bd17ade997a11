// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// GET /portal/licenses
func (h *LicenseHandler) GetMyLicenses(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	licenses, err := h.licenseService.ListUserLicenses(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"licenses": licenses,
	})
}

// GET /portal/licenses/:id/plugin-token
func (h *LicenseHandler) GetPluginToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := pathID(c, "id", "license ID")
	if !ok {
		return
	}

	token, err := h.licenseService.PluginTokenFor(c.Request.Context(), userID, licenseID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, token)
}
