// internal/handlers/telemetry.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/middleware"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/utils"
)

type TelemetryHandler struct {
	telemetryService *services.TelemetryService
	exportService    *services.ExportService
}

func NewTelemetryHandler(telemetryService *services.TelemetryService, exportService *services.ExportService) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryService: telemetryService,
		exportService:    exportService,
	}
}

// POST /telemetry/push
func (h *TelemetryHandler) Push(c *gin.Context) {
	var req services.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.PluginError(c, http.StatusBadRequest, utils.FirstValidationMessage(err))
		return
	}

	recordID, err := h.telemetryService.Push(c.Request.Context(), req, middleware.GetPluginClaims(c))
	if err != nil {
		respondPluginError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"recordId": recordID,
	})
}

// GET /telemetry/mine
func (h *TelemetryHandler) GetMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := optionalQueryID(c, "license_id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	records, total, err := h.telemetryService.ListMine(c.Request.Context(), userID, licenseID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(records, total, params))
}

// GET /telemetry/export
func (h *TelemetryHandler) ExportMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	req, ok := exportRequestFromQuery(c)
	if !ok {
		return
	}

	file, err := h.exportService.ExportForUser(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	writeExport(c, file)
}

func exportRequestFromQuery(c *gin.Context) (services.ExportRequest, bool) {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		respondError(c, err)
		return services.ExportRequest{}, false
	}
	licenseID, ok := optionalQueryID(c, "license_id")
	if !ok {
		return services.ExportRequest{}, false
	}
	archive, _ := strconv.ParseBool(c.DefaultQuery("archive", "false"))

	return services.ExportRequest{
		Format:    format,
		LicenseID: licenseID,
		Domain:    c.Query("domain"),
		Archive:   archive,
	}, true
}

// writeExport streams the file, or returns the archive location when it was
// uploaded instead.
func writeExport(c *gin.Context, file *services.ExportFile) {
	if file.Archive != nil {
		utils.SuccessResponse(c, gin.H{
			"filename": file.Filename,
			"rows":     file.Rows,
			"archive":  file.Archive,
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("X-Export-Rows", strconv.Itoa(file.Rows))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
