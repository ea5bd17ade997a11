// internal/handlers/errors.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/utils"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:       http.StatusNotFound,
	services.KindInvalidState:   http.StatusForbidden,
	services.KindExpired:        http.StatusPaymentRequired,
	services.KindDomainConflict: http.StatusConflict,
	services.KindMalformedInput: http.StatusBadRequest,
	services.KindUnauthorized:   http.StatusUnauthorized,
	services.KindConflict:       http.StatusConflict,
	services.KindForbidden:      http.StatusForbidden,
}

var kindCode = map[services.ErrorKind]string{
	services.KindNotFound:       "NOT_FOUND",
	services.KindInvalidState:   "INVALID_STATE",
	services.KindExpired:        "EXPIRED",
	services.KindDomainConflict: "DOMAIN_CONFLICT",
	services.KindMalformedInput: "BAD_REQUEST",
	services.KindUnauthorized:   "UNAUTHORIZED",
	services.KindConflict:       "CONFLICT",
	services.KindForbidden:      "FORBIDDEN",
}

// respondError writes err in the portal envelope. Anything that is not a domain
// error is an infrastructure failure and reported as unavailable.
func respondError(c *gin.Context, err error) {
	kind, ok := services.KindOf(err)
	if !ok {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.UnavailableResponse(c)
		return
	}
	utils.ErrorResponse(c, kindStatus[kind], kindCode[kind], err.Error(), nil)
}

// respondPluginError writes err as the flat {error} body installed plugins parse.
func respondPluginError(c *gin.Context, err error) {
	kind, ok := services.KindOf(err)
	if !ok {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Plugin request failed")
		utils.PluginError(c, http.StatusServiceUnavailable, i18n.T(utils.GetLangFromContext(c), i18n.KeySystemUnavailable))
		return
	}
	utils.PluginError(c, kindStatus[kind], err.Error())
}

// currentUserID reads the authenticated user id, writing a 401 when it is missing.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	lang := utils.GetLangFromContext(c)

	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "user ID"), nil)
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, label), nil)
		return uuid.Nil, false
	}
	return id, true
}

// optionalQueryID parses an optional uuid query parameter.
func optionalQueryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return nil, false
	}
	return &id, true
}
