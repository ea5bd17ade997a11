// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

// PluginClaimsKey is the context key holding *utils.PluginClaims.
const PluginClaimsKey = "plugin_claims"

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	// Extract token from "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthRequired admits requests carrying a valid session token.
func AuthRequired(sessions *utils.SessionTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		claims, err := sessions.Validate(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := utils.GetUserRoleFromContext(c)
		if !exists || role != string(models.UserRoleAdmin) {
			utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAdminAccessDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}

// PluginTokenRequired admits requests carrying a valid plugin token. Plugins read
// a flat {"error": ...} body, not the portal envelope.
func PluginTokenRequired(plugins *utils.PluginTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": i18n.T(lang, i18n.KeyAuthRequired)})
			return
		}

		claims, err := plugins.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": i18n.T(lang, i18n.KeyAuthInvalidToken)})
			return
		}

		c.Set(PluginClaimsKey, claims)
		c.Next()
	}
}

func GetPluginClaims(c *gin.Context) *utils.PluginClaims {
	if v, exists := c.Get(PluginClaimsKey); exists {
		if claims, ok := v.(*utils.PluginClaims); ok {
			return claims
		}
	}
	return nil
}
