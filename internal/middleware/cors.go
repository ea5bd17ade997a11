// internal/middleware/cors.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/javajoker/verifyhub/internal/config"
)

// CORS allows the configured origins plus any https origin under the allowed suffix.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return originAllowed(origin, allowed, cfg.AllowedSuffix)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Total-Count", "X-Page", "X-Per-Page"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func originAllowed(origin string, allowed map[string]bool, suffix string) bool {
	origin = strings.TrimRight(origin, "/")
	if allowed[origin] {
		return true
	}
	return suffix != "" && strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, suffix)
}
