// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/handlers"
	"github.com/javajoker/verifyhub/internal/metrics"
	"github.com/javajoker/verifyhub/internal/middleware"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/services"
	"github.com/javajoker/verifyhub/internal/sessions"
	"github.com/javajoker/verifyhub/internal/utils"
)

// App is the wired HTTP engine plus the background pieces main has to run and stop.
type App struct {
	Engine    *gin.Engine
	Worker    *services.ExpiryWorker
	Bootstrap *services.BootstrapService
}

func Initialize(store repository.Store, sessionStore sessions.Store, cfg *config.Config) (*App, error) {
	// Token issuers never share a secret
	sessionTokens := utils.NewSessionTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)
	pluginTokens := utils.NewPluginTokenIssuer(cfg.JWT.PluginSecretKey, cfg.JWT.PluginIssuer, cfg.JWT.PluginAudience)

	// Initialize services
	storageService, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	settingsService := services.NewSettingsService(store, cfg.Platform)
	notificationService := services.NewNotificationService(settingsService, cfg.Platform)

	licenseService := services.NewLicenseService(store, pluginTokens, cfg.Licensing)
	expiryWorker := services.NewExpiryWorker(licenseService, cfg.Licensing)
	telemetryService := services.NewTelemetryService(store, licenseService, cfg.Licensing)
	exportService := services.NewExportService(telemetryService, storageService)
	sessionService := services.NewSessionService(store, sessionStore, cfg.Sessions)

	authService := services.NewAuthService(store, sessionTokens, cfg.JWT)
	userService := services.NewUserService(store)
	productService := services.NewProductService(store)
	portalService := services.NewPortalService(store, licenseService, notificationService)
	adminService := services.NewAdminService(store, licenseService, expiryWorker, notificationService, cfg.Platform)
	bootstrapService := services.NewBootstrapService(store, licenseService, cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	portalHandler := handlers.NewPortalHandler(portalService)
	pluginHandler := handlers.NewPluginHandler(licenseService, sessionService, settingsService)
	telemetryHandler := handlers.NewTelemetryHandler(telemetryService, exportService)
	adminHandler := handlers.NewAdminHandler(adminService, productService, settingsService, telemetryService, exportService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logrus.WithField("panic", recovered).WithField("path", c.FullPath()).Error("Recovered from panic")
		utils.InternalErrorResponse(c, "")
		c.Abort()
	}))
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(store))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	sessionAuth := middleware.AuthRequired(sessionTokens)

	api := r.Group("/api")
	{
		// Authentication routes
		auth := api.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", sessionAuth, authHandler.Logout)
			auth.GET("/me", sessionAuth, authHandler.Me)
		}

		// User routes
		users := api.Group("/users")
		users.Use(sessionAuth)
		{
			users.PUT("/profile", userHandler.UpdateProfile)
			users.PUT("/password", userHandler.ChangePassword)
		}

		// Catalog
		api.GET("/products", productHandler.GetProducts)

		// Customer portal
		portal := api.Group("/portal")
		portal.Use(sessionAuth)
		{
			portal.GET("/licenses", licenseHandler.GetMyLicenses)
			portal.GET("/licenses/:id/plugin-token", licenseHandler.GetPluginToken)
			portal.GET("/orders", portalHandler.GetMyOrders)
			portal.POST("/orders", portalHandler.CreateOrder)
			portal.GET("/dashboard-stats", portalHandler.GetDashboardStats)
			portal.GET("/verification-status", portalHandler.GetVerificationStatus)
			portal.POST("/verification-status/email-complete", portalHandler.CompleteEmailVerification)
			portal.POST("/verification-status/mobile-complete", portalHandler.CompleteMobileVerification)
		}

		// Telemetry
		telemetry := api.Group("/telemetry")
		{
			telemetry.POST("/push", middleware.PluginRateLimit(), middleware.PluginTokenRequired(pluginTokens), telemetryHandler.Push)
			telemetry.GET("/mine", sessionAuth, telemetryHandler.GetMine)
			telemetry.GET("/export", sessionAuth, telemetryHandler.ExportMine)
		}

		// Installed plugins
		plugin := api.Group("/plugin")
		plugin.Use(middleware.PluginRateLimit())
		{
			plugin.POST("/activate", pluginHandler.Activate)
			plugin.POST("/validate", pluginHandler.Validate)
			plugin.GET("/health", pluginHandler.Health)
			plugin.POST("/email-config", pluginHandler.EmailConfig)

			pluginSessions := plugin.Group("/sessions")
			pluginSessions.Use(middleware.PluginTokenRequired(pluginTokens))
			{
				pluginSessions.POST("", pluginHandler.CreateSession)
				pluginSessions.GET("/:token", pluginHandler.GetSession)
				pluginSessions.POST("/:token/complete", pluginHandler.CompleteSession)
			}
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(sessionAuth, middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.GetDashboardStats)
			admin.GET("/users", adminHandler.GetUsers)
			admin.POST("/expire-check", adminHandler.RunExpiryCheck)

			// License management
			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.GET("", adminHandler.GetLicenses)
				adminLicenses.POST("/:id/revoke", adminHandler.RevokeLicense)
				adminLicenses.POST("/:id/suspend", adminHandler.SuspendLicense)
				adminLicenses.POST("/:id/reactivate", adminHandler.ReactivateLicense)
			}

			admin.PUT("/plans/:id", adminHandler.UpdatePlan)

			adminTelemetry := admin.Group("/telemetry")
			{
				adminTelemetry.GET("", adminHandler.GetTelemetry)
				adminTelemetry.GET("/export", adminHandler.ExportTelemetry)
			}

			// Settings management
			adminSettings := admin.Group("/plugin-settings")
			{
				adminSettings.GET("", adminHandler.GetPluginSettings)
				adminSettings.PUT("/base-domain", adminHandler.UpdatePluginBaseDomain)
				adminSettings.GET("/smtp", adminHandler.GetSMTPSettings)
				adminSettings.PUT("/smtp", adminHandler.UpdateSMTPSettings)
			}

			adminKeys := admin.Group("/platform-keys")
			{
				adminKeys.GET("", adminHandler.GetPlatformKeys)
				adminKeys.PUT("/:id", adminHandler.UpdatePlatformKey)
			}
		}
	}

	return &App{
		Engine:    r,
		Worker:    expiryWorker,
		Bootstrap: bootstrapService,
	}, nil
}
