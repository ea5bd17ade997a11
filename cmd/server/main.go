// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/database"
	"github.com/javajoker/verifyhub/internal/i18n"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/router"
	"github.com/javajoker/verifyhub/internal/sessions"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if err := database.SeedInitialData(db); err != nil {
		logrus.WithError(err).Fatal("Failed to seed initial data")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sessionStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize session store")
	}

	// Initialize router
	app, err := router.Initialize(repository.NewGormStore(db), sessionStore, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize router")
	}

	if err := app.Bootstrap.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to bootstrap accounts")
	}
	app.Worker.Start(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.Engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	app.Worker.Stop()
	stop()

	logrus.Info("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// newSessionStore uses Redis when REDIS_URL is set, otherwise an in-process store
// swept in the background until ctx ends.
func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, error) {
	if cfg.Redis.URL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := sessions.Connect(pingCtx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		logrus.Info("Verification sessions stored in Redis")
		return sessions.NewRedisStore(client), nil
	}

	store := sessions.NewMemoryStore()
	go store.Run(ctx, cfg.Sessions.SweepInterval)
	logrus.Info("Verification sessions stored in memory")
	return store, nil
}
