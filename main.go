// winrahi/main.go
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"winrahi/config"
	"winrahi/database"
	"winrahi/handlers"
	"winrahi/models"
	"winrahi/utils"
)

type Application struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	logger      *slog.Logger
	uploadDir   string
	jwtSecret   string
	storage     models.StorageService
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService    { return a.db }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Logger() *slog.Logger             { return a.logger }
func (a *Application) UploadDir() string                { return a.uploadDir }
func (a *Application) JWTSecret() string                { return a.jwtSecret }
func (a *Application) Storage() models.StorageService   { return a.storage }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- External Configuration ---
	port := utils.GetEnv("WINRAHI_PORT", "8080")
	dbPath := utils.GetEnv("WINRAHI_DB_PATH", "./winrahi.db?_journal_mode=WAL&_foreign_keys=on")
	uploadDir := utils.GetEnv("WINRAHI_UPLOAD_DIR", "./uploads")

	jwtSecret := os.Getenv("WINRAHI_JWT_SECRET")
	if jwtSecret == "" {
		// An ephemeral secret keeps dev setups working but invalidates
		// every session on restart.
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			logger.Error("Failed to generate session secret", "error", err)
			os.Exit(1)
		}
		jwtSecret = hex.EncodeToString(secretBytes)
		logger.Warn("WINRAHI_JWT_SECRET not set, using an ephemeral secret. Sessions will not survive a restart.")
	}

	rateLimitEvery, err := time.ParseDuration(utils.GetEnv("WINRAHI_RATE_EVERY", config.DefaultRateLimitEvery))
	if err != nil {
		logger.Warn("Invalid WINRAHI_RATE_EVERY duration, using default", "value", utils.GetEnv("WINRAHI_RATE_EVERY", ""), "default", config.DefaultRateLimitEvery)
		rateLimitEvery, _ = time.ParseDuration(config.DefaultRateLimitEvery)
	}
	rateLimitBurst, err := strconv.Atoi(utils.GetEnv("WINRAHI_RATE_BURST", strconv.Itoa(config.DefaultRateLimitBurst)))
	if err != nil {
		logger.Warn("Invalid WINRAHI_RATE_BURST integer, using default", "value", utils.GetEnv("WINRAHI_RATE_BURST", ""), "default", config.DefaultRateLimitBurst)
		rateLimitBurst = config.DefaultRateLimitBurst
	}
	rateLimitPrune, err := time.ParseDuration(utils.GetEnv("WINRAHI_RATE_PRUNE", config.DefaultRateLimitPrune))
	if err != nil {
		logger.Warn("Invalid WINRAHI_RATE_PRUNE duration, using default", "value", utils.GetEnv("WINRAHI_RATE_PRUNE", ""), "default", config.DefaultRateLimitPrune)
		rateLimitPrune, _ = time.ParseDuration(config.DefaultRateLimitPrune)
	}
	rateLimitExpire, err := time.ParseDuration(utils.GetEnv("WINRAHI_RATE_EXPIRE", config.DefaultRateLimitExpire))
	if err != nil {
		logger.Warn("Invalid WINRAHI_RATE_EXPIRE duration, using default", "value", utils.GetEnv("WINRAHI_RATE_EXPIRE", ""), "default", config.DefaultRateLimitExpire)
		rateLimitExpire, _ = time.ParseDuration(config.DefaultRateLimitExpire)
	}

	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Error("FATAL: Could not create uploads directory", "error", err)
		os.Exit(1)
	}

	// --- Storage Service Init ---
	var storageService models.StorageService
	if utils.GetEnv("WINRAHI_S3_ENABLED", "false") == "true" {
		endpoint := utils.GetEnv("WINRAHI_S3_ENDPOINT", "")
		accessKey := utils.GetEnv("WINRAHI_S3_ACCESS_KEY", "")
		secretKey := utils.GetEnv("WINRAHI_S3_SECRET_KEY", "")
		bucket := utils.GetEnv("WINRAHI_S3_BUCKET", "")
		region := utils.GetEnv("WINRAHI_S3_REGION", "us-east-1")
		publicURL := utils.GetEnv("WINRAHI_S3_PUBLIC_URL", "")
		useSSL := utils.GetEnv("WINRAHI_S3_USE_SSL", "true") == "true"

		var err error
		storageService, err = utils.NewS3Storage(endpoint, accessKey, secretKey, bucket, region, publicURL, useSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		logger.Info("S3 Storage initialized", "endpoint", endpoint, "bucket", bucket)
	} else {
		storageService = &utils.LocalStorage{UploadDir: uploadDir}
		logger.Info("Local Storage initialized", "dir", uploadDir)
	}

	app := &Application{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(rateLimitEvery, rateLimitBurst, rateLimitPrune, rateLimitExpire),
		logger:      logger,
		uploadDir:   uploadDir,
		jwtSecret:   jwtSecret,
		storage:     storageService,
	}

	mux := handlers.SetupRouter(app)

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("winrahi server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
