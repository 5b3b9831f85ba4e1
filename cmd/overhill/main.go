package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/overhill/internal/backup"
	"github.com/dukerupert/overhill/internal/database"
	"github.com/dukerupert/overhill/internal/email"
	"github.com/dukerupert/overhill/internal/identity"
	"github.com/dukerupert/overhill/internal/logging"
	"github.com/dukerupert/overhill/internal/push"
	"github.com/dukerupert/overhill/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.Setup(os.Getenv("OVERHILL_LOG_LEVEL"))

	port := envOr("OVERHILL_PORT", "8080")
	dbPath := envOr("OVERHILL_DB_PATH", "overhill.db")
	baseURL := envOr("OVERHILL_BASE_URL", "http://localhost:"+port)

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	identityClient := identity.NewClient(identity.Config{
		BaseURL:       os.Getenv("OVERHILL_IDENTITY_URL"),
		ServiceSecret: os.Getenv("OVERHILL_IDENTITY_SECRET"),
	})

	emailClient := email.NewClient(os.Getenv("OVERHILL_POSTMARK_TOKEN"), envOr("OVERHILL_FROM_EMAIL", "noreply@overhill.app"))

	backupInterval := 24 * time.Hour
	if raw := os.Getenv("OVERHILL_BACKUP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			backupInterval = d
		} else {
			logger.Warn("invalid backup interval, using default", "value", raw)
		}
	}
	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("OVERHILL_S3_ENDPOINT"),
			Bucket:    os.Getenv("OVERHILL_S3_BUCKET"),
			Region:    envOr("OVERHILL_S3_REGION", "auto"),
			AccessKey: os.Getenv("OVERHILL_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("OVERHILL_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("OVERHILL_BACKUP_PASSPHRASE"),
		Interval:   backupInterval,
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("OVERHILL_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("OVERHILL_VAPID_PRIVATE_KEY"),
	}

	srv := server.New(db, identityClient, emailClient, baseURL, backupCfg, pushCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if srv.BackupManager().Enabled() {
		srv.BackupManager().Start(ctx)
		logger.Info("backup schedule started", "interval", backupInterval)
	}

	// Rate limiter entries expire on their own; this just reclaims memory.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("overhill listening", "addr", fmt.Sprintf("http://localhost:%s", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	srv.BackupManager().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
