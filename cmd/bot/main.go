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
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/application/service"
	"github.com/ForsunJay/TGTEST/internal/auth"
	"github.com/ForsunJay/TGTEST/internal/bot"
	"github.com/ForsunJay/TGTEST/internal/config"
	"github.com/ForsunJay/TGTEST/internal/infrastructure/export"
	"github.com/ForsunJay/TGTEST/internal/infrastructure/external/telegram"
	"github.com/ForsunJay/TGTEST/internal/infrastructure/persistence/repository"
	"github.com/ForsunJay/TGTEST/internal/infrastructure/storage"
	"github.com/ForsunJay/TGTEST/internal/session"
	"github.com/ForsunJay/TGTEST/internal/wizard"
	"github.com/ForsunJay/TGTEST/pkg/database"
	"github.com/ForsunJay/TGTEST/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting reimbursement bot",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create working directories
	for _, dir := range []string{cfg.Storage.DocumentsDir, cfg.Export.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, logger)
	requestRepo := repository.NewRequestRepository(db, logger)
	commentRepo := repository.NewCommentRepository(db, logger)
	txManager := repository.NewTxManager(db, logger)

	// Initialize the permission model
	authorizer := auth.NewAuthorizer(cfg.Access)

	// Initialize the Telegram transport
	transport, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.PollTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram transport", zap.Error(err))
	}

	// Initialize application components
	documentStore := storage.NewLocalDocumentStore(cfg.Storage.DocumentsDir, logger)

	var exporter port.Exporter
	if cfg.Export.Format == "csv" {
		exporter = export.NewCSVExporter(cfg.Export.OutputDir, logger)
	} else {
		exporter = export.NewExcelExporter(cfg.Export.OutputDir, logger)
	}

	requestService := service.NewRequestService(requestRepo, commentRepo, txManager, authorizer, transport, logger)

	sessions := session.NewStore(cfg.Wizard.IdleTimeout)
	machine := wizard.NewMachine(cfg, sessions, authorizer, requestRepo, documentStore, logger)

	router := bot.NewRouter(userRepo, requestService, machine, exporter, authorizer, transport, logger)
	transport.SetHandler(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sweep idle wizard sessions periodically
	go func() {
		ticker := time.NewTicker(cfg.Wizard.IdleTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sessions.PurgeExpired(); removed > 0 {
					logger.Debug("Purged idle sessions", zap.Int("count", removed))
				}
			}
		}
	}()

	// Start the health server
	srv := newHealthServer(cfg, logger)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Start consuming updates
	go func() {
		if err := transport.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Telegram transport stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exited successfully")
}

// newHealthServer builds the HTTP server exposing liveness
func newHealthServer(cfg *config.Config, logger *zap.Logger) *http.Server {
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "reimbursement-bot",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
