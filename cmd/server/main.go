package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/api"
	"flashdeck-backend-go/internal/config"
	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/db"
	"flashdeck-backend-go/internal/middleware"
)

func main() {
	// --- 1. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	zapLogger, err := config.NewLogger(appConfig)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	// Flush any buffered log entries before the process exits.
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded.",
		zap.String("storeBackend", appConfig.StoreBackend),
		zap.String("authMode", appConfig.AuthMode))

	// --- 3. Open the document store (and Firebase when configured) ---
	// Bound startup so a missing emulator or bad credentials fail fast instead of hanging.
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	store, clients, err := db.OpenStore(initCtx, appConfig, zapLogger)
	cancelInitCtx()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("Failed to close document store", zap.Error(err))
		}
	}()

	// --- 4. Initialize Services ---
	services := core.NewServices(store, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 5. Authentication ---
	// clients is nil for the memory backend. Keep the interface nil too so
	// NewAuthenticator can reject firebase mode without a verifier.
	var verifier middleware.TokenVerifier
	if clients != nil && clients.Auth != nil {
		verifier = clients.Auth
	}
	authMW, err := middleware.NewAuthenticator(appConfig.AuthMode, verifier, zapLogger.Named("auth"))
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to configure authentication", zap.Error(err))
	}
	if appConfig.AuthMode == config.AuthModeHeader {
		zapLogger.Warn("Trusting the X-User-ID header for identity. Do not expose this server publicly.")
	}

	// --- 6. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	// Use gin.New() instead of gin.Default() so the Zap logger and our own
	// recovery handler replace gin's built-in ones.
	router := gin.New()

	// Global middleware. Order matters: the logger wraps everything, so it also
	// records the 500 written by the recovery handler.
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	api.SetupRoutes(router, zapLogger, authMW, services)

	// --- 7. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	// Requests derive from baseCtx so that cancelling it ends open deck streams.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	// Start the server in a goroutine so that it doesn't block the shutdown handling below.
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- 8. Graceful Shutdown Handling ---
	// Wait for an interrupt signal or a listener failure.
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quitChannel:
		zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		zapLogger.Error("HTTP server failed", zap.Error(err))
	}

	// Open deck streams never go idle, so end them first or Shutdown would wait
	// out the whole timeout.
	cancelBase()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancelShutdown()

	zapLogger.Info("Attempting graceful shutdown of HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
