package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/compiler"
	"github.com/foliobase/foliobase/internal/config"
	"github.com/foliobase/foliobase/internal/database"
	"github.com/foliobase/foliobase/internal/functions"
	"github.com/foliobase/foliobase/internal/handlers"
	"github.com/foliobase/foliobase/internal/migrate"
	"github.com/foliobase/foliobase/internal/storage"
	"github.com/foliobase/foliobase/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFormat := cfg.Log.Format
	if logFormat == "" && cfg.Server.Env == "development" {
		logFormat = "text"
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: logFormat})

	// Initialize database
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations. A failure leaves the process serving in a degraded
	// state that the health endpoint reports; it does not abort boot.
	engine := migrate.NewEngine(db.Pool, os.DirFS(cfg.DB.MigrationsPath))
	engine.ForceFresh = cfg.DB.FreshInstall
	report := engine.Run(context.Background())
	if report.Error != nil {
		logger.Error("migrations degraded", "error", report.Error, "applied", report.Applied, "pending", report.Pending)
	} else {
		logger.Info("migrations up to date", "applied", report.Applied, "lastApplied", report.LastApplied)
	}

	// Initialize storage
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	// Initialize services
	tokens := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret))
	authService := auth.NewService(auth.NewStore(db.Pool), tokens)
	executor := compiler.NewExecutor(db.Pool, compiler.New(cfg.Query.TableList()))
	registry := functions.NewRegistry()
	registerFunctions(registry, engine)

	// Initialize handlers and router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Deps{
		Tokens:     tokens,
		Auth:       handlers.NewAuthHandler(authService),
		Query:      handlers.NewQueryHandler(executor),
		Storage:    handlers.NewStorageHandler(store),
		Functions:  handlers.NewFunctionHandler(registry),
		Health:     handlers.NewHealthHandler(report),
		CORSOrigin: cfg.Server.CORSOrigin,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "backend", cfg.Backend.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// registerFunctions wires the built-in server functions.
func registerFunctions(registry *functions.Registry, engine *migrate.Engine) {
	registry.Register("migration-status", func(ctx context.Context, _ *auth.Principal, _ json.RawMessage) (any, error) {
		return engine.Status(ctx), nil
	})
}
