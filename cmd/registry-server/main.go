// Package main provides the contract registry server entry point.
// The server hosts the service registry, fixture, mock, verification,
// deployment and audit APIs in a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contracthub/contract-registry/pkg/apispec"
	"github.com/contracthub/contract-registry/pkg/cache"
	"github.com/contracthub/contract-registry/pkg/deployments"
	"github.com/contracthub/contract-registry/pkg/events"
	"github.com/contracthub/contract-registry/pkg/fixtures"
	"github.com/contracthub/contract-registry/pkg/mockserver"
	"github.com/contracthub/contract-registry/pkg/registry"
	"github.com/contracthub/contract-registry/pkg/tenancy"
	"github.com/contracthub/contract-registry/pkg/verification"
)

const apiVersion = "v1alpha1"

func main() {
	var (
		listenAddr    string
		databaseType  string
		databaseDSN   string
		tenancyMode   string
		retentionDays int
		cacheSize     int
		cacheTTL      time.Duration
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&tenancyMode, "tenancy-mode", "single", "Tenancy mode (single or header)")
	flag.IntVar(&retentionDays, "audit-retention-days", 90, "Days to keep audit events (0 disables cleanup)")
	flag.IntVar(&cacheSize, "mock-cache-size", 256, "Max cached mock handler sets")
	flag.DurationVar(&cacheTTL, "mock-cache-ttl", 10*time.Minute, "TTL for cached mock handler sets")
	flag.Parse()

	if v := os.Getenv("REGISTRY_TENANCY_MODE"); v != "" && tenancyMode == "single" {
		tenancyMode = v
	}
	if v := os.Getenv("REGISTRY_AUDIT_RETENTION_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			retentionDays = parsed
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	log.Info("starting contract registry server",
		"listen", listenAddr,
		"dbType", databaseType,
		"tenancyMode", tenancyMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	eventStore := events.NewStore(db)
	sink := events.NewAuditSink(eventStore, log)

	registryStore := registry.NewStore(db)
	fixtureStore := fixtures.NewStore(db, registryStore, sink)
	verificationStore := verification.NewStore(db, registryStore, sink)
	deploymentStore := deployments.NewStore(db, registryStore, sink)

	for _, m := range []interface{ AutoMigrate() error }{
		eventStore, registryStore, fixtureStore, verificationStore, deploymentStore,
	} {
		if err := m.AutoMigrate(); err != nil {
			log.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	synthesizer := mockserver.NewSynthesizer(
		fixtureStore,
		registryStore,
		apispec.NewParser(),
		cache.New[*mockserver.HandlerSet](cacheSize, cacheTTL),
	)
	fixtureStore.SetInvalidator(synthesizer)

	if retentionDays > 0 {
		retention := events.NewRetentionWorker(eventStore, retentionDays, log)
		go retention.Run(ctx)
	}

	router := buildRouter(tenancy.Mode(tenancyMode),
		registryStore, fixtureStore, verificationStore, deploymentStore, eventStore, synthesizer)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	log.Info("contract registry server ready", "listen", listenAddr)

	<-ctx.Done()

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("contract registry server stopped")
}

func buildRouter(mode tenancy.Mode,
	registryStore *registry.Store,
	fixtureStore *fixtures.Store,
	verificationStore *verification.Store,
	deploymentStore *deployments.Store,
	eventStore *events.Store,
	synthesizer *mockserver.Synthesizer,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tenancy.TenantHeader, tenancy.UserHeader},
		ExposedHeaders:   []string{"Link", mockserver.MatchHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(tenancy.NewMiddleware(mode))

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Mount("/api/registry/"+apiVersion, registry.Router(registryStore))
	r.Mount("/api/fixtures/"+apiVersion, fixtures.Router(fixtureStore))
	r.Mount("/api/verification/"+apiVersion, verification.Router(verificationStore))
	r.Mount("/api/deployments/"+apiVersion, deployments.Router(deploymentStore))
	r.Mount("/api/audit/"+apiVersion, events.Router(eventStore))
	r.Mount("/mock", mockserver.Router(synthesizer))

	return r
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "postgres"
		}
	}

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch dbType {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres or sqlite)", dbType)
	}
}
