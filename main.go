package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/audit"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/crypto"
	"github.com/dbdeck/dbdeck-engine/pkg/database"
	"github.com/dbdeck/dbdeck-engine/pkg/handlers"
	"github.com/dbdeck/dbdeck-engine/pkg/logging"
	"github.com/dbdeck/dbdeck-engine/pkg/middleware"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("store_host", cfg.Store.Host),
		zap.Int("store_port", cfg.Store.Port),
		zap.String("store_database", cfg.Store.Database))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Store.ConnectionString(),
		MaxConnections: cfg.Store.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to metadata store", zap.Error(err))
	}
	defer store.Close()

	migrationDB, err := sql.Open("pgx", cfg.Store.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Store.MigrationsPath, logger); err != nil {
		migrationDB.Close()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrationDB.Close()

	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to create credential encryptor", zap.Error(err))
	}

	poolManager := datasource.NewPoolManager(datasource.PoolManagerConfig{
		TTLMinutes:   cfg.Pools.TTLMinutes,
		PoolMaxConns: cfg.Pools.MaxConns,
		PoolMinConns: cfg.Pools.MinConns,
	}, logger)
	defer poolManager.Close()

	connectionRepo := repositories.NewConnectionRepository(store)
	historyRepo := repositories.NewHistoryRepository(store)

	auditor := audit.NewSecurityAuditor(logger)

	connectionService := services.NewConnectionService(connectionRepo, poolManager, encryptor, cfg, logger)
	schemaService := services.NewSchemaService(connectionService, logger)
	queryService := services.NewQueryService(connectionService, historyRepo, auditor, cfg, logger)
	browseService := services.NewBrowseService(connectionService, historyRepo, auditor, cfg, logger)
	exportService := services.NewExportService(connectionService, historyRepo, cfg, logger)
	historyService := services.NewHistoryService(historyRepo, logger)

	historyService.RunScheduler(ctx, cfg.History.SweepInterval(), cfg.History.RetentionDays)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, connectionService, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(schemaService, browseService, exportService, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(queryService, logger).RegisterRoutes(mux)
	handlers.NewHistoryHandler(historyService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting dbdeck-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
