package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luciosalva/control-presupuesto/internal/app"
	"github.com/luciosalva/control-presupuesto/internal/authz"
	"github.com/luciosalva/control-presupuesto/internal/catalogos"
	"github.com/luciosalva/control-presupuesto/internal/comprometidos"
	"github.com/luciosalva/control-presupuesto/internal/devengados"
	"github.com/luciosalva/control-presupuesto/internal/ledger"
	"github.com/luciosalva/control-presupuesto/internal/observability"
	"github.com/luciosalva/control-presupuesto/internal/platform/cache"
	"github.com/luciosalva/control-presupuesto/internal/platform/db"
	"github.com/luciosalva/control-presupuesto/internal/shared"
	"github.com/luciosalva/control-presupuesto/internal/suficiencias"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGStatementTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog caching disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := authz.NewTokenStore(pool)
	az := authz.Middleware{Verifier: tokens, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	catalogosRepo := catalogos.NewRepository(pool)
	var catalogosCache *catalogos.Cache
	if redisClient != nil {
		catalogosCache = catalogos.NewCache(redisClient, cfg.CatalogCacheTTL)
	}
	catalogosService := catalogos.NewService(catalogosRepo, catalogosCache)
	catalogosHandler := catalogos.NewHandler(logger, catalogosService)
	resolver := catalogos.NewResolver(catalogosRepo)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(logger, ledgerRepo, resolver, auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, az)

	suficienciasRepo := suficiencias.NewRepository(pool)
	suficienciasService := suficiencias.NewService(logger, suficienciasRepo, auditLogger, metrics)
	suficienciasHandler := suficiencias.NewHandler(logger, suficienciasService)

	comprometidosRepo := comprometidos.NewRepository(pool)
	comprometidosService := comprometidos.NewService(logger, comprometidosRepo, suficienciasService, auditLogger, metrics)
	comprometidosHandler := comprometidos.NewHandler(logger, comprometidosService)

	devengadosRepo := devengados.NewRepository(pool)
	devengadosService := devengados.NewService(logger, devengadosRepo, comprometidosService, auditLogger, metrics)
	devengadosHandler := devengados.NewHandler(logger, devengadosService, az)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Authz:               az,
		LedgerHandler:       ledgerHandler,
		CatalogosHandler:    catalogosHandler,
		SuficienciasHandler: suficienciasHandler,
		ComprometidoHandler: comprometidosHandler,
		DevengadosHandler:   devengadosHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
