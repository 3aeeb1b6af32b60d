package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/progress-report-api/api/swagger"
	"github.com/noah-isme/progress-report-api/internal/handler"
	"github.com/noah-isme/progress-report-api/internal/middleware"
	"github.com/noah-isme/progress-report-api/internal/repository"
	"github.com/noah-isme/progress-report-api/internal/service"
	"github.com/noah-isme/progress-report-api/pkg/cache"
	"github.com/noah-isme/progress-report-api/pkg/config"
	"github.com/noah-isme/progress-report-api/pkg/database"
	"github.com/noah-isme/progress-report-api/pkg/export"
	"github.com/noah-isme/progress-report-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/progress-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/progress-report-api/pkg/middleware/requestid"
	"github.com/noah-isme/progress-report-api/pkg/storage"
)

// @title LORDS Progress Report API
// @version 2.0.0
// @description Spreadsheet ingestion, ledger editing and progress report generation
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	metrics := service.NewMetricsService()
	validate := validator.New()
	ledger := repository.NewLedgerRepository()
	checks := map[string]handler.Pinger{}

	var snapshots service.SnapshotStore
	if cfg.Snapshots.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("snapshot database unavailable", "error", err)
		}
		defer db.Close()
		repo := repository.NewSnapshotRepository(db, metrics)
		if err := repo.EnsureSchema(ctx); err != nil {
			logr.Sugar().Fatalw("snapshot schema failed", "error", err)
		}
		snapshots = repo
		checks["postgres"] = repo
	}

	var cacheRepo service.CacheRepository
	if cfg.PreviewCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("preview cache disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo
		}
	}
	previewCache := service.NewCacheService(cacheRepo, metrics, cfg.PreviewCache.TTL, logr, cacheRepo != nil)

	sync := service.NewLedgerSync(ledger, snapshots, cfg.Snapshots.Key, previewCache, metrics, logr)
	if err := sync.Restore(ctx); err != nil {
		logr.Sugar().Warnw("ledger snapshot not restored", "error", err)
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("report storage unavailable", "error", err)
	}
	// Artifacts from a previous run are unreachable once the registry resets.
	if removed, err := store.CleanupOlderThan(0); err != nil {
		logr.Sugar().Warnw("report storage sweep failed", "error", err)
	} else if len(removed) > 0 {
		logr.Sugar().Infow("stale reports removed", "count", len(removed))
	}

	ingest := service.NewIngestService(ledger, sync, metrics, service.IngestConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		MaxFiles:         cfg.Uploads.MaxFiles,
	}, logr)
	preview := service.NewPreviewService(ledger, sync, previewCache, validate, logr)
	reports := service.NewReportService(ledger, store, export.NewReportRenderer(), metrics, validate, logr, service.ReportServiceConfig{
		Institution: export.Institution{
			Name:     cfg.Reports.InstitutionName,
			Subtitle: cfg.Reports.InstitutionSubtitle,
			Lines:    cfg.Reports.InstitutionNotes,
			LogoPath: cfg.Reports.LogoPath,
		},
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
	})

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	handler.RegisterRoutes(r, handler.Handlers{
		Upload:  handler.NewUploadHandler(ingest),
		Preview: handler.NewPreviewHandler(preview),
		Reports: handler.NewReportHandler(reports),
		Metrics: handler.NewMetricsHandler(metrics, checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "workers", cfg.Reports.WorkerConcurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
