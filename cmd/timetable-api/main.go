package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-timetable-api/api/swagger"
	"github.com/noah-isme/uni-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	exportSweep     = 10 * time.Minute
)

// @title University Timetable API
// @version 1.0.0
// @description Constraint-based timetable generation, conflict detection and publishing.
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// the result cache is optional; without redis every lookup is a miss
	var redisClient *redis.Client
	if cfg.Scheduler.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	lecturerRepo := repository.NewLecturerRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	runRepo := repository.NewScheduleRunRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheEnabled && redisClient != nil)
	generatorSvc := service.NewScheduleGeneratorService(
		lecturerRepo,
		moduleRepo,
		groupRepo,
		roomRepo,
		runRepo,
		assignmentRepo,
		db,
		timetable.NewEngine(logr),
		cacheSvc,
		metrics,
		validate,
		logr,
		service.ScheduleGeneratorConfig{
			ProposalTTL:     cfg.Scheduler.ProposalTTL,
			Granularity:     cfg.Scheduler.Granularity,
			BacktrackFactor: cfg.Scheduler.BacktrackFactor,
			Timeout:         cfg.Scheduler.Timeout,
			Workers:         cfg.Scheduler.Workers,
			CacheTTL:        cfg.Scheduler.CacheTTL,
			Weights: timetable.Weights{
				PreferredTime: cfg.Scheduler.Weights.PreferredTime,
				PreferredDay:  cfg.Scheduler.Weights.PreferredDay,
				ModuleDay:     cfg.Scheduler.Weights.ModuleDay,
				Gap:           cfg.Scheduler.Weights.Gap,
			},
		},
	)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(generatorSvc, exportStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	go sweepExports(ctx, exportSvc, cfg.Exports.SignedURLTTL, logr)

	var jobSvc *service.JobService
	if cfg.Scheduler.Enabled {
		jobSvc = service.NewJobService(generatorSvc, metrics, validate, logr, service.JobConfig{Workers: cfg.Scheduler.JobWorkers})
		jobSvc.Start(ctx)
		defer jobSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	dependencies := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		dependencies["redis"] = handler.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metrics, dependencies)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	registerRoutes(api, handler.NewScheduleGeneratorHandler(generatorSvc), handler.NewExportHandler(exportSvc), jobSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerRoutes(api *gin.RouterGroup, generator *handler.ScheduleGeneratorHandler, exports *handler.ExportHandler, jobSvc *service.JobService) {
	timetables := api.Group("/timetables")
	timetables.POST("/generate", generator.Generate)
	timetables.POST("/save", generator.Save)
	timetables.POST("/conflicts", generator.Conflicts)
	timetables.GET("", generator.List)
	timetables.GET("/proposals/:id", generator.Proposal)
	timetables.PUT("/proposals/:id/assignments/:assignmentId", generator.EditAssignment)
	timetables.POST("/proposals/:id/export", exports.ExportProposal)
	timetables.GET("/:id/assignments", generator.Assignments)
	timetables.POST("/:id/export", exports.ExportRun)
	timetables.DELETE("/:id", generator.Delete)

	if jobSvc != nil {
		jobs := handler.NewJobHandler(jobSvc)
		timetables.POST("/jobs", jobs.Submit)
		timetables.GET("/jobs/:id", jobs.Get)
		timetables.DELETE("/jobs/:id", jobs.Cancel)
	}

	api.GET("/export/:token", exports.Download)
}

func sweepExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(exportSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
