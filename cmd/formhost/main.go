package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/credilinq/sme-healthcheck/config"
	"github.com/credilinq/sme-healthcheck/internal/attachments"
	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/handlers"
	"github.com/credilinq/sme-healthcheck/internal/middleware"
	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/internal/services"
	"github.com/credilinq/sme-healthcheck/pkg/httpclient"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
	"github.com/credilinq/sme-healthcheck/pkg/profiling"
	"github.com/credilinq/sme-healthcheck/pkg/tracing"
)

// multipart framing on top of the file bytes
const uploadOverhead = 1 << 20

// registerRoutes wires the form page, the JSON state view and the
// operational endpoints
func registerRoutes(
	router *gin.Engine,
	cfg *config.Config,
	formLimiter *middleware.RateLimiter,
	formHandler *handlers.FormHandler,
	healthHandler *handlers.HealthHandler,
) {
	maxUpload := cfg.Submission.MaxFileBytes*int64(models.MaxAttachments) + uploadOverhead

	router.GET("/", formHandler.ShowForm)
	router.POST("/form", formLimiter.Middleware(), middleware.BodySizeLimitMiddleware(maxUpload), formHandler.UpdateForm)
	router.POST("/files", formLimiter.Middleware(), middleware.BodySizeLimitMiddleware(maxUpload), formHandler.UploadFiles)
	router.GET(cfg.Submission.SubmissionsRoute, formHandler.ShowSubmissions)

	api := router.Group("/api")
	api.GET("/form", formHandler.GetForm)
	api.GET("/healthcheck", healthHandler.Healthcheck)
	api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.App.Env,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting SME HealthCheck form host",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.App.Env),
		zap.String("submit_endpoint", cfg.Submission.Endpoint),
	)

	tracerShutdown, err := tracing.InitTracer(cfg.Observability, cfg.App.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	stopProfiler, err := profiling.InitProfiler(cfg.Profiling, cfg.Observability, cfg.Submission, cfg.App.Env)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	metrics.RecordInfrastructureMetrics()

	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		logger.Fatal("Failed to load page templates", zap.Error(err))
	}

	state := form.New(nil)
	loader := attachments.NewLoader(cfg.Submission.MaxFileBytes)
	submitter := services.NewSubmissionService(cfg.Submission, httpclient.NewStandardClient(cfg.Submission.Timeout))

	formHandler := handlers.NewFormHandler(state, loader, submitter)
	healthHandler := handlers.NewHealthHandler(func() bool { return tmpl != nil })

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.Submission.MaxFileBytes * int64(models.MaxAttachments)
	router.SetHTMLTemplate(tmpl)

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "traceparent", "tracestate"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	formLimiter := middleware.NewRateLimiter(ctx, 5, 10)

	registerRoutes(router, cfg, formLimiter, formHandler, healthHandler)

	srv := &http.Server{
		Addr:              "127.0.0.1:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.Submission.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Form host started", zap.String("address", "http://"+srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down form host...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Form host exited")
}
