package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/credilinq/sme-healthcheck/config"
	"github.com/credilinq/sme-healthcheck/internal/attachments"
	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/services"
	"github.com/credilinq/sme-healthcheck/internal/ui/terminal"
	"github.com/credilinq/sme-healthcheck/pkg/httpclient"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
	"github.com/credilinq/sme-healthcheck/pkg/tracing"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.App.Env,
		Console:     true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	tracerShutdown, err := tracing.InitTracer(cfg.Observability, cfg.App.Env)
	if err != nil {
		logger.Error("Failed to initialize tracer", zap.Error(err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()
	defer func() {
		if pushErr := metrics.Push(cfg.Metrics.PushgatewayURL, "sme_healthcheck_cli", cfg.Observability.ServiceInstanceID); pushErr != nil {
			logger.Warn("Failed to push metrics", zap.Error(pushErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := form.New(nil)
	submitter := services.NewSubmissionService(cfg.Submission, httpclient.NewStandardClient(cfg.Submission.Timeout))
	wizard := terminal.NewWizard(
		terminal.NewSurveyDriver(),
		state,
		attachments.NewLoader(cfg.Submission.MaxFileBytes),
		submitter,
		terminal.NewView(os.Stdout, state),
	)

	result, err := wizard.Run(ctx)
	switch {
	case err == nil:
		logger.Info("Application submitted",
			zap.String("request_id", result.RequestID),
			zap.Int("status_code", result.StatusCode))
		return 0
	case errors.Is(err, terminal.ErrAborted), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Cancelled. Nothing was submitted.")
		return 130
	default:
		logger.Error("Application not submitted", zap.Error(err))
		return 1
	}
}
