package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/credilinq/sme-healthcheck/config"
	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/models"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
	"github.com/credilinq/sme-healthcheck/pkg/httpclient"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
	"github.com/credilinq/sme-healthcheck/pkg/tracing"
)

// SubmissionAlertMessage is the only message shown when a submission fails
const SubmissionAlertMessage = "Error submitting form. Please try again later."

// RequestIDHeader correlates a submit attempt across client and endpoint logs
const RequestIDHeader = "X-Request-ID"

// SubmissionService posts a validated application to the remote endpoint
type SubmissionService struct {
	config     config.SubmissionConfig
	httpClient httpclient.Client
	throttle   *rate.Limiter
}

// NewSubmissionService creates a new submission service instance
func NewSubmissionService(cfg config.SubmissionConfig, httpClient httpclient.Client) *SubmissionService {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &SubmissionService{
		config:     cfg,
		httpClient: httpClient,
		throttle:   rate.NewLimiter(limit, 1),
	}
}

// Submit validates the form and, when it is valid, sends it in a single
// POST. Success navigates view to the submissions route; any transport
// error or non-2xx answer alerts once and leaves the form as it was so the
// user can try again. Failures are never retried.
func (s *SubmissionService) Submit(ctx context.Context, state *form.State, view View) (*models.SubmissionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SubmissionService.Submit")
	var err error
	defer func() { tracing.End(span, err) }()

	// 1. Validate and take the snapshot that will be sent, atomically
	snapshot, errs, ok := state.ValidatedForm()
	if !ok {
		metrics.FormSubmissions.WithLabelValues("invalid").Inc()
		logger.Info("Submission blocked by validation", zap.Int("errors", len(errs)))
		err = fmt.Errorf("%d fields failed validation: %w", len(errs), apperrors.ErrInvalidInput)
		return nil, err
	}

	// 2. One trigger per interval, like a button that stays disabled briefly
	if !s.throttle.Allow() {
		metrics.FormSubmissions.WithLabelValues("throttled").Inc()
		logger.Warn("Submission throttled")
		err = apperrors.ErrSubmitThrottled
		return nil, err
	}

	// 3. Encode
	payload, err := BuildPayload(snapshot)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("failed").Inc()
		logger.LogError(err, "Failed to encode submission")
		view.Alert(ctx, SubmissionAlertMessage)
		err = apperrors.SubmissionError(err)
		return nil, err
	}
	metrics.AttachedBytes.Observe(float64(payload.FileBytes))

	// 4. Labels go to success before the request is sent
	state.MarkUploadsSucceeded(len(snapshot.Files))

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("submission.request_id", requestID),
		attribute.Int("submission.files", len(snapshot.Files)),
		attribute.Int64("submission.file_bytes", payload.FileBytes),
	)

	// 5. Send
	statusCode, err := s.post(ctx, requestID, payload)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("failed").Inc()
		logger.Error("Error submitting form",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int("status_code", statusCode))
		view.Alert(ctx, SubmissionAlertMessage)
		err = apperrors.SubmissionError(err)
		return nil, err
	}

	metrics.FormSubmissions.WithLabelValues("success").Inc()
	logger.Info("Form submitted",
		zap.String("request_id", requestID),
		zap.String("company_uen", snapshot.CompanyUEN),
		zap.Int("files", len(snapshot.Files)))

	// 6. Navigate
	view.Navigate(ctx, s.config.SubmissionsRoute)

	return &models.SubmissionResult{
		RequestID:  requestID,
		StatusCode: statusCode,
		Route:      s.config.SubmissionsRoute,
	}, nil
}

// post issues the single outbound request and reports the status code
func (s *SubmissionService) post(ctx context.Context, requestID string, payload *Payload) (int, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, payload.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := s.httpClient.Do(req)
	duration := metrics.MeasureDuration(start)
	if err != nil {
		metrics.SubmitRequestDuration.WithLabelValues("error").Observe(duration)
		logger.LogAPICall("submission", "submit", "error", duration, zap.Error(err))
		return 0, fmt.Errorf("failed to call submission endpoint: %w", err)
	}
	defer resp.Body.Close()
	// The response body carries nothing we use; drain it so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SubmitRequestDuration.WithLabelValues("error").Observe(duration)
		logger.LogAPICall("submission", "submit", "error", duration, zap.Int("status_code", resp.StatusCode))
		return resp.StatusCode, fmt.Errorf("submission endpoint returned status %d", resp.StatusCode)
	}

	metrics.SubmitRequestDuration.WithLabelValues("success").Observe(duration)
	logger.LogAPICall("submission", "submit", "success", duration, zap.Int("status_code", resp.StatusCode))
	return resp.StatusCode, nil
}
