package services_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/internal/services"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
	"github.com/credilinq/sme-healthcheck/pkg/httpclient"
)

// receivedSubmission is what the fake endpoint saw
type receivedSubmission struct {
	method      string
	contentType string
	requestID   string
	values      map[string][]string
	fileNames   []string
	fileBodies  [][]byte
}

type fakeEndpoint struct {
	mu       sync.Mutex
	status   int
	received []receivedSubmission
	server   *httptest.Server
}

func newFakeEndpoint(t *testing.T, status int) *fakeEndpoint {
	t.Helper()
	e := &fakeEndpoint{status: status}
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := receivedSubmission{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			requestID:   r.Header.Get(services.RequestIDHeader),
		}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			got.values = r.MultipartForm.Value
			for _, fh := range r.MultipartForm.File[models.FieldFiles] {
				got.fileNames = append(got.fileNames, fh.Filename)
				f, err := fh.Open()
				if err == nil {
					data, _ := io.ReadAll(f)
					f.Close()
					got.fileBodies = append(got.fileBodies, data)
				}
			}
		}

		e.mu.Lock()
		e.received = append(e.received, got)
		e.mu.Unlock()

		w.WriteHeader(e.status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(e.server.Close)
	return e
}

func (e *fakeEndpoint) requests() []receivedSubmission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]receivedSubmission(nil), e.received...)
}

func TestSubmissionService_Submit_Success(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusCreated)
	service := services.NewSubmissionService(testSubmissionConfig(endpoint.server.URL), httpclient.NewStandardClient(5*time.Second))
	state := validState(t, "jan.pdf", "feb.pdf")
	view := new(MockView)
	view.On("Navigate", mock.Anything, "/submissions").Return().Once()

	result, err := service.Submit(context.Background(), state, view)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "/submissions", result.Route)
	assert.NotEmpty(t, result.RequestID)

	reqs := endpoint.requests()
	require.Len(t, reqs, 1, "exactly one POST")
	got := reqs[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Contains(t, got.contentType, "multipart/form-data; boundary=")
	assert.Equal(t, result.RequestID, got.requestID)
	assert.Equal(t, map[string][]string{
		"companyUEN":    {"23141543L"},
		"companyName":   {"Acme Pte Ltd"},
		"fullName":      {"Tan Mei Ling"},
		"position":      {"Director"},
		"email":         {"mei@acme.sg"},
		"phoneNumber":   {"91234567"},
		"termsAccepted": {"true"},
	}, got.values)
	assert.Equal(t, []string{"jan.pdf", "feb.pdf"}, got.fileNames)
	assert.Equal(t, [][]byte{samplePDF, samplePDF}, got.fileBodies)

	view.AssertExpectations(t)
	view.AssertNumberOfCalls(t, "Navigate", 1)
	view.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)

	for _, st := range state.Snapshot().UploadStatus {
		assert.Equal(t, models.UploadSuccess, st.Status)
	}
}

func TestSubmissionService_Submit_SendsTheFormThatPassedValidation(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusOK)
	service := services.NewSubmissionService(testSubmissionConfig(endpoint.server.URL), httpclient.NewStandardClient(5*time.Second))
	validator := newBlockingValidator()
	state := fillValid(t, form.New(validator), "jan.pdf")
	view := new(MockView)
	view.On("Navigate", mock.Anything, "/submissions").Return().Once()

	done := make(chan error, 1)
	go func() {
		_, err := service.Submit(context.Background(), state, view)
		done <- err
	}()
	<-validator.entered

	edited := make(chan struct{})
	go func() {
		defer close(edited)
		_ = state.SetField(models.FieldCompanyName, "")
		_ = state.AttachFiles([]models.Attachment{{Name: "late.pdf", ContentType: "application/pdf", Data: samplePDF}})
	}()
	// Give the edits time to queue behind the running validation
	time.Sleep(20 * time.Millisecond)
	close(validator.release)

	require.NoError(t, <-done)
	<-edited

	reqs := endpoint.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"Acme Pte Ltd"}, reqs[0].values[models.FieldCompanyName])
	assert.Equal(t, []string{"jan.pdf"}, reqs[0].fileNames)

	assert.Equal(t, "", state.Form().CompanyName, "the edit still lands after the snapshot")
	assert.Equal(t, []models.UploadStatus{
		{FileName: "jan.pdf", Status: models.UploadSuccess},
		{FileName: "late.pdf", Status: models.UploadPending},
	}, state.Snapshot().UploadStatus, "a file that was not sent is never labelled success")
	view.AssertExpectations(t)
}

func TestSubmissionService_Submit_InvalidFormSendsNothing(t *testing.T) {
	httpClient := new(MockHTTPClient)
	service := services.NewSubmissionService(testSubmissionConfig("http://example.invalid/submit"), httpClient)
	state := form.New(nil)
	view := new(MockView)

	result, err := service.Submit(context.Background(), state, view)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.True(t, state.Snapshot().Errors.Has(models.FieldCompanyUEN))
	httpClient.AssertNotCalled(t, "Do", mock.Anything)
	view.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	view.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
}

func TestSubmissionService_Submit_NetworkFailureLeavesFormUnchanged(t *testing.T) {
	httpClient := new(MockHTTPClient)
	httpClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	service := services.NewSubmissionService(testSubmissionConfig("http://example.invalid/submit"), httpClient)
	state := validState(t, "jan.pdf", "feb.pdf")
	before := state.Form()
	view := new(MockView)
	view.On("Alert", mock.Anything, services.SubmissionAlertMessage).Return().Once()

	result, err := service.Submit(context.Background(), state, view)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrSubmissionFailed)
	assert.Equal(t, before, state.Form())
	httpClient.AssertNumberOfCalls(t, "Do", 1)
	view.AssertExpectations(t)
	view.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestSubmissionService_Submit_ServerErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			endpoint := newFakeEndpoint(t, status)
			service := services.NewSubmissionService(testSubmissionConfig(endpoint.server.URL), httpclient.NewStandardClient(5*time.Second))
			state := validState(t)
			before := state.Form()
			view := new(MockView)
			view.On("Alert", mock.Anything, services.SubmissionAlertMessage).Return().Once()

			_, err := service.Submit(context.Background(), state, view)

			assert.ErrorIs(t, err, apperrors.ErrSubmissionFailed)
			assert.Len(t, endpoint.requests(), 1)
			assert.Equal(t, before, state.Form())
			view.AssertExpectations(t)
			view.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmissionService_Submit_ResubmitAfterFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := services.NewSubmissionService(testSubmissionConfig(server.URL), httpclient.NewStandardClient(5*time.Second))
	state := validState(t)
	view := new(MockView)
	view.On("Alert", mock.Anything, services.SubmissionAlertMessage).Return().Once()
	view.On("Navigate", mock.Anything, "/submissions").Return().Once()

	_, err := service.Submit(context.Background(), state, view)
	require.ErrorIs(t, err, apperrors.ErrSubmissionFailed)

	_, err = service.Submit(context.Background(), state, view)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	view.AssertExpectations(t)
}

func TestSubmissionService_Submit_Throttled(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusOK)
	cfg := testSubmissionConfig(endpoint.server.URL)
	cfg.MinInterval = time.Hour
	service := services.NewSubmissionService(cfg, httpclient.NewStandardClient(5*time.Second))
	state := validState(t)
	view := new(MockView)
	view.On("Navigate", mock.Anything, "/submissions").Return().Once()

	_, err := service.Submit(context.Background(), state, view)
	require.NoError(t, err)

	_, err = service.Submit(context.Background(), state, view)
	assert.ErrorIs(t, err, apperrors.ErrSubmitThrottled)

	assert.Len(t, endpoint.requests(), 1)
	view.AssertExpectations(t)
}

func TestSubmissionService_Submit_CanceledContext(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusOK)
	service := services.NewSubmissionService(testSubmissionConfig(endpoint.server.URL), httpclient.NewStandardClient(5*time.Second))
	state := validState(t)
	view := new(MockView)
	view.On("Alert", mock.Anything, services.SubmissionAlertMessage).Return().Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Submit(ctx, state, view)

	assert.ErrorIs(t, err, apperrors.ErrSubmissionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, endpoint.requests())
	view.AssertExpectations(t)
}
