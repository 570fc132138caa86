package services_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/internal/validation"
)

// MockView is a mock implementation of services.View
type MockView struct {
	mock.Mock
}

func (m *MockView) Navigate(ctx context.Context, route string) {
	m.Called(ctx, route)
}

func (m *MockView) Alert(ctx context.Context, message string) {
	m.Called(ctx, message)
}

// MockHTTPClient is a mock implementation of httpclient.Client
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

// blockingValidator holds its first validation pass open until release is
// closed, so tests can queue edits against the form while it runs
type blockingValidator struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	inner   *validation.Validator
}

func newBlockingValidator() *blockingValidator {
	return &blockingValidator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   validation.New(),
	}
}

func (v *blockingValidator) Validate(f models.ApplicationForm) models.ValidationErrors {
	v.once.Do(func() {
		close(v.entered)
		<-v.release
	})
	return v.inner.Validate(f)
}
