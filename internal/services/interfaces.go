package services

import (
	"context"

	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/models"
)

// View is the front end the submission reports back to
type View interface {
	// Navigate moves the user to route after a successful submission
	Navigate(ctx context.Context, route string)
	// Alert shows a blocking message after a failed submission
	Alert(ctx context.Context, message string)
}

// SubmissionServiceInterface defines the interface for submitting the application form
type SubmissionServiceInterface interface {
	Submit(ctx context.Context, state *form.State, view View) (*models.SubmissionResult, error)
}
