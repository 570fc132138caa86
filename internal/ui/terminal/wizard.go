// Package terminal is the interactive command line front end of the
// application form.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/credilinq/sme-healthcheck/internal/attachments"
	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/internal/services"
	"github.com/credilinq/sme-healthcheck/internal/validation"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
)

type textField struct {
	key     string
	message string
	help    string
}

var textFields = []textField{
	{models.FieldCompanyUEN, "Company UEN", "8 digits followed by an uppercase letter, e.g. 23141543L"},
	{models.FieldCompanyName, "Company Name", ""},
	{models.FieldFullName, "Full Name", ""},
	{models.FieldPosition, "Position within Company", ""},
	{models.FieldEmail, "Email", "The report will be delivered to this email address."},
	{models.FieldReEmail, "Re-enter Email", ""},
	{models.FieldPhoneNumber, "Mobile Number (+65)", "8 digits starting with 6, 8 or 9; the +65 prefix is optional"},
}

const uploadInstructions = `Upload Documents
  - PDFs (not scanned copies) of the company's operating bank statements for the past 6 months.
  - If today is 02 Dec 24, upload bank statements from Jun 24 to Nov 24 (both months inclusive).
  - If your company is multi-banked, upload 6 months of bank statements for each account.
  - Remove password protection from files before uploading to avoid submission issues.
  - Facing issues? Contact support@credlinq.ai.`

const termsText = `Terms and Conditions
  - I confirm that I am the authorized person to upload bank statements on behalf of my company.
  - I assure that the uploaded bank statements and provided company information match and are of
    the same company. If there is a mismatch, my report will not be generated.
  - I understand that this is a general report based on the bank statements, and Credilinq is not
    providing a solution or guiding me for my business growth.
  - I have read and understand the Terms & Conditions (https://smehealthcheck.credilinq.ai/terms-and-conditions).`

// Wizard walks the user through the form and submits it
type Wizard struct {
	driver    PromptDriver
	state     *form.State
	loader    *attachments.Loader
	submitter services.SubmissionServiceInterface
	view      services.View
}

// NewWizard creates a wizard editing state
func NewWizard(
	driver PromptDriver,
	state *form.State,
	loader *attachments.Loader,
	submitter services.SubmissionServiceInterface,
	view services.View,
) *Wizard {
	return &Wizard{
		driver:    driver,
		state:     state,
		loader:    loader,
		submitter: submitter,
		view:      view,
	}
}

// Run collects every field, then submits until the submission succeeds or
// the user gives up. Invalid fields are asked again after each failed
// validation pass.
func (w *Wizard) Run(ctx context.Context) (*models.SubmissionResult, error) {
	if err := w.driver.Info(ctx, "SME HealthCheck - Get Started\n\nCompany and Applicant Information"); err != nil {
		return nil, err
	}
	for _, f := range textFields {
		if err := w.askText(ctx, f); err != nil {
			return nil, err
		}
	}
	if err := w.askFiles(ctx); err != nil {
		return nil, err
	}
	if err := w.askTerms(ctx); err != nil {
		return nil, err
	}

	for {
		result, err := w.submitter.Submit(ctx, w.state, w.view)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, apperrors.ErrInvalidInput):
			if err := w.fix(ctx); err != nil {
				return nil, err
			}
		case errors.Is(err, apperrors.ErrSubmitThrottled), errors.Is(err, apperrors.ErrSubmissionFailed):
			if errors.Is(err, apperrors.ErrSubmitThrottled) {
				if infoErr := w.driver.Info(ctx, "Please wait a moment before submitting again."); infoErr != nil {
					return nil, infoErr
				}
			}
			again, askErr := w.driver.Confirm(ctx, ConfirmConfig{
				Name:    "resubmit",
				Message: "Submit again?",
				Default: true,
			})
			if askErr != nil {
				return nil, askErr
			}
			if !again {
				return nil, err
			}
		default:
			return nil, err
		}
	}
}

// fix shows the current errors and asks again for the fields that have one
func (w *Wizard) fix(ctx context.Context) error {
	errs := w.state.Snapshot().Errors
	if err := w.driver.Info(ctx, "Please correct the following:\n"+FormatErrors(errs)); err != nil {
		return err
	}

	for _, f := range textFields {
		if errs.Has(f.key) {
			if err := w.askText(ctx, f); err != nil {
				return err
			}
		}
	}
	if errs.Has(models.FieldFiles) {
		if err := w.askFiles(ctx); err != nil {
			return err
		}
	}
	if errs.Has(models.FieldTermsAccepted) {
		if err := w.askTerms(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wizard) askText(ctx context.Context, f textField) error {
	current := w.state.Form()
	value, err := w.driver.Input(ctx, InputConfig{
		Name:    f.key,
		Message: f.message,
		Default: fieldValue(current, f.key),
		Help:    f.help,
	})
	if err != nil {
		return err
	}
	return w.state.SetField(f.key, value)
}

func (w *Wizard) askFiles(ctx context.Context) error {
	if err := w.driver.Info(ctx, uploadInstructions); err != nil {
		return err
	}

	for {
		remaining := w.state.Remaining()
		if remaining == 0 {
			return w.driver.Info(ctx, fmt.Sprintf("%d files attached, which is the maximum.", models.MaxAttachments))
		}

		raw, err := w.driver.Input(ctx, InputConfig{
			Name:    models.FieldFiles,
			Message: fmt.Sprintf("Bank statement PDFs to add (comma separated, up to %d more; empty to continue)", remaining),
		})
		if err != nil {
			return err
		}
		paths := splitPaths(raw)
		if len(paths) == 0 {
			return nil
		}

		files, err := w.loader.LoadFiles(paths)
		if err != nil {
			metrics.FileSelections.WithLabelValues("unsupported").Inc()
			logger.Warn("File selection not attached", zap.Error(err))
			msg := validation.FileErrorMessage(err)
			w.state.RecordFileError(msg)
			if infoErr := w.driver.Info(ctx, "  "+msg); infoErr != nil {
				return infoErr
			}
			continue
		}

		if err := w.state.AttachFiles(files); err != nil {
			msg := w.state.Snapshot().Errors[models.FieldFiles]
			if infoErr := w.driver.Info(ctx, "  "+msg); infoErr != nil {
				return infoErr
			}
			continue
		}

		if err := w.driver.Info(ctx, "Uploaded Files:\n"+FormatUploadStatus(w.state.Snapshot().UploadStatus)); err != nil {
			return err
		}
	}
}

func (w *Wizard) askTerms(ctx context.Context) error {
	if err := w.driver.Info(ctx, termsText); err != nil {
		return err
	}
	accepted, err := w.driver.Confirm(ctx, ConfirmConfig{
		Name:    models.FieldTermsAccepted,
		Message: "By ticking, you are confirming that you have understood and are agreeing to the details mentioned",
		Default: w.state.Form().TermsAccepted,
	})
	if err != nil {
		return err
	}
	w.state.SetTermsAccepted(accepted)
	return nil
}

func fieldValue(f models.ApplicationForm, key string) string {
	switch key {
	case models.FieldCompanyUEN:
		return f.CompanyUEN
	case models.FieldCompanyName:
		return f.CompanyName
	case models.FieldFullName:
		return f.FullName
	case models.FieldPosition:
		return f.Position
	case models.FieldEmail:
		return f.Email
	case models.FieldReEmail:
		return f.ReEmail
	case models.FieldPhoneNumber:
		return f.PhoneNumber
	}
	return ""
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
