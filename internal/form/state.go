// Package form holds the single in-memory application a user is filling in.
package form

import (
	"fmt"
	"sync"

	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/internal/validation"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
	"go.uber.org/zap"
)

// Validator computes the errors for a form
type Validator interface {
	Validate(form models.ApplicationForm) models.ValidationErrors
}

// State is the form a single user session edits. All methods are safe for
// concurrent use; the web host serves one session from several goroutines.
type State struct {
	mu        sync.Mutex
	form      models.ApplicationForm
	uploads   []models.UploadStatus
	errors    models.ValidationErrors
	validator Validator
}

// New creates an empty form using v for validation passes
func New(v Validator) *State {
	if v == nil {
		v = validation.New()
	}
	return &State{
		errors:    models.ValidationErrors{},
		validator: v,
	}
}

// SetField updates one text field by its key
func (s *State) SetField(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case models.FieldCompanyUEN:
		s.form.CompanyUEN = value
	case models.FieldCompanyName:
		s.form.CompanyName = value
	case models.FieldFullName:
		s.form.FullName = value
	case models.FieldPosition:
		s.form.Position = value
	case models.FieldEmail:
		s.form.Email = value
	case models.FieldReEmail:
		s.form.ReEmail = value
	case models.FieldPhoneNumber:
		s.form.PhoneNumber = value
	default:
		return apperrors.InvalidInputError(field, "not a text field")
	}
	return nil
}

// SetTermsAccepted updates the terms checkbox
func (s *State) SetTermsAccepted(accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.TermsAccepted = accepted
}

// AttachFiles appends a batch of selected files. A batch that does not fit
// in the remaining capacity is rejected whole and existing attachments stay
// as they were.
func (s *State) AttachFiles(files []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := models.MaxAttachments - len(s.form.Files)
	if len(files) > remaining {
		s.errors[models.FieldFiles] = validation.TooManyFilesMessage
		metrics.FileSelections.WithLabelValues("rejected").Inc()
		logger.Warn("File selection rejected",
			zap.Int("selected", len(files)),
			zap.Int("attached", len(s.form.Files)))
		return apperrors.TooManyFilesError(len(files), remaining)
	}

	s.form.Files = append(s.form.Files, files...)
	for _, f := range files {
		s.uploads = append(s.uploads, models.UploadStatus{
			FileName: f.Name,
			Status:   models.UploadPending,
		})
	}
	delete(s.errors, models.FieldFiles)

	metrics.FileSelections.WithLabelValues("accepted").Inc()
	logger.Debug("Files attached",
		zap.Int("selected", len(files)),
		zap.Int("attached", len(s.form.Files)))
	return nil
}

// RecordFileError shows msg under the files field without touching attachments
func (s *State) RecordFileError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[models.FieldFiles] = msg
}

// Validate recomputes the validation errors from scratch, stores them and
// reports whether the form is valid.
func (s *State) Validate() (models.ValidationErrors, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

// ValidatedForm validates and copies the form under one lock, so the copy is
// exactly the form that passed or failed.
func (s *State) ValidatedForm() (models.ApplicationForm, models.ValidationErrors, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs, ok := s.validateLocked()
	return s.form.Clone(), errs, ok
}

func (s *State) validateLocked() (models.ValidationErrors, bool) {
	errs := s.validator.Validate(s.form)
	s.errors = errs
	for field := range errs {
		metrics.ValidationFailures.WithLabelValues(field).Inc()
	}
	return errs.Clone(), len(errs) == 0
}

// MarkUploadsSucceeded flips the labels of the first n attachments to
// success. It is called right before the request carrying those n files is
// sent; it does not reflect a server answer. Files attached later keep
// their label.
func (s *State) MarkUploadsSucceeded(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.uploads) {
		n = len(s.uploads)
	}
	for i := 0; i < n; i++ {
		s.uploads[i].Status = models.UploadSuccess
	}
}

// Form returns a copy of the current form values and attachments
func (s *State) Form() models.ApplicationForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Clone()
}

// Snapshot returns a copy of everything a front end needs to render
func (s *State) Snapshot() models.FormSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.FormSnapshot{
		Form:         s.form.Clone(),
		FileNames:    s.form.FileNames(),
		UploadStatus: append([]models.UploadStatus(nil), s.uploads...),
		Errors:       s.errors.Clone(),
	}
}

// Remaining returns how many more files can be attached
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.MaxAttachments - len(s.form.Files)
}

// String is used in debug logs; it never includes file contents
func (s *State) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("form{uen=%q files=%d terms=%t}", s.form.CompanyUEN, len(s.form.Files), s.form.TermsAccepted)
}
