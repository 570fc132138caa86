package handlers

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
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

//go:embed templates/*.html
var templateFS embed.FS

// ThrottledMessage is shown when submit is pressed again too quickly
const ThrottledMessage = "Please wait a moment before submitting again."

// LoadTemplates parses the embedded page templates
func LoadTemplates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{
			"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
		}).
		ParseFS(templateFS, "templates/*.html")
}

type pageData struct {
	Form     models.ApplicationForm
	Files    []string
	Uploads  []models.UploadStatus
	Errors   models.ValidationErrors
	Alert    string
	MaxFiles int
}

// redirectView records what the submission asked the page to do. It lives
// for a single request.
type redirectView struct {
	route     string
	navigated bool
	alert     string
}

func (v *redirectView) Navigate(_ context.Context, route string) {
	v.route = route
	v.navigated = true
}

func (v *redirectView) Alert(_ context.Context, message string) {
	v.alert = message
}

// FormHandler serves the application form page of a single session
type FormHandler struct {
	state     *form.State
	loader    *attachments.Loader
	submitter services.SubmissionServiceInterface
}

func NewFormHandler(state *form.State, loader *attachments.Loader, submitter services.SubmissionServiceInterface) *FormHandler {
	return &FormHandler{
		state:     state,
		loader:    loader,
		submitter: submitter,
	}
}

// ShowForm renders the form with its current values and errors
func (h *FormHandler) ShowForm(c *gin.Context) {
	h.render(c, http.StatusOK, "")
}

// UpdateForm stores the posted fields and any selected files. With
// action=submit the form is submitted afterwards.
func (h *FormHandler) UpdateForm(c *gin.Context) {
	if !h.applyPost(c) {
		return
	}
	if c.PostForm("action") != "submit" {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.submit(c)
}

// UploadFiles adds a multipart selection of files to the form. Text fields
// posted alongside are stored too. The whole selection is rejected if one
// file is not a PDF or if it would exceed the attachment limit.
func (h *FormHandler) UploadFiles(c *gin.Context) {
	if !h.applyPost(c) {
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// applyPost stores the text fields, then attaches the files of the request.
// It writes the response and returns false when the request stops here.
func (h *FormHandler) applyPost(c *gin.Context) bool {
	var input models.ApplicationForm
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid form data", err)
		return false
	}

	// A files-only post from a script leaves the typed values alone
	if hasTextFields(c) {
		values := map[string]string{
			models.FieldCompanyUEN:  input.CompanyUEN,
			models.FieldCompanyName: input.CompanyName,
			models.FieldFullName:    input.FullName,
			models.FieldPosition:    input.Position,
			models.FieldEmail:       input.Email,
			models.FieldReEmail:     input.ReEmail,
			models.FieldPhoneNumber: input.PhoneNumber,
		}
		for field, value := range values {
			if err := h.state.SetField(field, value); err != nil {
				respondError(c, http.StatusBadRequest, "Invalid form data", err)
				return false
			}
		}
		h.state.SetTermsAccepted(input.TermsAccepted)
	}

	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return true
	}
	mf, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid upload", err)
		return false
	}
	headers := mf.File[models.FieldFiles]
	if len(headers) == 0 {
		return true
	}

	files := make([]models.Attachment, 0, len(headers))
	for _, fh := range headers {
		a, err := h.loadPart(fh)
		if err != nil {
			metrics.FileSelections.WithLabelValues("unsupported").Inc()
			h.state.RecordFileError(validation.FileErrorMessage(err))
			attachError(c, err)
			h.render(c, http.StatusUnprocessableEntity, "")
			return false
		}
		files = append(files, a)
	}

	if err := h.state.AttachFiles(files); err != nil {
		attachError(c, err)
		h.render(c, http.StatusUnprocessableEntity, "")
		return false
	}
	return true
}

func (h *FormHandler) loadPart(fh *multipart.FileHeader) (models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return h.loader.FromReader(fh.Filename, f)
}

func hasTextFields(c *gin.Context) bool {
	for _, field := range []string{
		models.FieldCompanyUEN, models.FieldCompanyName, models.FieldFullName,
		models.FieldPosition, models.FieldEmail, models.FieldReEmail, models.FieldPhoneNumber,
	} {
		if _, ok := c.GetPostForm(field); ok {
			return true
		}
	}
	return false
}

func (h *FormHandler) submit(c *gin.Context) {
	view := &redirectView{}
	result, err := h.submitter.Submit(c.Request.Context(), h.state, view)
	switch {
	case err == nil:
		route := result.Route
		if view.navigated {
			route = view.route
		}
		c.Redirect(http.StatusSeeOther, route)
	case errors.Is(err, apperrors.ErrInvalidInput):
		attachError(c, err)
		h.render(c, http.StatusUnprocessableEntity, "")
	case errors.Is(err, apperrors.ErrSubmitThrottled):
		attachError(c, err)
		h.render(c, http.StatusTooManyRequests, ThrottledMessage)
	case errors.Is(err, apperrors.ErrSubmissionFailed):
		attachError(c, err)
		h.render(c, http.StatusBadGateway, view.alert)
	default:
		logger.Error("Unexpected submission error", zap.Error(err))
		attachError(c, err)
		h.render(c, http.StatusInternalServerError, services.SubmissionAlertMessage)
	}
}

// ShowSubmissions renders the confirmation page reached after a successful submit
func (h *FormHandler) ShowSubmissions(c *gin.Context) {
	snap := h.state.Snapshot()
	c.HTML(http.StatusOK, "submissions.html", pageData{
		Form:     snap.Form,
		Files:    snap.FileNames,
		Uploads:  snap.UploadStatus,
		Errors:   snap.Errors,
		MaxFiles: models.MaxAttachments,
	})
}

// GetForm returns the form state as JSON; file contents are never included
func (h *FormHandler) GetForm(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

func (h *FormHandler) render(c *gin.Context, status int, alert string) {
	snap := h.state.Snapshot()
	c.HTML(status, "form.html", pageData{
		Form:     snap.Form,
		Files:    snap.FileNames,
		Uploads:  snap.UploadStatus,
		Errors:   snap.Errors,
		Alert:    alert,
		MaxFiles: models.MaxAttachments,
	})
}
