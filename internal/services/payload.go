package services

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/credilinq/sme-healthcheck/internal/models"
)

// Payload is an encoded multipart/form-data request body
type Payload struct {
	Body        *bytes.Buffer
	ContentType string
	FileBytes   int64
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// BuildPayload encodes the form the way the submission endpoint expects it:
// the text fields first, then one "files" part per attachment in selection
// order. The confirmation email is not sent.
func BuildPayload(f models.ApplicationForm) (*Payload, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ key, value string }{
		{models.FieldCompanyUEN, f.CompanyUEN},
		{models.FieldCompanyName, f.CompanyName},
		{models.FieldFullName, f.FullName},
		{models.FieldPosition, f.Position},
		{models.FieldEmail, f.Email},
		{models.FieldPhoneNumber, f.PhoneNumber},
		{models.FieldTermsAccepted, strconv.FormatBool(f.TermsAccepted)},
	}
	for _, field := range fields {
		if err := w.WriteField(field.key, field.value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", field.key, err)
		}
	}

	var fileBytes int64
	for _, file := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			models.FieldFiles, quoteEscaper.Replace(file.Name)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create part for %s: %w", file.Name, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Name, err)
		}
		fileBytes += file.Size()
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return &Payload{
		Body:        body,
		ContentType: w.FormDataContentType(),
		FileBytes:   fileBytes,
	}, nil
}
