package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/credilinq/sme-healthcheck/config"
	"github.com/credilinq/sme-healthcheck/internal/form"
	"github.com/credilinq/sme-healthcheck/internal/models"
	"github.com/credilinq/sme-healthcheck/pkg/logger"
)

func init() {
	// Initialize logger for tests
	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

var samplePDF = []byte("%PDF-1.4\n%%EOF\n")

func testSubmissionConfig(endpoint string) config.SubmissionConfig {
	return config.SubmissionConfig{
		Endpoint:         endpoint,
		Timeout:          5 * time.Second,
		SubmissionsRoute: "/submissions",
		MaxFileBytes:     1024,
	}
}

func validState(t *testing.T, fileNames ...string) *form.State {
	t.Helper()
	return fillValid(t, form.New(nil), fileNames...)
}

func fillValid(t *testing.T, s *form.State, fileNames ...string) *form.State {
	t.Helper()
	if len(fileNames) == 0 {
		fileNames = []string{"jan.pdf"}
	}

	require.NoError(t, s.SetField(models.FieldCompanyUEN, "23141543L"))
	require.NoError(t, s.SetField(models.FieldCompanyName, "Acme Pte Ltd"))
	require.NoError(t, s.SetField(models.FieldFullName, "Tan Mei Ling"))
	require.NoError(t, s.SetField(models.FieldPosition, "Director"))
	require.NoError(t, s.SetField(models.FieldEmail, "mei@acme.sg"))
	require.NoError(t, s.SetField(models.FieldReEmail, "mei@acme.sg"))
	require.NoError(t, s.SetField(models.FieldPhoneNumber, "91234567"))
	s.SetTermsAccepted(true)

	files := make([]models.Attachment, 0, len(fileNames))
	for _, n := range fileNames {
		files = append(files, models.Attachment{Name: n, ContentType: "application/pdf", Data: append([]byte(nil), samplePDF...)})
	}
	require.NoError(t, s.AttachFiles(files))
	return s
}
