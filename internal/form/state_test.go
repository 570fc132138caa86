package form

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credilinq/sme-healthcheck/internal/models"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
)

func pdfs(names ...string) []models.Attachment {
	out := make([]models.Attachment, 0, len(names))
	for _, n := range names {
		out = append(out, models.Attachment{Name: n, ContentType: "application/pdf", Data: []byte("%PDF-1.4 " + n)})
	}
	return out
}

func numbered(prefix string, n int) []models.Attachment {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d.pdf", prefix, i+1)
	}
	return pdfs(names...)
}

func fillValid(t *testing.T, s *State) {
	t.Helper()
	for field, value := range map[string]string{
		models.FieldCompanyUEN:  "23141543L",
		models.FieldCompanyName: "Acme Pte Ltd",
		models.FieldFullName:    "Tan Mei Ling",
		models.FieldPosition:    "Director",
		models.FieldEmail:       "mei@acme.sg",
		models.FieldReEmail:     "mei@acme.sg",
		models.FieldPhoneNumber: "+6591234567",
	} {
		require.NoError(t, s.SetField(field, value))
	}
	s.SetTermsAccepted(true)
	require.NoError(t, s.AttachFiles(pdfs("jan.pdf")))
}

func TestState_SetField(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.SetField(models.FieldCompanyName, "Acme"))
	require.NoError(t, s.SetField(models.FieldReEmail, "x@y.z"))

	form := s.Form()
	assert.Equal(t, "Acme", form.CompanyName)
	assert.Equal(t, "x@y.z", form.ReEmail)
}

func TestState_SetField_UnknownField(t *testing.T) {
	s := New(nil)

	err := s.SetField(models.FieldFiles, "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = s.SetField("nickname", "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestState_AttachFiles_AppendsPendingStatuses(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.AttachFiles(pdfs("a.pdf", "b.pdf")))
	require.NoError(t, s.AttachFiles(pdfs("c.pdf")))

	snap := s.Snapshot()
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, snap.FileNames)
	assert.Equal(t, []models.UploadStatus{
		{FileName: "a.pdf", Status: models.UploadPending},
		{FileName: "b.pdf", Status: models.UploadPending},
		{FileName: "c.pdf", Status: models.UploadPending},
	}, snap.UploadStatus)
	assert.Equal(t, 3, s.Remaining())
}

func TestState_AttachFiles_RejectsWholeBatchOverCapacity(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		batch    int
		accepted bool
	}{
		{"empty form exact fit", 0, 6, true},
		{"empty form one too many", 0, 7, false},
		{"partial form exact fit", 4, 2, true},
		{"partial form overflow", 4, 3, false},
		{"full form single file", 6, 1, false},
		{"full form empty batch", 6, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			require.NoError(t, s.AttachFiles(numbered("old", tt.existing)))
			before := s.Snapshot()

			err := s.AttachFiles(numbered("new", tt.batch))
			after := s.Snapshot()

			if tt.accepted {
				require.NoError(t, err)
				assert.Len(t, after.FileNames, tt.existing+tt.batch)
				assert.False(t, after.Errors.Has(models.FieldFiles))
				return
			}

			assert.ErrorIs(t, err, apperrors.ErrTooManyFiles)
			assert.Equal(t, before.FileNames, after.FileNames)
			assert.Equal(t, before.UploadStatus, after.UploadStatus)
			assert.Equal(t, "You can only upload a maximum of 6 files.", after.Errors[models.FieldFiles])
		})
	}
}

func TestState_AttachFiles_ClearsPreviousFileError(t *testing.T) {
	s := New(nil)

	require.Error(t, s.AttachFiles(numbered("x", 7)))
	require.True(t, s.Snapshot().Errors.Has(models.FieldFiles))

	require.NoError(t, s.AttachFiles(numbered("y", 2)))
	assert.False(t, s.Snapshot().Errors.Has(models.FieldFiles))
}

func TestState_Validate(t *testing.T) {
	s := New(nil)

	errs, ok := s.Validate()
	assert.False(t, ok)
	assert.True(t, errs.Has(models.FieldCompanyUEN))
	assert.Equal(t, errs, s.Snapshot().Errors)

	fillValid(t, s)
	errs, ok = s.Validate()
	assert.True(t, ok)
	assert.Empty(t, errs)
	assert.Empty(t, s.Snapshot().Errors)
}

func TestState_Validate_ReplacesSelectionError(t *testing.T) {
	s := New(nil)
	fillValid(t, s)
	require.Error(t, s.AttachFiles(numbered("x", 6)))

	_, ok := s.Validate()
	assert.True(t, ok, "a full recompute drops the stale selection error")
}

func TestState_MarkUploadsSucceeded(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AttachFiles(pdfs("a.pdf", "b.pdf")))

	s.MarkUploadsSucceeded(2)

	for _, st := range s.Snapshot().UploadStatus {
		assert.Equal(t, models.UploadSuccess, st.Status)
	}
}

func TestState_MarkUploadsSucceeded_OnlySentFiles(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AttachFiles(pdfs("a.pdf")))
	require.NoError(t, s.AttachFiles(pdfs("late.pdf")))

	s.MarkUploadsSucceeded(1)
	s.MarkUploadsSucceeded(10)

	assert.Equal(t, []models.UploadStatus{
		{FileName: "a.pdf", Status: models.UploadSuccess},
		{FileName: "late.pdf", Status: models.UploadSuccess},
	}, s.Snapshot().UploadStatus, "n is capped at the number of attachments")

	s = New(nil)
	require.NoError(t, s.AttachFiles(pdfs("a.pdf", "late.pdf")))
	s.MarkUploadsSucceeded(1)
	assert.Equal(t, models.UploadPending, s.Snapshot().UploadStatus[1].Status)
}

func TestState_ValidatedForm(t *testing.T) {
	s := New(nil)
	fillValid(t, s)

	f, errs, ok := s.ValidatedForm()
	assert.True(t, ok)
	assert.Empty(t, errs)
	assert.Equal(t, s.Form(), f)

	f.Files[0].Name = "mutated.pdf"
	assert.NotEqual(t, "mutated.pdf", s.Form().Files[0].Name)
}

func TestState_SnapshotIsACopy(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AttachFiles(pdfs("a.pdf")))

	snap := s.Snapshot()
	snap.Form.Files[0].Name = "mutated.pdf"
	snap.UploadStatus[0].Status = models.UploadFailed
	snap.Errors["x"] = "y"

	again := s.Snapshot()
	assert.Equal(t, "a.pdf", again.Form.Files[0].Name)
	assert.Equal(t, models.UploadPending, again.UploadStatus[0].Status)
	assert.False(t, again.Errors.Has("x"))
}

func TestState_ConcurrentAttachNeverExceedsLimit(t *testing.T) {
	s := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AttachFiles(numbered(fmt.Sprintf("g%d", i), 1))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Form().Files, models.MaxAttachments)
	assert.Equal(t, 0, s.Remaining())
}
