// Package attachments turns selected files into form attachments. Only PDF
// documents are accepted.
package attachments

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/credilinq/sme-healthcheck/internal/models"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
)

// PDFContentType is the only content type accepted for bank statements
const PDFContentType = "application/pdf"

// Loader reads and checks files offered for upload
type Loader struct {
	maxBytes int64
}

// NewLoader creates a loader rejecting files larger than maxBytes
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

// FromBytes checks data and wraps it as an attachment named name
func (l *Loader) FromBytes(name string, data []byte) (models.Attachment, error) {
	name = filepath.Base(name)
	if len(data) == 0 {
		return models.Attachment{}, apperrors.UnsupportedFileError(name, "file is empty")
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return models.Attachment{}, apperrors.UnsupportedFileError(name,
			fmt.Sprintf("file is larger than %d bytes", l.maxBytes))
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is(PDFContentType) {
		return models.Attachment{}, apperrors.UnsupportedFileError(name,
			fmt.Sprintf("expected a PDF, got %s", mtype.String()))
	}

	return models.Attachment{
		Name:        name,
		ContentType: PDFContentType,
		Data:        data,
	}, nil
}

// FromReader reads r fully, refusing to buffer more than the size limit
func (l *Loader) FromReader(name string, r io.Reader) (models.Attachment, error) {
	if l.maxBytes > 0 {
		r = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return l.FromBytes(name, data)
}

// LoadFile reads the file at path
func (l *Loader) LoadFile(path string) (models.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return l.FromReader(path, f)
}

// LoadFiles reads a whole selection. The batch fails as a unit: one bad file
// means none of them are returned.
func (l *Loader) LoadFiles(paths []string) ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
