package models

// Field keys shared by validation errors, the multipart payload and the web form
const (
	FieldCompanyUEN    = "companyUEN"
	FieldCompanyName   = "companyName"
	FieldFullName      = "fullName"
	FieldPosition      = "position"
	FieldEmail         = "email"
	FieldReEmail       = "reEmail"
	FieldPhoneNumber   = "phoneNumber"
	FieldFiles         = "files"
	FieldTermsAccepted = "termsAccepted"
)

// MaxAttachments is the number of files one application may carry
const MaxAttachments = 6

// FieldOrder lists the form fields in the order they are shown to the user
var FieldOrder = []string{
	FieldCompanyUEN,
	FieldCompanyName,
	FieldFullName,
	FieldPosition,
	FieldEmail,
	FieldReEmail,
	FieldPhoneNumber,
	FieldFiles,
	FieldTermsAccepted,
}

// ApplicationForm is the SME HealthCheck application as entered by the user
type ApplicationForm struct {
	// Company Info
	CompanyUEN  string `json:"companyUEN" form:"companyUEN"`
	CompanyName string `json:"companyName" form:"companyName"`

	// Applicant Info
	FullName    string `json:"fullName" form:"fullName"`
	Position    string `json:"position" form:"position"`
	Email       string `json:"email" form:"email"`
	ReEmail     string `json:"reEmail" form:"reEmail"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`

	// Bank statements
	Files []Attachment `json:"-" form:"-"`

	TermsAccepted bool `json:"termsAccepted" form:"termsAccepted"`
}

// Clone returns a copy that shares no slices with f
func (f ApplicationForm) Clone() ApplicationForm {
	out := f
	out.Files = append([]Attachment(nil), f.Files...)
	return out
}

// FileNames returns the attachment names in selection order
func (f ApplicationForm) FileNames() []string {
	names := make([]string, 0, len(f.Files))
	for _, file := range f.Files {
		names = append(names, file.Name)
	}
	return names
}

// Attachment is a file selected for upload
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the attachment size in bytes
func (a Attachment) Size() int64 {
	return int64(len(a.Data))
}

// UploadState is the label shown next to an attached file
type UploadState string

const (
	UploadPending UploadState = "pending"
	UploadSuccess UploadState = "success"
	UploadFailed  UploadState = "failed"
)

// UploadStatus tracks one attached file
type UploadStatus struct {
	FileName string      `json:"fileName"`
	Status   UploadState `json:"status"`
}

// ValidationErrors maps a field key to a human readable message.
// An empty map means the form is valid.
type ValidationErrors map[string]string

// Has reports whether field has an error
func (e ValidationErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Clone returns an independent copy of e
func (e ValidationErrors) Clone() ValidationErrors {
	out := make(ValidationErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Ordered returns the errors following FieldOrder
func (e ValidationErrors) Ordered() []FieldError {
	out := make([]FieldError, 0, len(e))
	for _, field := range FieldOrder {
		if msg, ok := e[field]; ok {
			out = append(out, FieldError{Field: field, Message: msg})
		}
	}
	return out
}

// FieldError represents a single validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormSnapshot is the read-only view of the form handed to front ends
type FormSnapshot struct {
	Form         ApplicationForm  `json:"form"`
	FileNames    []string         `json:"files"`
	UploadStatus []UploadStatus   `json:"uploadStatus"`
	Errors       ValidationErrors `json:"errors"`
}

// SubmissionResult describes a completed submit attempt
type SubmissionResult struct {
	RequestID  string `json:"requestId"`
	StatusCode int    `json:"statusCode"`
	Route      string `json:"route"`
}
