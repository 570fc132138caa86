// Package validation checks an application form against the fixed field
// formats the submission endpoint expects.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/credilinq/sme-healthcheck/internal/models"
	apperrors "github.com/credilinq/sme-healthcheck/pkg/errors"
)

var (
	// UEN: 8 digits followed by one uppercase letter, e.g. 23141543L
	uenPattern = regexp.MustCompile(`^[0-9]{8}[A-Z]$`)
	// Loose local@domain.tld. The class excludes the whole browser whitespace
	// set; RE2's \s alone is ASCII only and misses \v.
	emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)
	// Optional +65, then a mobile/landline lead digit 6, 8 or 9 and 7 more digits
	phonePattern = regexp.MustCompile(`^(\+65)?[689][0-9]{7}$`)
)

// Messages shown next to each field
var messages = map[string]string{
	models.FieldCompanyUEN:    "Invalid UEN format (e.g., 23141543L).",
	models.FieldCompanyName:   "Company Name is required.",
	models.FieldFullName:      "Full Name is required.",
	models.FieldPosition:      "Position is required.",
	models.FieldEmail:         "Invalid email format.",
	models.FieldReEmail:       "Emails do not match.",
	models.FieldPhoneNumber:   "Invalid Singapore phone number.",
	models.FieldFiles:         "At least one file must be uploaded.",
	models.FieldTermsAccepted: "You must accept the terms.",
}

// TooManyFilesMessage is recorded under the files key when a selection is rejected
const TooManyFilesMessage = "You can only upload a maximum of 6 files."

// Shown under the files key when a selection cannot be attached
const (
	UnsupportedFileMessage = "Only PDF bank statements can be uploaded. Please check the selected files."
	UnreadableFileMessage  = "The selected files could not be read. Please try again."
)

// FileErrorMessage turns an attachment error into the message shown to the user
func FileErrorMessage(err error) string {
	if errors.Is(err, apperrors.ErrUnsupportedFile) {
		return UnsupportedFileMessage
	}
	return UnreadableFileMessage
}

// applicationRules mirrors ApplicationForm with one rule per field. Every
// field is checked on every pass; nothing short-circuits.
type applicationRules struct {
	CompanyUEN    string `form:"companyUEN" validate:"uen"`
	CompanyName   string `form:"companyName" validate:"notblank"`
	FullName      string `form:"fullName" validate:"notblank"`
	Position      string `form:"position" validate:"notblank"`
	Email         string `form:"email" validate:"looseemail"`
	ReEmail       string `form:"reEmail" validate:"eqfield=Email"`
	PhoneNumber   string `form:"phoneNumber" validate:"sgphone"`
	Files         int    `form:"files" validate:"min=1"`
	TermsAccepted bool   `form:"termsAccepted" validate:"required"`
}

// Validator validates application forms
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the form's custom rules registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "notblank", notBlank)
	mustRegister(v, "uen", matches(uenPattern))
	mustRegister(v, "looseemail", matches(emailPattern))
	mustRegister(v, "sgphone", matches(phonePattern))

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validation: register " + tag + ": " + err.Error())
	}
}

// notBlank fails when nothing is left after trimming browser whitespace
func notBlank(fl validator.FieldLevel) bool {
	return trimFormSpace(fl.Field().String()) != ""
}

// isFormSpace reports the characters a browser's String.prototype.trim
// removes: tab, vertical tab, form feed, space, NBSP, BOM, the Zs category
// and the four line terminators.
func isFormSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\ufeff', '\u2028', '\u2029':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func trimFormSpace(s string) string {
	return strings.TrimFunc(s, isFormSpace)
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate returns every failing field with its message. The result is
// never nil; an empty map means the form may be submitted.
func (v *Validator) Validate(form models.ApplicationForm) models.ValidationErrors {
	rules := applicationRules{
		CompanyUEN:    form.CompanyUEN,
		CompanyName:   form.CompanyName,
		FullName:      form.FullName,
		Position:      form.Position,
		Email:         form.Email,
		ReEmail:       form.ReEmail,
		PhoneNumber:   form.PhoneNumber,
		Files:         len(form.Files),
		TermsAccepted: form.TermsAccepted,
	}

	errs := models.ValidationErrors{}
	err := v.validate.Struct(rules)
	if err == nil {
		return errs
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError only happens on programmer error
		panic(err)
	}
	for _, fe := range fieldErrors {
		errs[fe.Field()] = messageFor(fe)
	}
	return errs
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Validate runs the form through a shared Validator
func Validate(form models.ApplicationForm) models.ValidationErrors {
	defaultOnce.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator.Validate(form)
}

// IsValidUEN reports whether s is a well formed UEN
func IsValidUEN(s string) bool {
	return uenPattern.MatchString(s)
}

// IsValidEmail reports whether s looks like local@domain.tld
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPhone reports whether s is a Singapore phone number
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
