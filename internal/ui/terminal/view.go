package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/credilinq/sme-healthcheck/internal/models"
)

// View renders submission outcomes on a terminal
type View struct {
	mu        sync.Mutex
	out       io.Writer
	state     interface{ Snapshot() models.FormSnapshot }
	route     string
	navigated bool
	alerts    []string
}

// NewView writes to out; state is read to list the uploaded files
func NewView(out io.Writer, state interface{ Snapshot() models.FormSnapshot }) *View {
	return &View{out: out, state: state}
}

// Navigate shows the submissions confirmation
func (v *View) Navigate(_ context.Context, route string) {
	v.mu.Lock()
	v.route = route
	v.navigated = true
	v.mu.Unlock()

	snap := v.state.Snapshot()
	fmt.Fprintln(v.out)
	fmt.Fprintf(v.out, "== Submissions (%s) ==\n", route)
	fmt.Fprintf(v.out, "Thank you. The application for %s (%s) was submitted.\n",
		snap.Form.CompanyName, snap.Form.CompanyUEN)
	fmt.Fprintf(v.out, "The report will be delivered to %s.\n", snap.Form.Email)
	fmt.Fprintln(v.out, "Uploaded files:")
	fmt.Fprint(v.out, FormatUploadStatus(snap.UploadStatus))
}

// Alert prints a blocking message
func (v *View) Alert(_ context.Context, message string) {
	v.mu.Lock()
	v.alerts = append(v.alerts, message)
	v.mu.Unlock()

	fmt.Fprintf(v.out, "\n!! %s\n", message)
}

// Navigated reports the route shown, if any
func (v *View) Navigated() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.route, v.navigated
}

// Alerts returns the alerts shown so far
func (v *View) Alerts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

// FormatErrors lists validation errors in field order, one per line
func FormatErrors(errs models.ValidationErrors) string {
	var b strings.Builder
	for _, fe := range errs.Ordered() {
		fmt.Fprintf(&b, "  - %s: %s\n", fe.Field, fe.Message)
	}
	return b.String()
}

// FormatUploadStatus renders the upload chips as "name - STATUS" lines
func FormatUploadStatus(statuses []models.UploadStatus) string {
	var b strings.Builder
	for _, st := range statuses {
		fmt.Fprintf(&b, "  %s - %s\n", st.FileName, strings.ToUpper(string(st.Status)))
	}
	return b.String()
}
