package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gabrielmiguelok/crimedesk/internal/reportwizard"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/audit"
	"github.com/gabrielmiguelok/crimedesk/pkg/forms"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
	"github.com/gabrielmiguelok/crimedesk/pkg/uploads"
)

// reportSchema is the server-side check of a filed report. Location is
// optional here; a blank one is stored as store.DefaultLocation.
var reportSchema = forms.Schema{
	forms.Field(reportwizard.FieldCrimeType, forms.Required(), forms.MaxLength(50)),
	forms.Field(reportwizard.FieldDescription, forms.Required()),
	forms.Field(reportwizard.FieldLatitude, forms.Latitude()),
	forms.Field(reportwizard.FieldLongitude, forms.Longitude()),
}

var reportFields = []string{
	reportwizard.FieldCrimeType,
	reportwizard.FieldDescription,
	reportwizard.FieldLocation,
	reportwizard.FieldLatitude,
	reportwizard.FieldLongitude,
	reportwizard.FieldAdditional,
}

const multipartMemory = 1 << 20

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	auth := security.AuthFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	form := reportSchema.Trimmed(r.PostForm)
	values := make(map[string]string, len(reportFields))
	for _, f := range reportFields {
		values[f] = form.Get(f)
	}

	if errs := reportSchema.Validate(form); errs != nil {
		s.redisplayReport(w, r, values, errs.Fields(), msgFixFields)
		return
	}

	attachment, err := s.saveAttachment(r)
	if err != nil {
		if errors.Is(err, uploads.ErrFileTooLarge) {
			s.redisplayReport(w, r, values, []string{reportwizard.FieldAttachment}, "The selected file is too large.")
			return
		}
		s.serverError(w, r, err)
		return
	}

	report, err := s.store.CreateReport(r.Context(), store.Report{
		UserID:      auth.UserID,
		CrimeType:   values[reportwizard.FieldCrimeType],
		Description: values[reportwizard.FieldDescription],
		Location:    values[reportwizard.FieldLocation],
		Additional:  values[reportwizard.FieldAdditional],
		Attachment:  attachment,
		Latitude:    parseCoord(values[reportwizard.FieldLatitude]),
		Longitude:   parseCoord(values[reportwizard.FieldLongitude]),
	})
	if errors.Is(err, store.ErrInvalidInput) {
		s.redisplayReport(w, r, values, []string{reportwizard.FieldCrimeType, reportwizard.FieldDescription}, msgFixFields)
		return
	}
	if err != nil {
		s.serverError(w, r, fmt.Errorf("create report: %w", err))
		return
	}

	s.metrics.ReportSubmitted()
	ev := audit.FromRequest(r, audit.EventReportSubmitted, audit.SeverityInfo)
	ev.Details = map[string]any{"report_id": report.ID, "crime_type": report.CrimeType}
	s.audit.Log(ev)
	logging.L(r.Context()).Info("report submitted",
		logging.ReportID(report.ID),
		logging.UserID(auth.UserID),
		logging.Bool("attachment", report.Attachment != ""),
	)

	security.AddFlash(w, r, security.FlashSuccess, msgReportSubmitted)
	s.redirect(w, r, "/dashboard")
}

// saveAttachment stores the uploaded photo and returns its key. Missing files
// and files with a disallowed extension are ignored.
func (s *Server) saveAttachment(r *http.Request) (string, error) {
	file, header, err := r.FormFile(reportwizard.FieldAttachment)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("read attachment: %w", err)
	}
	file.Close()

	if header.Filename == "" || !s.uploader.Allowed(header.Filename) {
		return "", nil
	}
	entry, err := s.uploader.Save(r.Context(), header)
	if err != nil {
		return "", err
	}
	return entry.Key, nil
}

func (s *Server) redisplayReport(w http.ResponseWriter, r *http.Request, values map[string]string, failed []string, msg string) {
	p := s.page(w, r, "Report a crime", reportwizard.Path)
	p.Flashes = append(p.Flashes, security.Flash{Category: security.FlashError, Message: msg})
	s.html(w, http.StatusBadRequest, reportwizard.Redisplay(p, security.Token(r), values, failed))
}

func parseCoord(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// handleAttachment serves a photo to its reporter and to administrators.
func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	auth := security.AuthFromContext(r.Context())
	key := r.PathValue("key")

	report, err := s.store.ReportByAttachment(r.Context(), key)
	if err != nil || (report.UserID != auth.UserID && !auth.Admin) {
		http.NotFound(w, r)
		return
	}

	if err := s.uploader.Serve(w, r, key); err != nil {
		switch {
		case errors.Is(err, uploads.ErrInvalidKey):
			http.Error(w, "Bad Request", http.StatusBadRequest)
		case errors.Is(err, uploads.ErrNotFound):
			http.NotFound(w, r)
		default:
			s.serverError(w, r, fmt.Errorf("serve attachment %s: %w", key, err))
		}
	}
}
