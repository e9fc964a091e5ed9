package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/audit"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

// ExportHeader is the first row of the CSV export.
var ExportHeader = []string{"id", "user", "crime_type", "description", "location", "status", "timestamp"}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	result := s.store.Search(r.Context(), store.Query{Text: q, Page: page, PageSize: s.pageSize})
	p := s.page(w, r, "Admin", "/admin")

	var sb strings.Builder
	sb.WriteString("<h1>Admin panel</h1>\n")

	sb.WriteString(`<div class="grid">`)
	for _, t := range []struct {
		label string
		n     int
	}{
		{"Total reports", result.Totals.Total},
		{store.StatusPending, result.Totals.Pending},
		{store.StatusInvestigating, result.Totals.Investigating},
		{store.StatusResolved, result.Totals.Resolved},
	} {
		sb.WriteString(fmt.Sprintf(`<div class="card"><div class="muted">%s</div><div class="stat">%d</div></div>`, layout.Esc(t.label), t.n))
	}
	sb.WriteString("</div>\n")

	sb.WriteString(`<form class="search" method="get" action="/admin" role="search">`)
	sb.WriteString(fmt.Sprintf(`<input name="q" class="form-control" placeholder="Search description, location, type or user" aria-label="Search" value="%s">`, layout.Esc(q)))
	sb.WriteString(`<button type="submit" class="btn btn-primary">Search</button>`)
	sb.WriteString(fmt.Sprintf(`<a class="btn btn-secondary" href="/admin/export?q=%s" data-tooltip="Download the filtered reports">Export CSV</a>`, url.QueryEscape(q)))
	sb.WriteString("</form>\n")

	if len(result.Reports) == 0 {
		sb.WriteString(`<p class="muted">No reports found.</p>`)
	} else {
		sb.WriteString(`<table><thead><tr><th>#</th><th>User</th><th>Type</th><th>Description</th><th>Location</th><th>Filed</th><th>Photo</th><th>Status</th></tr></thead><tbody>` + "\n")
		for _, l := range result.Reports {
			sb.WriteString("<tr>")
			sb.WriteString(fmt.Sprintf("<td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>",
				l.ID, layout.Esc(l.Username), layout.Esc(l.CrimeType), layout.Esc(l.Description), layout.Esc(l.Location),
				formatTime(l.Timestamp), attachmentLink(l.Attachment), statusSelect(l.ID, l.Status)))
			sb.WriteString("</tr>\n")
		}
		sb.WriteString("</tbody></table>\n")
	}

	sb.WriteString(pagination(q, result.Page, result.TotalPages))
	s.html(w, http.StatusOK, layout.Document(p, sb.String()))
}

// statusSelect is picked up by the client runtime, which posts changes to
// /update_status/{id}.
func statusSelect(id int64, current string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<select class="form-control status-select" data-report="%d" aria-label="Status of report %d">`, id, id))
	for _, st := range store.Statuses {
		selected := ""
		if st == current {
			selected = " selected"
		}
		sb.WriteString(fmt.Sprintf(`<option value="%s"%s>%s</option>`, st, selected, st))
	}
	sb.WriteString("</select>")
	return sb.String()
}

func pagination(q string, page, total int) string {
	if total <= 1 {
		return ""
	}
	link := func(n int) string {
		v := url.Values{"page": {strconv.Itoa(n)}}
		if q != "" {
			v.Set("q", q)
		}
		return "/admin?" + v.Encode()
	}

	var sb strings.Builder
	sb.WriteString(`<nav class="pagination" aria-label="Pages">`)
	if page > 1 {
		sb.WriteString(fmt.Sprintf(`<a class="btn btn-secondary" href="%s">Previous</a>`, layout.Esc(link(page-1))))
	}
	sb.WriteString(fmt.Sprintf(`<span class="muted">Page %d of %d</span>`, page, total))
	if page < total {
		sb.WriteString(fmt.Sprintf(`<a class="btn btn-secondary" href="%s">Next</a>`, layout.Esc(link(page+1))))
	}
	sb.WriteString("</nav>")
	return sb.String()
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	rows := s.store.Export(r.Context(), q)

	ev := audit.FromRequest(r, audit.EventReportsExported, audit.SeverityInfo)
	ev.Details = map[string]any{"query": q, "rows": len(rows)}
	s.audit.Log(ev)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=reports.csv")
	if err := WriteCSV(w, rows); err != nil {
		logging.L(r.Context()).Warn("export interrupted", logging.Err(err))
	}
}

// WriteCSV writes the export header followed by one row per listing.
// Newlines in descriptions are flattened to spaces.
func WriteCSV(w io.Writer, rows []store.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, l := range rows {
		ts := ""
		if !l.Timestamp.IsZero() {
			ts = l.Timestamp.Format(time.RFC3339)
		}
		description := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(l.Description)
		if err := cw.Write([]string{
			strconv.FormatInt(l.ID, 10),
			l.Username,
			l.CrimeType,
			description,
			l.Location,
			l.Status,
			ts,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type statusRequest struct {
	Status *string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	auth := security.AuthFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Report not found"})
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing status"})
		return
	}

	change, err := s.store.UpdateStatus(r.Context(), id, *req.Status, auth.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Report not found"})
		return
	case errors.Is(err, store.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid status"})
		return
	case err != nil:
		s.serverError(w, r, fmt.Errorf("update status of report %d: %w", id, err))
		return
	}

	audit.LogStatusChange(s.audit, r, id, change.OldStatus, change.NewStatus)
	s.metrics.StatusChanged(change.NewStatus)
	logging.L(r.Context()).Info("report status changed",
		logging.ReportID(id),
		logging.String("from", change.OldStatus),
		logging.String("to", change.NewStatus),
		logging.UserID(auth.UserID),
	)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
