package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

const timeLayout = "2006-01-02 15:04"

func (s *Server) handleSplash(w http.ResponseWriter, r *http.Request) {
	p := s.page(w, r, "", "/")
	p.Description = "Report crimes in your neighbourhood and follow their investigation."

	var sb strings.Builder
	sb.WriteString(`<section class="card">` + "\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", layout.Esc(layout.SiteName)))
	sb.WriteString(`<p>Report incidents in a few guided steps, attach a photo and follow the status of every report you file.</p>` + "\n")
	if p.User != nil {
		sb.WriteString(`<p><a href="/report" class="btn btn-primary">Report a crime</a> <a href="/dashboard" class="btn btn-secondary">My reports</a></p>` + "\n")
	} else {
		sb.WriteString(`<p><a href="/register" class="btn btn-primary">Get started</a> <a href="/login" class="btn btn-secondary">Log in</a></p>` + "\n")
	}
	sb.WriteString(`</section>`)

	s.html(w, http.StatusOK, layout.Document(p, sb.String()))
}

var helpSections = []struct{ title, body string }{
	{"Filing a report", "Open New report and go through the three steps. Type of crime and description are required on the first step, the location on the second. The last step shows a summary before you submit."},
	{"Location", "Type an address or use the location button to fill in your current coordinates. Your browser asks for permission first."},
	{"Photos", "You can attach one png, jpg, jpeg or gif image per report."},
	{"Following up", "Your dashboard lists every report with its current status and the history of status changes made by staff."},
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	p := s.page(w, r, "Help", "/help")

	var sb strings.Builder
	sb.WriteString("<h1>Help</h1>\n")
	for _, sec := range helpSections {
		sb.WriteString(fmt.Sprintf(`<section class="card"><h2>%s</h2><p>%s</p></section>`+"\n",
			layout.Esc(sec.title), layout.Esc(sec.body)))
	}
	s.html(w, http.StatusOK, layout.Document(p, sb.String()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	auth := security.AuthFromContext(r.Context())
	p := s.page(w, r, "My reports", "/dashboard")
	reports := s.store.ReportsByUser(r.Context(), auth.UserID)

	var sb strings.Builder
	sb.WriteString("<h1>My reports</h1>\n")
	if len(reports) == 0 {
		sb.WriteString(`<p class="muted">You have not filed any report yet. <a href="/report">Report a crime</a>.</p>`)
		s.html(w, http.StatusOK, layout.Document(p, sb.String()))
		return
	}

	sb.WriteString(`<table><thead><tr><th>#</th><th>Type</th><th>Description</th><th>Location</th><th>Status</th><th>Filed</th><th>Photo</th><th>History</th></tr></thead><tbody>` + "\n")
	names := make(map[int64]string)
	for _, rep := range reports {
		sb.WriteString("<tr>")
		sb.WriteString(fmt.Sprintf("<td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>",
			rep.ID, layout.Esc(rep.CrimeType), layout.Esc(rep.Description), layout.Esc(rep.Location),
			layout.Badge(rep.Status), formatTime(rep.Timestamp)))
		sb.WriteString("<td>" + attachmentLink(rep.Attachment) + "</td>")
		sb.WriteString("<td>" + s.history(r, rep.Audits, names) + "</td>")
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</tbody></table>")

	s.html(w, http.StatusOK, layout.Document(p, sb.String()))
}

// history renders an audit trail. names caches usernames across rows.
func (s *Server) history(r *http.Request, audits []store.Audit, names map[int64]string) string {
	if len(audits) == 0 {
		return `<span class="muted">No changes</span>`
	}
	var sb strings.Builder
	sb.WriteString(`<ul class="audit">`)
	for _, a := range audits {
		name, ok := names[a.ChangedBy]
		if !ok {
			name = fmt.Sprintf("#%d", a.ChangedBy)
			if u, err := s.store.User(r.Context(), a.ChangedBy); err == nil {
				name = u.Username
			}
			names[a.ChangedBy] = name
		}
		sb.WriteString(fmt.Sprintf("<li>%s: %s → %s by %s</li>",
			formatTime(a.Timestamp), layout.Esc(a.OldStatus), layout.Esc(a.NewStatus), layout.Esc(name)))
	}
	sb.WriteString(`</ul>`)
	return sb.String()
}

func attachmentLink(key string) string {
	if key == "" {
		return `<span class="muted">None</span>`
	}
	return fmt.Sprintf(`<a href="/attachments/%s" target="_blank" rel="noopener">View</a>`, layout.Esc(url.PathEscape(key)))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf(`<time datetime="%s">%s</time>`, t.UTC().Format(time.RFC3339), t.UTC().Format(timeLayout))
}
