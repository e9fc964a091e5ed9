package layout

import (
	"fmt"
	"strings"

	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

func renderNav(p Page) string {
	var sb strings.Builder

	sb.WriteString(`<a href="#main-content" class="skip-link">Skip to main content</a>` + "\n")
	sb.WriteString(`<nav class="nav" aria-label="Main navigation">` + "\n")
	sb.WriteString(`<div class="container nav-inner">` + "\n")
	sb.WriteString(fmt.Sprintf(`<a href="/" class="logo" aria-label="Home">🛡 %s</a>`+"\n", Esc(SiteName)))

	sb.WriteString(`<div class="nav-links">` + "\n")
	for _, link := range Links(p.User) {
		class := "btn btn-ghost"
		current := ""
		if link.URL == p.Active {
			class += " active"
			current = ` aria-current="page"`
		}
		sb.WriteString(fmt.Sprintf(`<a href="%s" class="%s"%s>%s</a>`+"\n",
			Esc(link.URL), class, current, Esc(link.Label)))
	}
	if p.User != nil {
		sb.WriteString(fmt.Sprintf(`<span class="nav-user" data-tooltip="Signed in">%s</span>`+"\n", Esc(p.User.Username)))
	}
	sb.WriteString(`<button type="button" id="themeToggle" class="btn btn-ghost" aria-label="Toggle dark mode" data-tooltip="Toggle theme">◐</button>` + "\n")
	sb.WriteString(`</div>` + "\n")

	sb.WriteString(`</div>` + "\n")
	sb.WriteString(`</nav>` + "\n")
	return sb.String()
}

func renderFlashes(flashes []security.Flash) string {
	if len(flashes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<div class="flashes" role="status">` + "\n")
	for _, f := range flashes {
		sb.WriteString(fmt.Sprintf(`<div class="flash flash-%s">%s</div>`+"\n", Esc(f.Category), Esc(f.Message)))
	}
	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

func renderFooter() string {
	return `<footer class="footer" role="contentinfo"><div class="container">` +
		`<p>In an emergency call your local emergency number. Reports filed here are reviewed by staff.</p>` +
		`</div></footer>` + "\n"
}

// Badge renders a report status pill.
func Badge(status string) string {
	return fmt.Sprintf(`<span class="badge badge-%s">%s</span>`, Esc(strings.ToLower(status)), Esc(status))
}

// CSRFField renders the hidden form field carrying token.
func CSRFField(token string) string {
	return fmt.Sprintf(`<input type="hidden" name="_csrf" value="%s">`, Esc(token))
}
