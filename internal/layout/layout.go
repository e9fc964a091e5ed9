// Package layout renders the shared crimedesk page shell: head, styles, the
// navigation bar with its theme toggle, flash messages and the footer.
//
// Pages are built with strings.Builder and html.EscapeString. Every inline
// script and style carries the per-request CSP nonce.
package layout

import (
	"fmt"
	"html"
	"strings"

	"github.com/gabrielmiguelok/crimedesk/client"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

// ScriptPath is where the embedded client runtime is served.
const ScriptPath = "/assets/" + client.Script

// Page describes one rendered document.
type Page struct {
	// Title is shown in the browser tab, suffixed with the site name.
	Title string
	// Description is the meta description.
	Description string
	// Nonce is the CSP nonce of the current request.
	Nonce string
	// User is the signed-in user, nil for visitors.
	User *security.AuthContext
	// Flashes are one-shot messages popped for this request.
	Flashes []security.Flash
	// Active is the path of the current nav entry.
	Active string
	// Live marks the page as hosting a live component.
	Live bool
}

// NavLink is one entry of the navigation bar.
type NavLink struct {
	Label string
	URL   string
}

// SiteName is the product name used in titles and the nav logo.
const SiteName = "CrimeDesk"

// Esc escapes text for HTML content and attribute values.
func Esc(s string) string {
	return html.EscapeString(s)
}

// Document wraps body in a complete HTML document.
func Document(p Page, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html lang="en">` + "\n")
	sb.WriteString(renderHead(p))
	sb.WriteString("<body>\n")
	sb.WriteString(renderNav(p))
	sb.WriteString(`<main id="main-content" class="container">` + "\n")
	sb.WriteString(renderFlashes(p.Flashes))
	sb.WriteString(body)
	sb.WriteString("\n</main>\n")
	sb.WriteString(renderFooter())
	sb.WriteString(fmt.Sprintf(`<script src="%s" nonce="%s" defer></script>`+"\n", ScriptPath, Esc(p.Nonce)))
	sb.WriteString("</body>\n</html>")
	return sb.String()
}

func renderHead(p Page) string {
	var sb strings.Builder

	title := SiteName
	if p.Title != "" {
		title = p.Title + " | " + SiteName
	}

	sb.WriteString("<head>\n")
	sb.WriteString(`<meta charset="UTF-8">` + "\n")
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">` + "\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", Esc(title)))
	if p.Description != "" {
		sb.WriteString(fmt.Sprintf(`<meta name="description" content="%s">`+"\n", Esc(p.Description)))
	}
	sb.WriteString(fmt.Sprintf(`<meta name="theme-color" content="%s">`+"\n", lightColors["primary"]))
	sb.WriteString(`<meta name="robots" content="noindex">` + "\n")
	sb.WriteString(`<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🛡</text></svg>">` + "\n")

	// Applied before first paint so a stored dark theme never flashes light.
	sb.WriteString(fmt.Sprintf(`<script nonce="%s">%s</script>`+"\n", Esc(p.Nonce), themeBootstrap))

	sb.WriteString(fmt.Sprintf(`<style nonce="%s">`+"\n", Esc(p.Nonce)))
	sb.WriteString(RenderStyles())
	sb.WriteString("\n</style>\n")
	sb.WriteString("</head>\n")

	return sb.String()
}

// themeBootstrap mirrors the client runtime's theme lookup: the stored
// "site-theme" value wins, then the OS preference.
const themeBootstrap = `(function(){try{var t=localStorage.getItem("site-theme");` +
	`if(!t){t=window.matchMedia&&window.matchMedia("(prefers-color-scheme: dark)").matches?"dark":"light"}` +
	`document.documentElement.setAttribute("data-theme",t)}catch(e){}})();`

// Links returns the nav entries visible to user.
func Links(user *security.AuthContext) []NavLink {
	links := []NavLink{{Label: "Help", URL: "/help"}}
	if user == nil {
		return append(links,
			NavLink{Label: "Log in", URL: "/login"},
			NavLink{Label: "Register", URL: "/register"},
		)
	}
	links = append(links,
		NavLink{Label: "Dashboard", URL: "/dashboard"},
		NavLink{Label: "New report", URL: "/report"},
	)
	if user.Admin {
		links = append(links, NavLink{Label: "Admin", URL: "/admin"})
	}
	return append(links, NavLink{Label: "Log out", URL: "/logout"})
}
