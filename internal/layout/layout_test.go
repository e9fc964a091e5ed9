package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

func TestDocument_Visitor(t *testing.T) {
	doc := Document(Page{Title: "Help", Nonce: "n0nce", Active: "/help"}, "<p>body</p>")

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>Help | CrimeDesk</title>")
	assert.Contains(t, doc, `<script nonce="n0nce">`)
	assert.Contains(t, doc, `<style nonce="n0nce">`)
	assert.Contains(t, doc, `src="/assets/crimedesk.js" nonce="n0nce"`)
	assert.Contains(t, doc, `id="themeToggle"`)
	assert.Contains(t, doc, `href="/login"`)
	assert.Contains(t, doc, `href="/help" class="btn btn-ghost active" aria-current="page"`)
	assert.NotContains(t, doc, `href="/admin"`)
	assert.Contains(t, doc, "<p>body</p>")
}

func TestDocument_EscapesAndFlashes(t *testing.T) {
	doc := Document(Page{
		Title: "<x>",
		User:  &security.AuthContext{Username: "<b>eve</b>"},
		Flashes: []security.Flash{
			{Category: security.FlashError, Message: "Invalid credentials."},
		},
	}, "")

	assert.Contains(t, doc, "&lt;x&gt;")
	assert.Contains(t, doc, "&lt;b&gt;eve&lt;/b&gt;")
	assert.Contains(t, doc, `<div class="flash flash-error">Invalid credentials.</div>`)
	assert.Contains(t, doc, `href="/logout"`)
}

func TestLinks(t *testing.T) {
	labels := func(links []NavLink) []string {
		var out []string
		for _, l := range links {
			out = append(out, l.Label)
		}
		return out
	}

	assert.Equal(t, []string{"Help", "Log in", "Register"}, labels(Links(nil)))
	assert.Equal(t, []string{"Help", "Dashboard", "New report", "Log out"},
		labels(Links(&security.AuthContext{Username: "ana"})))
	assert.Contains(t, labels(Links(&security.AuthContext{Username: "root", Admin: true})), "Admin")
}

func TestRenderStyles_StableAndThemed(t *testing.T) {
	css := RenderStyles()
	assert.Equal(t, css, RenderStyles())
	assert.Contains(t, css, `:root[data-theme="dark"]{`)
	assert.Contains(t, css, ".input-error")
	assert.Contains(t, css, ".form-stepper .step.active")
}

func TestBadgeAndCSRFField(t *testing.T) {
	assert.Equal(t, `<span class="badge badge-investigating">Investigating</span>`, Badge("Investigating"))
	assert.Equal(t, `<input type="hidden" name="_csrf" value="a&#34;b">`, CSRFField(`a"b`))
}
