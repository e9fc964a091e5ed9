package testing

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// HTMLAssert provides HTML-specific assertions.
type HTMLAssert struct {
	t    testing.TB
	html string
}

// NewHTMLAssert creates a new HTML assertion helper.
func NewHTMLAssert(t testing.TB, html string) *HTMLAssert {
	return &HTMLAssert{t: t, html: html}
}

// HasText asserts that the HTML contains text.
func (ha *HTMLAssert) HasText(text string) *HTMLAssert {
	ha.t.Helper()
	assert.Contains(ha.t, ha.html, text)
	return ha
}

// NoText asserts that the HTML does not contain text.
func (ha *HTMLAssert) NoText(text string) *HTMLAssert {
	ha.t.Helper()
	assert.NotContains(ha.t, ha.html, text)
	return ha
}

// HasID asserts that an element with id exists.
func (ha *HTMLAssert) HasID(id string) *HTMLAssert {
	ha.t.Helper()
	assert.Contains(ha.t, ha.html, fmt.Sprintf(`id="%s"`, id))
	return ha
}

// HasClass asserts that some element carries class.
func (ha *HTMLAssert) HasClass(class string) *HTMLAssert {
	ha.t.Helper()
	pattern := fmt.Sprintf(`class="([^"]* )?%s( [^"]*)?"`, regexp.QuoteMeta(class))
	assert.Regexp(ha.t, pattern, ha.html)
	return ha
}

// HasSlot asserts the unescaped text of a data-slot element.
func (ha *HTMLAssert) HasSlot(name, want string) *HTMLAssert {
	ha.t.Helper()
	got, ok := SlotText(ha.html, name)
	if assert.True(ha.t, ok, "slot %q not found", name) {
		assert.Equal(ha.t, want, got, "slot %q", name)
	}
	return ha
}

// SlotText returns the text content of the element marked data-slot="name".
// Only slots holding plain text are supported.
func SlotText(doc, name string) (string, bool) {
	re := regexp.MustCompile(`data-slot="` + regexp.QuoteMeta(name) + `"[^>]*>([^<]*)<`)
	m := re.FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	return html.UnescapeString(strings.TrimSpace(m[1])), true
}
