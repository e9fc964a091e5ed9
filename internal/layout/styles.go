package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Light palette (WCAG 2.1 AA on bg).
var lightColors = map[string]string{
	"bg":        "#F8FAFC",
	"bgAlt":     "#FFFFFF",
	"bgHover":   "#E2E8F0",
	"text":      "#0F172A",
	"textMuted": "#475569",
	"border":    "#CBD5E1",

	"primary":   "#1D4ED8",
	"onPrimary": "#FFFFFF",

	"success": "#047857",
	"warning": "#B45309",
	"danger":  "#B91C1C",
	"info":    "#1D4ED8",
}

// Dark palette, selected by data-theme="dark" on the root element.
var darkColors = map[string]string{
	"bg":        "#0F172A",
	"bgAlt":     "#1E293B",
	"bgHover":   "#334155",
	"text":      "#F8FAFC",
	"textMuted": "#CBD5E1",
	"border":    "#334155",

	"primary":   "#60A5FA",
	"onPrimary": "#0F172A",

	"success": "#34D399",
	"warning": "#FBBF24",
	"danger":  "#F87171",
	"info":    "#60A5FA",
}

// FontFamily is the system font stack.
var FontFamily = `system-ui, -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif`

// RenderStyles generates the stylesheet shared by every page.
func RenderStyles() string {
	var sb strings.Builder
	sb.WriteString(cssReset())
	sb.WriteString(cssVariables(":root", lightColors))
	sb.WriteString(cssVariables(`:root[data-theme="dark"]`, darkColors))
	sb.WriteString(cssBase())
	sb.WriteString(cssNav())
	sb.WriteString(cssButtons())
	sb.WriteString(cssForms())
	sb.WriteString(cssWizard())
	sb.WriteString(cssTables())
	sb.WriteString(cssAccessibility())
	return sb.String()
}

func cssReset() string {
	return `
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
html{-webkit-text-size-adjust:100%}
body{line-height:1.6;-webkit-font-smoothing:antialiased}
img{display:block;max-width:100%}
input,button,textarea,select{font:inherit}
a{color:inherit;text-decoration:none}
`
}

// cssVariables emits one custom property per colour, sorted so the output is stable.
func cssVariables(selector string, colors map[string]string) string {
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]string, 0, len(names))
	for _, name := range names {
		vars = append(vars, fmt.Sprintf("--color-%s:%s", name, colors[name]))
	}
	return fmt.Sprintf("%s{%s;--font-sans:%s}\n", selector, strings.Join(vars, ";"), FontFamily)
}

func cssBase() string {
	return `
body{font-family:var(--font-sans);background:var(--color-bg);color:var(--color-text);min-height:100vh;display:flex;flex-direction:column}
.container{width:100%;max-width:1100px;margin:0 auto;padding:0 1rem}
main{flex:1;padding-top:2rem;padding-bottom:3rem}
h1{font-size:1.875rem;margin-bottom:1rem}
h2{font-size:1.375rem;margin:1.5rem 0 .75rem}
p{margin-bottom:.75rem}
.muted{color:var(--color-textMuted)}
.card{background:var(--color-bgAlt);border:1px solid var(--color-border);border-radius:.75rem;padding:1.5rem;margin-bottom:1rem}
.grid{display:grid;gap:1rem;grid-template-columns:repeat(auto-fit,minmax(180px,1fr))}
.stat{font-size:2rem;font-weight:700}
.flashes{margin-bottom:1rem}
.flash{padding:.75rem 1rem;border-radius:.5rem;margin-bottom:.5rem;border:1px solid var(--color-border)}
.flash-success{border-color:var(--color-success);color:var(--color-success)}
.flash-error{border-color:var(--color-danger);color:var(--color-danger)}
.flash-info{border-color:var(--color-info);color:var(--color-info)}
.badge{display:inline-block;padding:.125rem .5rem;border-radius:999px;font-size:.8rem;font-weight:600;border:1px solid currentColor}
.badge-pending{color:var(--color-warning)}
.badge-investigating{color:var(--color-info)}
.badge-resolved{color:var(--color-success)}
.footer{border-top:1px solid var(--color-border);padding:1.5rem 0;color:var(--color-textMuted);font-size:.875rem}
[data-tooltip]{position:relative}
[data-tooltip]:hover::after,[data-tooltip]:focus-visible::after{content:attr(data-tooltip);position:absolute;left:50%;bottom:calc(100% + 6px);transform:translateX(-50%);white-space:nowrap;background:var(--color-text);color:var(--color-bg);padding:.25rem .5rem;border-radius:.25rem;font-size:.75rem;pointer-events:none;z-index:10}
`
}

func cssNav() string {
	return `
.nav{position:sticky;top:0;z-index:20;background:var(--color-bgAlt);border-bottom:1px solid var(--color-border)}
.nav-inner{display:flex;align-items:center;justify-content:space-between;min-height:3.5rem;gap:1rem;flex-wrap:wrap}
.logo{font-weight:700;font-size:1.125rem}
.nav-links{display:flex;align-items:center;gap:.25rem;flex-wrap:wrap}
.nav-user{color:var(--color-textMuted);padding:0 .5rem}
`
}

func cssButtons() string {
	return `
.btn{display:inline-flex;align-items:center;gap:.375rem;padding:.5rem 1rem;border-radius:.5rem;border:1px solid transparent;cursor:pointer;font-weight:500;background:none;color:inherit}
.btn-primary{background:var(--color-primary);color:var(--color-onPrimary)}
.btn-secondary{border-color:var(--color-border);background:var(--color-bgAlt)}
.btn-ghost:hover,.btn-ghost.active{background:var(--color-bgHover)}
.btn:disabled{opacity:.6;cursor:not-allowed}
`
}

func cssForms() string {
	return `
.form-group{margin-bottom:1rem}
.form-group label{display:block;font-weight:600;margin-bottom:.25rem}
.form-control{width:100%;padding:.5rem .75rem;border:1px solid var(--color-border);border-radius:.5rem;background:var(--color-bg);color:var(--color-text)}
.form-control:focus{outline:2px solid var(--color-primary);outline-offset:1px}
.form-control.input-error{border-color:var(--color-danger);outline-color:var(--color-danger)}
.form-row{display:flex;gap:1rem;flex-wrap:wrap}
.form-row>*{flex:1;min-width:160px}
.form-actions{display:flex;justify-content:space-between;gap:.5rem;margin-top:1.5rem}
.auth-card{max-width:420px;margin:0 auto}
.search{display:flex;gap:.5rem;margin-bottom:1rem}
`
}

func cssWizard() string {
	return `
.form-stepper{display:flex;gap:.5rem;margin-bottom:1.5rem;list-style:none}
.form-stepper .step{flex:1;text-align:center;padding:.5rem;border-bottom:3px solid var(--color-border);color:var(--color-textMuted);cursor:pointer;background:none;border-top:0;border-left:0;border-right:0}
.form-stepper .step.active{border-bottom-color:var(--color-primary);color:var(--color-text);font-weight:600}
.step-panel{transition:opacity 300ms ease,transform 300ms ease}
[hidden],.hidden{display:none!important}
.review dt{font-weight:600}
.review dd{margin:0 0 .75rem;color:var(--color-textMuted);white-space:pre-wrap}
.attachment-preview img{max-height:180px;border-radius:.5rem;margin-top:.5rem}
`
}

func cssTables() string {
	return `
table{width:100%;border-collapse:collapse}
th,td{text-align:left;padding:.5rem;border-bottom:1px solid var(--color-border);vertical-align:top}
th{color:var(--color-textMuted);font-weight:600;font-size:.875rem}
.audit{font-size:.8rem;color:var(--color-textMuted);list-style:none}
.pagination{display:flex;gap:.5rem;align-items:center;margin-top:1rem}
`
}

func cssAccessibility() string {
	return `
.skip-link{position:absolute;left:-9999px;top:0;padding:.5rem 1rem;background:var(--color-primary);color:var(--color-onPrimary);z-index:100}
.skip-link:focus{left:1rem}
.sr-only{position:absolute;width:1px;height:1px;overflow:hidden;clip:rect(0,0,0,0)}
@media (prefers-reduced-motion:reduce){.step-panel{transition:none}}
`
}
