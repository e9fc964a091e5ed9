package reportwizard

import (
	"fmt"
	"strings"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

// Path is the live route of the wizard and the target of the native submit.
const Path = "/report"

// Redisplay renders the report page for a submission the server rejected:
// values are restored, failed fields are marked and the first step holding
// one of them is shown.
func Redisplay(p layout.Page, csrf string, values map[string]string, failed []string) string {
	def := Definition()
	v := newPageView(values)
	ctrl, err := wizard.New(def, v)
	if err != nil {
		panic(err) // Definition is static
	}
	ctrl.Start()

	target := 0
	for _, name := range failed {
		if s := def.StepOf(name); s > 0 && (target == 0 || s < target) {
			target = s
		}
	}
	if target > 1 {
		ctrl.Goto(target)
	}
	for _, name := range failed {
		v.SetFieldError(name, true)
	}
	v.flush()

	p.Live = true
	return layout.Document(p, renderForm(def, v, ctrl.Current(), csrf))
}

// renderForm draws the whole wizard with step current showing.
func renderForm(def wizard.Definition, v *pageView, current int, csrf string) string {
	var sb strings.Builder

	sb.WriteString(`<h1>Report a crime</h1>` + "\n")
	sb.WriteString(fmt.Sprintf(`<p class="muted" data-slot="step-status">%s</p>`+"\n", layout.Esc(stepStatus(def, current))))

	sb.WriteString(`<ol class="form-stepper" aria-label="Progress">` + "\n")
	for _, s := range def.Steps {
		class := "step"
		if s.Number == current {
			class += " " + classActive
		}
		sb.WriteString(fmt.Sprintf(`<li><button type="button" class="%s" data-step="%d" data-event="goto">%d. %s</button></li>`+"\n",
			class, s.Number, s.Number, layout.Esc(s.Title)))
	}
	sb.WriteString(`</ol>` + "\n")

	sb.WriteString(fmt.Sprintf(`<form id="%s" class="card" method="post" action="%s" enctype="multipart/form-data" data-live="%s" novalidate>`+"\n",
		FormID, Path, Path))
	sb.WriteString(layout.CSRFField(csrf) + "\n")

	for _, s := range def.Steps {
		hidden := ""
		if s.Number != current {
			hidden = " hidden"
		}
		sb.WriteString(fmt.Sprintf(`<section class="step-panel" data-step="%d"%s aria-label="%s">`+"\n", s.Number, hidden, layout.Esc(s.Title)))
		switch s.Number {
		case 1:
			renderIncident(&sb, v)
		case 2:
			renderWhere(&sb, v)
		case 3:
			renderReview(&sb, def, v)
		}
		renderActions(&sb, s.Number, def.Last())
		sb.WriteString(`</section>` + "\n")
	}

	sb.WriteString(`</form>` + "\n")
	return sb.String()
}

func stepStatus(def wizard.Definition, n int) string {
	s, ok := def.Step(n)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Step %d of %d: %s", n, def.Last(), s.Title)
}

func inputClass(v *pageView, field string) string {
	if v.errors[field] {
		return "form-control " + classError
	}
	return "form-control"
}

func renderIncident(sb *strings.Builder, v *pageView) {
	sb.WriteString(`<div class="form-group">`)
	sb.WriteString(fmt.Sprintf(`<label for="%s">Type of crime</label>`, FieldCrimeType))
	sb.WriteString(fmt.Sprintf(`<input id="%s" name="%s" class="%s" list="crime-types" maxlength="50" required value="%s">`,
		FieldCrimeType, FieldCrimeType, inputClass(v, FieldCrimeType), layout.Esc(v.values[FieldCrimeType])))
	sb.WriteString(`<datalist id="crime-types">`)
	for _, t := range CrimeTypes {
		sb.WriteString(fmt.Sprintf(`<option value="%s">`, layout.Esc(t)))
	}
	sb.WriteString(`</datalist></div>` + "\n")

	sb.WriteString(`<div class="form-group">`)
	sb.WriteString(fmt.Sprintf(`<label for="%s">Description</label>`, FieldDescription))
	sb.WriteString(fmt.Sprintf(`<textarea id="%s" name="%s" class="%s" rows="5" required>%s</textarea>`,
		FieldDescription, FieldDescription, inputClass(v, FieldDescription), layout.Esc(v.values[FieldDescription])))
	sb.WriteString(`</div>` + "\n")
}

func renderWhere(sb *strings.Builder, v *pageView) {
	sb.WriteString(`<div class="form-group">`)
	sb.WriteString(fmt.Sprintf(`<label for="%s">Location</label>`, FieldLocation))
	sb.WriteString(fmt.Sprintf(`<input id="%s" name="%s" class="%s" required value="%s">`,
		FieldLocation, FieldLocation, inputClass(v, FieldLocation), layout.Esc(v.values[FieldLocation])))
	sb.WriteString(fmt.Sprintf(` <button type="button" id="%s" class="btn btn-secondary" data-event="locate" data-tooltip="Fill in your current position">%s</button>`,
		LocateID, LocateLabel))
	sb.WriteString(`</div>` + "\n")

	sb.WriteString(`<div class="form-row">`)
	for _, f := range []struct{ name, label string }{{FieldLatitude, "Latitude"}, {FieldLongitude, "Longitude"}} {
		sb.WriteString(fmt.Sprintf(`<div class="form-group"><label for="%s">%s</label><input id="%s" name="%s" class="%s" inputmode="decimal" value="%s"></div>`,
			f.name, f.label, f.name, f.name, inputClass(v, f.name), layout.Esc(v.values[f.name])))
	}
	sb.WriteString(`</div>` + "\n")

	sb.WriteString(`<div class="form-group">`)
	sb.WriteString(fmt.Sprintf(`<label for="%s">Photo (png, jpg, jpeg or gif)</label>`, FieldAttachment))
	sb.WriteString(fmt.Sprintf(`<input type="file" id="%s" name="%s" class="form-control" accept=".png,.jpg,.jpeg,.gif,image/png,image/jpeg,image/gif">`,
		FieldAttachment, FieldAttachment))
	sb.WriteString(`<div id="attachment-preview" class="attachment-preview" hidden><img id="attachment-img" alt="Attachment preview"></div>`)
	sb.WriteString(`</div>` + "\n")
}

func renderReview(sb *strings.Builder, def wizard.Definition, v *pageView) {
	review := v.review
	if review == nil {
		review = make(wizard.Snapshot, 0, len(def.Review))
		for _, item := range def.Review {
			review = append(review, wizard.ReviewLine{Target: item.Target, Label: item.Label, Text: item.Placeholder, Blank: true})
		}
	}

	sb.WriteString(`<dl class="review">` + "\n")
	for _, line := range review {
		sb.WriteString(fmt.Sprintf(`<dt>%s</dt><dd id="%s">%s</dd>`+"\n", layout.Esc(line.Label), line.Target, layout.Esc(line.Text)))
	}
	attachment := v.values[FieldAttachment]
	if attachment == "" {
		attachment = wizard.PlaceholderNone
	}
	sb.WriteString(fmt.Sprintf(`<dt>Photo</dt><dd id="%s" data-slot="%s">%s</dd>`+"\n", AttachmentTag, AttachmentTag, layout.Esc(attachment)))
	sb.WriteString(`</dl>` + "\n")

	sb.WriteString(`<div class="form-group">`)
	sb.WriteString(fmt.Sprintf(`<label for="%s">Additional notes</label>`, FieldAdditional))
	sb.WriteString(fmt.Sprintf(`<textarea id="%s" name="%s" class="form-control" rows="3">%s</textarea>`,
		FieldAdditional, FieldAdditional, layout.Esc(v.values[FieldAdditional])))
	sb.WriteString(`</div>` + "\n")
}

func renderActions(sb *strings.Builder, step, last int) {
	sb.WriteString(`<div class="form-actions">`)
	if step > 1 {
		sb.WriteString(`<button type="button" class="btn btn-secondary" data-event="back">Back</button>`)
	} else {
		sb.WriteString(`<span></span>`)
	}
	if step < last {
		sb.WriteString(`<button type="button" class="btn btn-primary" data-event="next">Next</button>`)
	} else {
		sb.WriteString(`<button type="submit" class="btn btn-primary">Submit report</button>`)
	}
	sb.WriteString(`</div>` + "\n")
}
