package reportwizard

import (
	"fmt"

	"github.com/gabrielmiguelok/crimedesk/pkg/js"
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

// Classes toggled by the view.
const (
	classActive = "active"
	classError  = "input-error"
)

// pageView implements wizard.View over the rendered report page. It keeps the
// state needed to render the page and queues the ops that bring an already
// rendered page up to date.
type pageView struct {
	values  map[string]string
	visible map[int]bool
	active  map[int]bool
	errors  map[string]bool
	review  wizard.Snapshot
	focused string

	ops js.Commands
	// panelOps indexes the show/hide op queued for a step since the last flush.
	panelOps map[int]int
}

var _ wizard.View = (*pageView)(nil)

func newPageView(values map[string]string) *pageView {
	v := &pageView{
		values:   make(map[string]string),
		visible:  make(map[int]bool),
		active:   make(map[int]bool),
		errors:   make(map[string]bool),
		panelOps: make(map[int]int),
	}
	for k, val := range values {
		v.values[k] = val
	}
	return v
}

func panelSelector(step int) string {
	return fmt.Sprintf(`.step-panel[data-step="%d"]`, step)
}

func indicatorSelector(step int) string {
	return fmt.Sprintf(`.form-stepper .step[data-step="%d"]`, step)
}

func fieldSelector(field string) string {
	return "#" + field
}

func (v *pageView) Value(field string) string {
	return v.values[field]
}

func (v *pageView) SetPanelVisible(step int, visible bool) {
	if v.visible[step] == visible {
		return
	}
	v.visible[step] = visible
	v.panelOps[step] = len(v.ops)
	if visible {
		v.ops = append(v.ops, js.JS.Show(panelSelector(step)))
	} else {
		v.ops = append(v.ops, js.JS.Hide(panelSelector(step)))
	}
}

func (v *pageView) SetIndicatorActive(step int, active bool) {
	if v.active[step] == active {
		return
	}
	v.active[step] = active
	if active {
		v.ops = append(v.ops, js.JS.AddClass(indicatorSelector(step), classActive))
	} else {
		v.ops = append(v.ops, js.JS.RemoveClass(indicatorSelector(step), classActive))
	}
}

func (v *pageView) SetFieldError(field string, failed bool) {
	v.errors[field] = failed
	if failed {
		v.ops = append(v.ops, js.JS.AddClass(fieldSelector(field), classError))
	} else {
		v.ops = append(v.ops, js.JS.RemoveClass(fieldSelector(field), classError))
	}
}

func (v *pageView) Focus(field string) {
	v.focused = field
	v.ops = append(v.ops, js.JS.Focus(fieldSelector(field)))
}

func (v *pageView) SetReview(snapshot wizard.Snapshot) {
	v.review = snapshot
	for _, line := range snapshot {
		v.ops = append(v.ops, js.JS.SetText("#"+line.Target, line.Text))
	}
}

// Animate decorates the show/hide ops already queued for the transition.
func (v *pageView) Animate(t wizard.Transition) {
	ms := int(t.Duration.Milliseconds())
	if i, ok := v.panelOps[t.From]; ok {
		js.Transition(js.TransitionSlideOut)(v.ops[i].Args)
		js.Time(ms)(v.ops[i].Args)
		js.Offset(t.ExitOffset())(v.ops[i].Args)
	}
	if i, ok := v.panelOps[t.To]; ok {
		js.Transition(js.TransitionSlideIn)(v.ops[i].Args)
		js.Time(ms)(v.ops[i].Args)
		js.Offset(t.EnterOffset())(v.ops[i].Args)
	}
}

// set stores a field value without queuing an op. Used when the browser
// reported the value itself.
func (v *pageView) set(field, value string) {
	v.values[field] = value
}

// fill stores a field value and mirrors it into the page.
func (v *pageView) fill(field, value string) {
	v.values[field] = value
	v.ops = append(v.ops, js.JS.SetValue(fieldSelector(field), value))
}

// copyValues returns every field value.
func (v *pageView) copyValues() map[string]string {
	out := make(map[string]string, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

func (v *pageView) push(cmds ...js.Command) {
	v.ops = append(v.ops, cmds...)
}

// flush returns and clears the queued ops.
func (v *pageView) flush() js.Commands {
	ops := v.ops
	v.ops = nil
	clear(v.panelOps)
	return ops
}
