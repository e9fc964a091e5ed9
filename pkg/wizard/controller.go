package wizard

import (
	"fmt"

	"github.com/gabrielmiguelok/crimedesk/pkg/forms"
)

// Action names a user interaction the controller reacts to.
type Action string

const (
	ActionNext   Action = "next"
	ActionBack   Action = "back"
	ActionSubmit Action = "submit"
	ActionGoto   Action = "goto"
)

// ParseAction converts an event name into an Action.
func ParseAction(name string) (Action, bool) {
	a := Action(name)
	_, ok := handlers[a]
	return a, ok
}

// Outcome reports what a dispatched action did.
type Outcome struct {
	Action Action
	From   int
	To     int

	// Failed lists the required fields that blocked the action, in panel order.
	Failed []string

	// Redirected is set when a submit was intercepted before the final step.
	Redirected bool

	// Submit is set when native submission may proceed.
	Submit bool
}

// Moved reports whether the current step changed.
func (o Outcome) Moved() bool {
	return o.From != o.To
}

// Blocked reports whether validation stopped the action.
func (o Outcome) Blocked() bool {
	return len(o.Failed) > 0
}

type handler func(c *Controller, target int) Outcome

// handlers is the single dispatch table for user actions.
var handlers = map[Action]handler{
	ActionNext:   (*Controller).next,
	ActionBack:   (*Controller).back,
	ActionSubmit: (*Controller).submit,
	ActionGoto:   (*Controller).jump,
}

// Controller holds the current step of one wizard instance.
// It is not safe for concurrent use.
type Controller struct {
	def      Definition
	view     View
	current  int
	required forms.Validator
}

// New creates a controller positioned on step 1. Call Start to render it.
func New(def Definition, view View) (*Controller, error) {
	if view == nil {
		return nil, ErrNilView
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		def:      def,
		view:     view,
		current:  1,
		required: forms.RequiredValidator{},
	}, nil
}

// Start displays the current step without animation.
func (c *Controller) Start() {
	c.show(c.current)
}

// Resume displays step n without validating anything, for restoring a saved
// position. It reports false and stays put when n is out of range.
func (c *Controller) Resume(n int) bool {
	if _, ok := c.def.Step(n); !ok {
		return false
	}
	c.show(n)
	return true
}

// Current returns the current step.
func (c *Controller) Current() int {
	return c.current
}

// Last returns the final step.
func (c *Controller) Last() int {
	return c.def.Last()
}

// Definition returns the wizard definition.
func (c *Controller) Definition() Definition {
	return c.def
}

// Dispatch runs the handler registered for action. target is only used by ActionGoto.
func (c *Controller) Dispatch(action Action, target int) (Outcome, error) {
	h, ok := handlers[action]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return h(c, target), nil
}

// Next validates the current step and advances.
func (c *Controller) Next() Outcome { return c.next(0) }

// Back returns to the previous step.
func (c *Controller) Back() Outcome { return c.back(0) }

// Submit decides whether native submission may proceed.
func (c *Controller) Submit() Outcome { return c.submit(0) }

// Goto moves to step n, validating every step it passes on the way forward.
func (c *Controller) Goto(n int) Outcome { return c.jump(n) }

// Validate checks the required fields of step n, marks them on the view and
// focuses the first failure. It returns the names of failing fields.
func (c *Controller) Validate(n int) []string {
	failed := c.check(n)
	c.mark(n, failed)
	return failed
}

// Snapshot computes the review snapshot from the current field values.
func (c *Controller) Snapshot() Snapshot {
	return buildSnapshot(c.def.Review, c.view)
}

func (c *Controller) next(int) Outcome {
	from := c.current
	out := Outcome{Action: ActionNext, From: from, To: from}

	if out.Failed = c.Validate(from); out.Blocked() {
		return out
	}

	to := min(from+1, c.def.Last())
	if to != from {
		c.transition(from, to)
		out.To = to
	}
	return out
}

func (c *Controller) back(int) Outcome {
	from := c.current
	to := max(1, from-1)
	if to != from {
		c.transition(from, to)
	}
	return Outcome{Action: ActionBack, From: from, To: to}
}

func (c *Controller) submit(int) Outcome {
	from := c.current
	out := Outcome{Action: ActionSubmit, From: from, To: from}

	if out.Failed = c.Validate(from); out.Blocked() {
		return out
	}

	if last := c.def.Last(); from != last {
		c.show(last)
		out.To = last
		out.Redirected = true
		return out
	}

	out.Submit = true
	return out
}

func (c *Controller) jump(target int) Outcome {
	from := c.current
	out := Outcome{Action: ActionGoto, From: from, To: from}

	if target < 1 || target > c.def.Last() || target == from {
		return out
	}

	if target < from {
		c.transition(from, target)
		out.To = target
		return out
	}

	for s := from; s < target; s++ {
		failed := c.check(s)
		if len(failed) == 0 {
			c.mark(s, nil)
			continue
		}
		if s != from {
			c.transition(from, s)
			out.To = s
		}
		c.mark(s, failed)
		out.Failed = failed
		return out
	}

	c.transition(from, target)
	out.To = target
	return out
}

func (c *Controller) check(n int) []string {
	step, ok := c.def.Step(n)
	if !ok {
		return nil
	}
	var failed []string
	for _, f := range step.Required() {
		if err := c.required.Validate(c.view.Value(f.Name)); err != nil {
			failed = append(failed, f.Name)
		}
	}
	return failed
}

func (c *Controller) mark(n int, failed []string) {
	step, ok := c.def.Step(n)
	if !ok {
		return
	}
	bad := make(map[string]bool, len(failed))
	for _, name := range failed {
		bad[name] = true
	}
	for _, f := range step.Required() {
		c.view.SetFieldError(f.Name, bad[f.Name])
	}
	if len(failed) > 0 {
		c.view.Focus(failed[0])
	}
}

// transition applies the display of step to and then hands the animation to the view.
func (c *Controller) transition(from, to int) {
	c.show(to)
	c.view.Animate(newTransition(from, to))
}

func (c *Controller) show(n int) {
	step, ok := c.def.Step(n)
	if !ok {
		return
	}
	c.current = n

	for _, s := range c.def.Steps {
		c.view.SetPanelVisible(s.Number, s.Number == n)
		c.view.SetIndicatorActive(s.Number, s.Number == n)
	}

	if f := step.FirstField(); f != "" {
		c.view.Focus(f)
	}

	if n == c.def.Last() {
		c.view.SetReview(c.Snapshot())
	}
}
