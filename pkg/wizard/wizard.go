// Package wizard implements a step-by-step form controller.
//
// A Controller owns the current step of a multi-panel form and drives a View,
// the port through which it reads field values and renders panel visibility,
// indicator state, error markers, focus and the review snapshot. Every user
// action goes through Dispatch, so one interaction yields at most one
// transition.
package wizard

import (
	"errors"
	"fmt"
)

// Common wizard errors.
var (
	ErrNoSteps        = errors.New("wizard: no steps defined")
	ErrStepOrder      = errors.New("wizard: steps must be numbered 1..N in order")
	ErrDuplicateField = errors.New("wizard: field declared more than once")
	ErrUnknownField   = errors.New("wizard: review references an unknown field")
	ErrUnknownAction  = errors.New("wizard: unknown action")
	ErrNilView        = errors.New("wizard: nil view")
)

// Review placeholders.
const (
	PlaceholderNotProvided = "(not provided)"
	PlaceholderNone        = "(none)"
)

// Field is a form input that belongs to exactly one step.
type Field struct {
	Name     string
	Label    string
	Required bool
}

// Step is one panel of the wizard.
type Step struct {
	Number int
	Title  string
	Fields []Field
}

// FirstField returns the name of the step's first field, or "" if it has none.
func (s Step) FirstField() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[0].Name
}

// Required returns the step's required fields in panel order.
func (s Step) Required() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// ReviewItem maps a form field onto a review target shown on the final step.
type ReviewItem struct {
	Target      string
	Field       string
	Label       string
	Placeholder string
}

// Definition describes the steps of a wizard and its review snapshot.
type Definition struct {
	Steps  []Step
	Review []ReviewItem
}

// Validate checks that steps are numbered 1..N and that every field name is unique.
func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return ErrNoSteps
	}

	seen := make(map[string]int)
	for i, s := range d.Steps {
		if s.Number != i+1 {
			return fmt.Errorf("%w: got %d at position %d", ErrStepOrder, s.Number, i+1)
		}
		for _, f := range s.Fields {
			if prev, ok := seen[f.Name]; ok {
				return fmt.Errorf("%w: %q on steps %d and %d", ErrDuplicateField, f.Name, prev, s.Number)
			}
			seen[f.Name] = s.Number
		}
	}

	for _, item := range d.Review {
		if _, ok := seen[item.Field]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, item.Field)
		}
	}

	return nil
}

// Last returns the number of the final step.
func (d Definition) Last() int {
	return len(d.Steps)
}

// Step returns step n.
func (d Definition) Step(n int) (Step, bool) {
	if n < 1 || n > len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[n-1], true
}

// StepOf returns the step the named field belongs to, or 0.
func (d Definition) StepOf(field string) int {
	for _, s := range d.Steps {
		for _, f := range s.Fields {
			if f.Name == field {
				return s.Number
			}
		}
	}
	return 0
}

// Fields returns every field of the wizard in step order.
func (d Definition) Fields() []Field {
	var out []Field
	for _, s := range d.Steps {
		out = append(out, s.Fields...)
	}
	return out
}
