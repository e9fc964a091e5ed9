package forms

import (
	"net/url"
	"sort"
	"strings"
)

// Rule binds validators to a named field.
type Rule struct {
	Field      string
	Validators []Validator
}

// Schema is an ordered set of field rules.
type Schema []Rule

// Field starts a rule for name.
func Field(name string, validators ...Validator) Rule {
	return Rule{Field: name, Validators: validators}
}

// Errors maps field names to the message of their first failing validator.
type Errors map[string]string

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Fields returns the failing field names sorted alphabetically.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for f := range e {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Error implements error so a non-empty Errors can be returned directly.
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Validate runs each rule against values. Only the first failure per field is kept.
func (s Schema) Validate(values url.Values) Errors {
	errs := make(Errors)
	for _, rule := range s {
		value := values.Get(rule.Field)
		for _, v := range rule.Validators {
			if err := v.Validate(value); err != nil {
				errs[rule.Field] = v.Message()
				break
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Trimmed returns a copy of values with surrounding whitespace removed from the
// first value of every key in the schema.
func (s Schema) Trimmed(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	for _, rule := range s {
		if v := out.Get(rule.Field); v != "" {
			out.Set(rule.Field, strings.TrimSpace(v))
		}
	}
	return out
}
