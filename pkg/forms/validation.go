// Package forms validates submitted form values.
package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator validates a single submitted value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value string) error

	// Message returns the user-facing error message.
	Message() string
}

// RequiredValidator rejects values that are empty once surrounding whitespace is trimmed.
type RequiredValidator struct{}

func (v RequiredValidator) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("required")
	}
	return nil
}

func (v RequiredValidator) Message() string {
	return "This field is required"
}

// MinLengthValidator validates minimum string length.
type MinLengthValidator struct {
	Min int
}

func (v MinLengthValidator) Validate(value string) error {
	if value == "" {
		return nil // Skip if empty (use Required for that)
	}
	if utf8.RuneCountInString(value) < v.Min {
		return fmt.Errorf("too short (min %d)", v.Min)
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	return fmt.Sprintf("Must be at least %d characters", v.Min)
}

// MaxLengthValidator validates maximum string length.
type MaxLengthValidator struct {
	Max int
}

func (v MaxLengthValidator) Validate(value string) error {
	if utf8.RuneCountInString(value) > v.Max {
		return fmt.Errorf("too long (max %d)", v.Max)
	}
	return nil
}

func (v MaxLengthValidator) Message() string {
	return fmt.Sprintf("Must be at most %d characters", v.Max)
}

// PatternValidator validates against a regex pattern.
type PatternValidator struct {
	re  *regexp.Regexp
	Msg string
}

func (v PatternValidator) Validate(value string) error {
	if value == "" {
		return nil
	}
	if !v.re.MatchString(value) {
		return errors.New("pattern mismatch")
	}
	return nil
}

func (v PatternValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Invalid format"
}

// RangeValidator validates that an optional numeric value lies in [Min, Max].
type RangeValidator struct {
	Min float64
	Max float64
}

func (v RangeValidator) Validate(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("not a number: %w", err)
	}
	if num < v.Min || num > v.Max {
		return fmt.Errorf("must be between %v and %v", v.Min, v.Max)
	}
	return nil
}

func (v RangeValidator) Message() string {
	return fmt.Sprintf("Must be a number between %v and %v", v.Min, v.Max)
}

// OneOfValidator validates that value is one of the allowed options.
type OneOfValidator struct {
	Values []string
}

func (v OneOfValidator) Validate(value string) error {
	for _, allowed := range v.Values {
		if value == allowed {
			return nil
		}
	}
	return errors.New("invalid option")
}

func (v OneOfValidator) Message() string {
	return "Invalid selection"
}

// Convenience constructors

// Required returns a required validator.
func Required() Validator {
	return RequiredValidator{}
}

// MinLength returns a minimum length validator.
func MinLength(n int) Validator {
	return MinLengthValidator{Min: n}
}

// MaxLength returns a maximum length validator.
func MaxLength(n int) Validator {
	return MaxLengthValidator{Max: n}
}

// Pattern returns a pattern validator. It panics if pattern does not compile.
func Pattern(pattern string, msg ...string) Validator {
	v := PatternValidator{re: regexp.MustCompile(pattern)}
	if len(msg) > 0 {
		v.Msg = msg[0]
	}
	return v
}

// Range returns a numeric range validator.
func Range(min, max float64) Validator {
	return RangeValidator{Min: min, Max: max}
}

// Latitude validates an optional latitude in degrees.
func Latitude() Validator {
	return RangeValidator{Min: -90, Max: 90}
}

// Longitude validates an optional longitude in degrees.
func Longitude() Validator {
	return RangeValidator{Min: -180, Max: 180}
}

// OneOf returns a one-of validator.
func OneOf(values ...string) Validator {
	return OneOfValidator{Values: values}
}
