// Package js builds client-side commands for live components.
// Commands travel to the browser as data ops and run there without a server
// roundtrip; the embedded client runtime interprets them in order.
package js

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is a single client-side operation.
type Command struct {
	Op   string         `json:"op" msgpack:"op"`
	Args map[string]any `json:"args,omitempty" msgpack:"args,omitempty"`
}

// ToJS returns the command as a call on the client runtime, suitable for
// inline event attributes.
func (c Command) ToJS() string {
	args, _ := json.Marshal(c.Args)
	return fmt.Sprintf("liveview.JS.exec(%q,%s)", c.Op, args)
}

func (c Command) String() string {
	return c.ToJS()
}

// Commands holds a sequence of commands.
type Commands []Command

// ToJS returns the JavaScript for all commands.
func (cs Commands) ToJS() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.ToJS())
	}
	return strings.Join(parts, ";")
}

// String implements fmt.Stringer.
func (cs Commands) String() string {
	return cs.ToJS()
}

// Ops returns the commands in their wire form.
func (cs Commands) Ops() []map[string]any {
	out := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		op := map[string]any{"op": c.Op}
		if len(c.Args) > 0 {
			op["args"] = c.Args
		}
		out = append(out, op)
	}
	return out
}

// Find returns the commands with the given op.
func (cs Commands) Find(op string) Commands {
	var out Commands
	for _, c := range cs {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Client-side operation names.
const (
	OpShow        = "show"
	OpHide        = "hide"
	OpAddClass    = "add_class"
	OpRemoveClass = "remove_class"
	OpSetAttr     = "set_attr"
	OpRemoveAttr  = "remove_attr"
	OpSetText     = "set_text"
	OpSetValue    = "set_value"
	OpFocus       = "focus"
	OpFocusFirst  = "focus_first"
	OpAlert       = "alert"
	OpDispatch    = "dispatch"
	OpPush        = "push"
	OpNavigate    = "navigate"
	OpSubmit      = "submit"
	OpGeolocate   = "geolocate"
)

// JS is the namespace for JavaScript commands.
var JS = jsNamespace{}

type jsNamespace struct{}

func command(op string, args map[string]any, opts []Option) Command {
	for _, opt := range opts {
		opt(args)
	}
	return Command{Op: op, Args: args}
}

// Show reveals an element, optionally with a transition.
func (jsNamespace) Show(selector string, opts ...Option) Command {
	return command(OpShow, map[string]any{"to": selector}, opts)
}

// Hide hides an element, optionally with a transition.
func (jsNamespace) Hide(selector string, opts ...Option) Command {
	return command(OpHide, map[string]any{"to": selector}, opts)
}

// AddClass adds CSS class(es) to an element.
func (jsNamespace) AddClass(selector, class string, opts ...Option) Command {
	return command(OpAddClass, map[string]any{"to": selector, "class": class}, opts)
}

// RemoveClass removes CSS class(es) from an element.
func (jsNamespace) RemoveClass(selector, class string, opts ...Option) Command {
	return command(OpRemoveClass, map[string]any{"to": selector, "class": class}, opts)
}

// SetAttr sets an attribute on an element.
func (jsNamespace) SetAttr(selector, attr, value string) Command {
	return Command{Op: OpSetAttr, Args: map[string]any{"to": selector, "attr": attr, "value": value}}
}

// RemoveAttr removes an attribute from an element.
func (jsNamespace) RemoveAttr(selector, attr string) Command {
	return Command{Op: OpRemoveAttr, Args: map[string]any{"to": selector, "attr": attr}}
}

// SetText replaces the text content of an element.
func (jsNamespace) SetText(selector, text string) Command {
	return Command{Op: OpSetText, Args: map[string]any{"to": selector, "text": text}}
}

// SetValue sets the value of an input.
func (jsNamespace) SetValue(selector, value string) Command {
	return Command{Op: OpSetValue, Args: map[string]any{"to": selector, "value": value}}
}

// Focus sets focus on an element.
func (jsNamespace) Focus(selector string) Command {
	return Command{Op: OpFocus, Args: map[string]any{"to": selector}}
}

// FocusFirst focuses the first focusable element in a container.
func (jsNamespace) FocusFirst(selector string) Command {
	return Command{Op: OpFocusFirst, Args: map[string]any{"to": selector}}
}

// Alert shows a blocking message to the user.
func (jsNamespace) Alert(message string) Command {
	return Command{Op: OpAlert, Args: map[string]any{"message": message}}
}

// Dispatch dispatches a DOM event on an element.
func (jsNamespace) Dispatch(selector, event string, opts ...Option) Command {
	return command(OpDispatch, map[string]any{"to": selector, "event": event}, opts)
}

// Push sends an event to the server.
func (jsNamespace) Push(event string, opts ...Option) Command {
	return command(OpPush, map[string]any{"event": event}, opts)
}

// Navigate navigates to a new page.
func (jsNamespace) Navigate(path string, opts ...Option) Command {
	return command(OpNavigate, map[string]any{"href": path}, opts)
}

// Submit performs the native submission of a form, bypassing its submit handlers.
func (jsNamespace) Submit(selector string) Command {
	return Command{Op: OpSubmit, Args: map[string]any{"to": selector}}
}

// Geolocate asks the browser for a single position fix. The client answers
// with the success or failure event.
func (jsNamespace) Geolocate(onSuccess, onError string, timeoutMs int) Command {
	return Command{Op: OpGeolocate, Args: map[string]any{
		"ok":      onSuccess,
		"error":   onError,
		"timeout": timeoutMs,
	}}
}

// Exec executes a named client hook.
func (jsNamespace) Exec(op string, args map[string]any) Command {
	return Command{Op: op, Args: args}
}

// Pipe chains multiple commands.
func (jsNamespace) Pipe(commands ...Command) Commands {
	return Commands(commands)
}

// Option adjusts command arguments.
type Option func(args map[string]any)

// Transition sets the CSS transition name run while showing or hiding.
func Transition(name string) Option {
	return func(args map[string]any) {
		args["transition"] = name
	}
}

// Time sets the transition duration in milliseconds.
func Time(ms int) Option {
	return func(args map[string]any) {
		args["time"] = ms
	}
}

// Offset sets the horizontal slide offset in pixels.
func Offset(px int) Option {
	return func(args map[string]any) {
		args["offset"] = px
	}
}

// Detail attaches event detail to Dispatch.
func Detail(d map[string]any) Option {
	return func(args map[string]any) {
		args["detail"] = d
	}
}

// Value attaches a payload to Push.
func Value(v map[string]any) Option {
	return func(args map[string]any) {
		args["value"] = v
	}
}

// Replace makes Navigate replace the history entry.
func Replace() Option {
	return func(args map[string]any) {
		args["replace"] = true
	}
}

// Common transitions
const (
	TransitionFadeIn   = "fade-in"
	TransitionFadeOut  = "fade-out"
	TransitionSlideIn  = "slide-in"
	TransitionSlideOut = "slide-out"
)
