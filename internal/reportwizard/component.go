package reportwizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/pkg/core"
	"github.com/gabrielmiguelok/crimedesk/pkg/js"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
	"github.com/gabrielmiguelok/crimedesk/pkg/recovery"
	"github.com/gabrielmiguelok/crimedesk/pkg/router"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

// Events handled besides the wizard actions.
const (
	EventChange             = "change"
	EventLocate             = "locate"
	EventLocationDetected   = "location_detected"
	EventLocationFailed     = "location_failed"
	EventAttachmentSelected = "attachment_selected"
)

// Component errors.
var (
	ErrUnknownEvent = errors.New("reportwizard: unknown event")
	ErrUnknownField = errors.New("reportwizard: unknown field")
	ErrBadPayload   = errors.New("reportwizard: bad payload")
)

// Alert messages.
const (
	msgGeoUnsupported = "Geolocation not supported by your browser."
	msgGeoFailed      = "Unable to get location: "
	msgBadFileType    = "Only png, jpg, jpeg and gif images can be attached."
	msgFileTooLarge   = "The selected file is too large."
)

// RecoverParam is the query parameter carrying a draft token when the
// browser reconnects.
const RecoverParam = "recover"

// RecoverAttr is the form attribute the browser reads the token from.
const RecoverAttr = "data-recover"

// draft is the resumable part of a wizard.
type draft struct {
	UserID int64             `msgpack:"user_id"`
	Step   int               `msgpack:"step"`
	Values map[string]string `msgpack:"values"`
}

// Recorder receives the outcome of every dispatched wizard action.
type Recorder interface {
	WizardOutcome(out wizard.Outcome)
}

// Options configures the component.
type Options struct {
	// Allowed reports whether an attachment name has an accepted extension.
	Allowed func(filename string) bool
	// MaxSize caps attachment sizes in bytes. Zero disables the check.
	MaxSize int64
	// Recorder is optional.
	Recorder Recorder
	// Drafts, when set, lets a reconnecting browser resume its wizard.
	Drafts *recovery.Manager
}

// Component is the live report wizard. One instance serves one connection;
// the router never calls it concurrently, Terminate included.
type Component struct {
	core.BaseComponent

	opts Options
	def  wizard.Definition
	ctrl *wizard.Controller
	view *pageView

	user *security.AuthContext
	csrf string

	draftID string
	token   string
}

// New returns a factory for live routes.
func New(opts Options) func() core.Component {
	return func() core.Component {
		return &Component{opts: opts, def: Definition()}
	}
}

// Name implements core.Component.
func (c *Component) Name() string {
	return "report_wizard"
}

// Mount positions the wizard on step 1. Known fields may be prefilled from
// query parameters. A valid recover token instead restores the saved step
// and values.
func (c *Component) Mount(ctx context.Context, params core.Params, session core.Session) error {
	if name := session.Username(); name != "" {
		c.user = &security.AuthContext{UserID: session.UserID(), Username: name, Admin: session.Admin()}
	}
	c.csrf = session.CSRFToken()

	values := make(map[string]string)
	for _, f := range c.def.Fields() {
		if f.Name == FieldAttachment {
			continue
		}
		if v := params.Get(f.Name); v != "" {
			values[f.Name] = v
		}
	}

	step := 1
	if c.opts.Drafts != nil {
		c.draftID = c.opts.Drafts.NewID()
		if token := params.Get(RecoverParam); token != "" {
			if d, id, ok := c.restore(ctx, token); ok {
				values, step = d.Values, d.Step
				c.draftID, c.token = id, token
			}
		}
	}

	c.view = newPageView(values)
	ctrl, err := wizard.New(c.def, c.view)
	if err != nil {
		return err
	}
	c.ctrl = ctrl
	c.ctrl.Start()
	if step > 1 {
		c.ctrl.Resume(step)
	}
	c.view.flush()
	return nil
}

func (c *Component) restore(ctx context.Context, token string) (draft, string, bool) {
	var d draft
	id, err := c.opts.Drafts.Restore(ctx, token, &d)
	if err != nil {
		logging.L(ctx).Debug("draft not restored", logging.Err(err))
		return d, "", false
	}
	if c.user == nil || d.UserID != c.user.UserID {
		logging.L(ctx).Warn("draft token presented by another user")
		return d, "", false
	}
	if d.Values == nil {
		d.Values = make(map[string]string)
	}
	return d, id, true
}

// saveDraft stores the current step and values and hands the browser its
// token the first time.
func (c *Component) saveDraft(ctx context.Context) {
	if c.opts.Drafts == nil || c.draftID == "" {
		return
	}
	var uid int64
	if c.user != nil {
		uid = c.user.UserID
	}
	token, err := c.opts.Drafts.Save(ctx, c.draftID, draft{UserID: uid, Step: c.ctrl.Current(), Values: c.view.copyValues()})
	if err != nil {
		logging.L(ctx).Warn("saving draft failed", logging.Err(err))
		return
	}
	if token != c.token {
		c.token = token
		c.view.push(js.JS.SetAttr("#"+FormID, RecoverAttr, token))
	}
}

func (c *Component) discardDraft(ctx context.Context) {
	if c.opts.Drafts == nil || c.draftID == "" {
		return
	}
	if err := c.opts.Drafts.Discard(ctx, c.draftID); err != nil {
		logging.L(ctx).Warn("discarding draft failed", logging.Err(err))
	}
	c.draftID = ""
}

// Render implements core.Component.
func (c *Component) Render(_ context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		page := layout.Page{
			Title:  "Report a crime",
			Nonce:  router.GetCSPNonce(ctx),
			User:   c.user,
			Active: Path,
			Live:   true,
		}
		_, err := io.WriteString(w, layout.Document(page, renderForm(c.def, c.view, c.ctrl.Current(), c.csrf)))
		return err
	})
}

// HandleEvent implements core.Component.
func (c *Component) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	var err error
	switch event {
	case EventChange:
		err = c.change(payload)
	case EventLocate:
		c.locate()
	case EventLocationDetected:
		err = c.locationDetected(payload)
	case EventLocationFailed:
		c.locationFailed(payload)
	case EventAttachmentSelected:
		c.attachmentSelected(payload)
	default:
		err = c.dispatch(ctx, event, payload)
	}
	c.saveDraft(ctx)
	execErr := c.exec()
	if err != nil {
		return err
	}
	return execErr
}

// Terminate implements core.Component.
// A session reaped for idling abandons its draft. Disconnects keep it for
// the reconnect.
func (c *Component) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if reason == core.TerminateIdle {
		c.discardDraft(ctx)
	}
	return nil
}

// Step returns the current wizard step.
func (c *Component) Step() int {
	return c.ctrl.Current()
}

// Value returns the synced value of a field.
func (c *Component) Value(field string) string {
	return c.view.Value(field)
}

func (c *Component) exec() error {
	ops := c.view.flush()
	if len(ops) == 0 {
		return nil
	}
	socket := c.Socket()
	if socket == nil {
		return nil
	}
	return socket.Exec(ops)
}

func (c *Component) dispatch(ctx context.Context, event string, payload map[string]any) error {
	action, ok := wizard.ParseAction(event)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if err := c.sync(payload); err != nil {
		return err
	}

	target, _ := protocol.PayloadInt(payload, "step")
	out, err := c.ctrl.Dispatch(action, target)
	if err != nil {
		return err
	}

	logging.L(ctx).Debug("wizard action",
		logging.Action(string(action)),
		logging.Step(out.To),
		logging.Int("from", out.From),
		logging.Any("failed", out.Failed),
	)
	if c.opts.Recorder != nil {
		c.opts.Recorder.WizardOutcome(out)
	}

	if out.Submit {
		c.discardDraft(ctx)
		c.view.push(js.JS.Submit("#" + FormID))
	}
	return nil
}

// sync applies the optional "values" map sent with navigation events.
func (c *Component) sync(payload map[string]any) error {
	raw, ok := payload["values"]
	if !ok || raw == nil {
		return nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: values must be an object", ErrBadPayload)
	}
	for name := range values {
		if c.def.StepOf(name) == 0 || name == FieldAttachment {
			continue
		}
		c.view.set(name, protocol.PayloadString(values, name))
	}
	return nil
}

func (c *Component) change(payload map[string]any) error {
	field := protocol.PayloadString(payload, "field")
	if c.def.StepOf(field) == 0 || field == FieldAttachment {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	c.view.set(field, protocol.PayloadString(payload, "value"))
	return nil
}

func (c *Component) locate() {
	c.view.push(
		js.JS.SetText("#"+LocateID, LocatingLabel),
		js.JS.SetAttr("#"+LocateID, "disabled", "disabled"),
		js.JS.Geolocate(EventLocationDetected, EventLocationFailed, locateTimeout),
	)
}

func (c *Component) resetLocate() {
	c.view.push(
		js.JS.SetText("#"+LocateID, LocateLabel),
		js.JS.RemoveAttr("#"+LocateID, "disabled"),
	)
}

func (c *Component) locationDetected(payload map[string]any) error {
	lat, okLat := protocol.PayloadFloat(payload, "latitude")
	lon, okLon := protocol.PayloadFloat(payload, "longitude")
	if !okLat || !okLon {
		c.resetLocate()
		return fmt.Errorf("%w: latitude and longitude are required", ErrBadPayload)
	}

	latText := strconv.FormatFloat(lat, 'f', coordPrecision, 64)
	lonText := strconv.FormatFloat(lon, 'f', coordPrecision, 64)
	c.view.fill(FieldLatitude, latText)
	c.view.fill(FieldLongitude, lonText)
	if strings.TrimSpace(c.view.Value(FieldLocation)) == "" {
		c.view.fill(FieldLocation, latText+", "+lonText)
	}
	c.resetLocate()
	return nil
}

func (c *Component) locationFailed(payload map[string]any) {
	msg := msgGeoFailed + protocol.PayloadString(payload, "message")
	if protocol.PayloadBool(payload, "unsupported") {
		msg = msgGeoUnsupported
	}
	c.view.push(js.JS.Alert(msg))
	c.resetLocate()
}

func (c *Component) attachmentSelected(payload map[string]any) {
	name := protocol.PayloadString(payload, "name")
	size, _ := protocol.PayloadFloat(payload, "size")

	reject := ""
	switch {
	case name == "":
	case c.opts.Allowed != nil && !c.opts.Allowed(name):
		reject = msgBadFileType
	case c.opts.MaxSize > 0 && int64(size) > c.opts.MaxSize:
		reject = msgFileTooLarge
	}

	if reject != "" {
		c.view.push(
			js.JS.Alert(reject),
			js.JS.SetValue("#"+FieldAttachment, ""),
			js.JS.Hide("#attachment-preview"),
		)
		name = ""
	}
	c.view.set(FieldAttachment, name)
}
