package reportwizard

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/pkg/core"
	"github.com/gabrielmiguelok/crimedesk/pkg/js"
	"github.com/gabrielmiguelok/crimedesk/pkg/recovery"
	lvtest "github.com/gabrielmiguelok/crimedesk/pkg/testing"
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

type recorder struct {
	outcomes []wizard.Outcome
}

func (r *recorder) WizardOutcome(out wizard.Outcome) {
	r.outcomes = append(r.outcomes, out)
}

func allowImages(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func mount(t *testing.T, opts ...lvtest.MountOption) (*lvtest.LiveViewTest, *Component, *recorder) {
	t.Helper()
	rec := &recorder{}
	comp := New(Options{Allowed: allowImages, MaxSize: 1024, Recorder: rec})().(*Component)
	lvt := lvtest.Mount(t, comp, append([]lvtest.MountOption{
		lvtest.WithSession(core.Session{"username": "ana", "user_id": int64(7), "csrf_token": "tok"}),
	}, opts...)...)
	return lvt, comp, rec
}

func change(lvt *lvtest.LiveViewTest, field, value string) {
	lvt.MustPush(EventChange, map[string]any{"field": field, "value": value})
}

func args(cmds js.Commands, op, key string) []any {
	var out []any
	for _, c := range cmds.Find(op) {
		out = append(out, c.Args[key])
	}
	return out
}

func TestDefinitionIsValid(t *testing.T) {
	def := Definition()
	require.NoError(t, def.Validate())
	assert.Equal(t, 3, def.Last())
	assert.Equal(t, 2, def.StepOf(FieldLocation))
}

func TestMount_RendersFirstStep(t *testing.T) {
	lvt, comp, _ := mount(t)

	assert.Equal(t, 1, comp.Step())
	assert.Empty(t, lvt.Ops(), "initial display sends nothing")
	lvt.HTML().
		HasID(FormID).
		HasID(LocateID).
		HasID("themeToggle").
		HasSlot("step-status", "Step 1 of 3: Incident").
		HasSlot(AttachmentTag, wizard.PlaceholderNone).
		HasText(`<section class="step-panel" data-step="1" aria-label="Incident">`).
		HasText(`<section class="step-panel" data-step="2" hidden`).
		HasText(`<button type="button" class="step active" data-step="1"`).
		HasText(`name="_csrf" value="tok"`).
		HasText("ana")
}

func TestMount_PrefillsFromParams(t *testing.T) {
	lvt, comp, _ := mount(t, lvtest.WithParams(core.Params{"crime_type": "Theft", "attachment": "x.png"}))

	assert.Equal(t, "Theft", comp.Value(FieldCrimeType))
	assert.Empty(t, comp.Value(FieldAttachment))
	lvt.HTML().HasText(`value="Theft"`)
}

func TestNext_BlocksOnBlankDescription(t *testing.T) {
	lvt, comp, rec := mount(t)

	change(lvt, FieldCrimeType, "Theft")
	change(lvt, FieldDescription, "   ")
	change(lvt, FieldLocation, "Main St")
	lvt.ClearOps()

	lvt.MustPush(string(wizard.ActionNext), nil)

	assert.Equal(t, 1, comp.Step())
	ops := lvt.Ops()
	assert.Equal(t, []any{"#" + FieldDescription}, args(ops, js.OpAddClass, "to"))
	assert.Equal(t, []any{"#" + FieldCrimeType}, args(ops, js.OpRemoveClass, "to"))
	assert.Equal(t, []any{"#" + FieldDescription}, args(ops, js.OpFocus, "to"))
	assert.Empty(t, ops.Find(js.OpShow))
	lvt.HTML().HasText(`class="form-control input-error" rows="5"`)

	require.Len(t, rec.outcomes, 1)
	assert.True(t, rec.outcomes[0].Blocked())

	change(lvt, FieldDescription, "Bag stolen")
	lvt.ClearOps()
	lvt.MustPush(string(wizard.ActionNext), nil)

	assert.Equal(t, 2, comp.Step())
	ops = lvt.Ops()

	shows := ops.Find(js.OpShow)
	require.Len(t, shows, 1)
	assert.Equal(t, `.step-panel[data-step="2"]`, shows[0].Args["to"])
	assert.Equal(t, js.TransitionSlideIn, shows[0].Args["transition"])
	assert.Equal(t, 300, shows[0].Args["time"])
	assert.Equal(t, 20, shows[0].Args["offset"])

	hides := ops.Find(js.OpHide)
	require.Len(t, hides, 1)
	assert.Equal(t, `.step-panel[data-step="1"]`, hides[0].Args["to"])
	assert.Equal(t, js.TransitionSlideOut, hides[0].Args["transition"])
	assert.Equal(t, -20, hides[0].Args["offset"])

	assert.Contains(t, args(ops, js.OpAddClass, "to"), `.form-stepper .step[data-step="2"]`)
	assert.Contains(t, args(ops, js.OpRemoveClass, "to"), `.form-stepper .step[data-step="1"]`)
	assert.Equal(t, []any{"#" + FieldLocation}, args(ops, js.OpFocus, "to"))
	lvt.HTML().HasSlot("step-status", "Step 2 of 3: Where")
}

func TestBack_AnimatesBackwardAndStopsAtOne(t *testing.T) {
	lvt, comp, _ := mount(t)

	lvt.MustPush(string(wizard.ActionBack), nil)
	assert.Equal(t, 1, comp.Step())
	assert.Empty(t, lvt.Ops(), "back on step 1 does nothing")

	lvt.MustPush(string(wizard.ActionNext), map[string]any{"values": map[string]any{
		FieldCrimeType:   "Theft",
		FieldDescription: "Bag stolen",
	}})
	require.Equal(t, 2, comp.Step())
	lvt.ClearOps()

	lvt.MustPush(string(wizard.ActionBack), nil)
	assert.Equal(t, 1, comp.Step())
	shows := lvt.Ops().Find(js.OpShow)
	require.Len(t, shows, 1)
	assert.Equal(t, -20, shows[0].Args["offset"])
	hides := lvt.Ops().Find(js.OpHide)
	require.Len(t, hides, 1)
	assert.Equal(t, 20, hides[0].Args["offset"])
}

func TestSubmit_RedirectsThenAllows(t *testing.T) {
	lvt, comp, rec := mount(t)

	lvt.MustPush(string(wizard.ActionSubmit), map[string]any{"values": map[string]any{
		FieldCrimeType:   "Theft",
		FieldDescription: "Bag stolen",
		FieldLocation:    "Main St",
	}})

	assert.Equal(t, 3, comp.Step())
	ops := lvt.Ops()
	assert.Empty(t, ops.Find(js.OpSubmit))
	for _, show := range ops.Find(js.OpShow) {
		assert.Nil(t, show.Args["transition"], "redirected submit does not animate")
	}
	assert.Contains(t, args(ops, js.OpSetText, "text"), "Theft")
	assert.Contains(t, args(ops, js.OpSetText, "text"), wizard.PlaceholderNone)
	lvt.HTML().HasText(`<dd id="review-location">Main St</dd>`)

	lvt.ClearOps()
	lvt.MustPush(string(wizard.ActionSubmit), nil)

	submits := lvt.Ops().Find(js.OpSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, "#"+FormID, submits[0].Args["to"])

	require.Len(t, rec.outcomes, 2)
	assert.True(t, rec.outcomes[0].Redirected)
	assert.True(t, rec.outcomes[1].Submit)
}

func TestGoto_ValidatesSkippedSteps(t *testing.T) {
	lvt, comp, _ := mount(t)

	change(lvt, FieldCrimeType, "Theft")
	change(lvt, FieldDescription, "Bag stolen")
	lvt.ClearOps()

	lvt.MustPush(string(wizard.ActionGoto), map[string]any{"step": float64(3)})

	assert.Equal(t, 2, comp.Step(), "stops on the step missing a location")
	ops := lvt.Ops()
	assert.Contains(t, args(ops, js.OpAddClass, "to"), "#"+FieldLocation)
	focus := args(ops, js.OpFocus, "to")
	assert.Equal(t, "#"+FieldLocation, focus[len(focus)-1])

	lvt.MustPush(string(wizard.ActionGoto), map[string]any{"step": "1"})
	assert.Equal(t, 1, comp.Step())
}

func TestChange_RejectsUnknownField(t *testing.T) {
	lvt, _, _ := mount(t)

	err := lvt.Push(EventChange, map[string]any{"field": "password", "value": "x"})
	assert.ErrorIs(t, err, ErrUnknownField)

	err = lvt.Push(EventChange, map[string]any{"field": FieldAttachment, "value": "x.png"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestUnknownEvent(t *testing.T) {
	lvt, _, _ := mount(t)
	assert.ErrorIs(t, lvt.Push("explode", nil), ErrUnknownEvent)
	assert.ErrorIs(t, lvt.Push(string(wizard.ActionNext), map[string]any{"values": "nope"}), ErrBadPayload)
}

func TestLocate(t *testing.T) {
	lvt, _, _ := mount(t)

	lvt.MustPush(EventLocate, nil)
	ops := lvt.Ops()
	assert.Equal(t, []any{LocatingLabel}, args(ops, js.OpSetText, "text"))
	geo := ops.Find(js.OpGeolocate)
	require.Len(t, geo, 1)
	assert.Equal(t, EventLocationDetected, geo[0].Args["ok"])
	assert.Equal(t, EventLocationFailed, geo[0].Args["error"])
	assert.Equal(t, 10000, geo[0].Args["timeout"])
}

func TestLocationDetected_FillsBlankLocation(t *testing.T) {
	lvt, comp, _ := mount(t)

	lvt.MustPush(EventLocationDetected, map[string]any{"latitude": 40.4167754, "longitude": -3.7037902})

	assert.Equal(t, "40.416775", comp.Value(FieldLatitude))
	assert.Equal(t, "-3.703790", comp.Value(FieldLongitude))
	assert.Equal(t, "40.416775, -3.703790", comp.Value(FieldLocation))

	ops := lvt.Ops()
	assert.Equal(t, []any{"#latitude", "#longitude", "#location"}, args(ops, js.OpSetValue, "to"))
	assert.Equal(t, []any{LocateLabel}, args(ops, js.OpSetText, "text"))
	assert.Len(t, ops.Find(js.OpRemoveAttr), 1)
}

func TestLocationDetected_KeepsTypedLocation(t *testing.T) {
	lvt, comp, _ := mount(t)
	change(lvt, FieldLocation, "Main St")

	lvt.MustPush(EventLocationDetected, map[string]any{"latitude": "1.5", "longitude": "2"})

	assert.Equal(t, "Main St", comp.Value(FieldLocation))
	assert.Equal(t, "1.500000", comp.Value(FieldLatitude))

	assert.ErrorIs(t, lvt.Push(EventLocationDetected, map[string]any{"latitude": 1.0}), ErrBadPayload)
}

func TestLocationFailed(t *testing.T) {
	lvt, _, _ := mount(t)

	lvt.MustPush(EventLocationFailed, map[string]any{"message": "User denied Geolocation"})
	lvt.MustPush(EventLocationFailed, map[string]any{"unsupported": true})

	assert.Equal(t, []any{
		"Unable to get location: User denied Geolocation",
		"Geolocation not supported by your browser.",
	}, args(lvt.Ops(), js.OpAlert, "message"))
	assert.Equal(t, []any{LocateLabel, LocateLabel}, args(lvt.Ops(), js.OpSetText, "text"))
}

func TestAttachmentSelected(t *testing.T) {
	lvt, comp, _ := mount(t)

	lvt.MustPush(EventAttachmentSelected, map[string]any{"name": "photo.JPG", "size": float64(512)})
	assert.Equal(t, "photo.JPG", comp.Value(FieldAttachment))
	assert.Empty(t, lvt.Ops())
	lvt.HTML().HasSlot(AttachmentTag, "photo.JPG")

	lvt.MustPush(EventAttachmentSelected, map[string]any{"name": "notes.pdf", "size": float64(10)})
	assert.Empty(t, comp.Value(FieldAttachment))
	assert.Equal(t, []any{msgBadFileType}, args(lvt.Ops(), js.OpAlert, "message"))
	assert.Equal(t, []any{"#" + FieldAttachment}, args(lvt.Ops(), js.OpSetValue, "to"))
	lvt.HTML().HasSlot(AttachmentTag, wizard.PlaceholderNone)

	lvt.ClearOps()
	lvt.MustPush(EventAttachmentSelected, map[string]any{"name": "big.png", "size": float64(4096)})
	assert.Equal(t, []any{msgFileTooLarge}, args(lvt.Ops(), js.OpAlert, "message"))
}

func TestRender_ShowsOnlyCurrentStep(t *testing.T) {
	lvt, comp, _ := mount(t)
	change(lvt, FieldCrimeType, "Theft")
	change(lvt, FieldDescription, "Bag stolen")
	change(lvt, FieldLocation, "Main St")

	for _, action := range []wizard.Action{wizard.ActionNext, wizard.ActionNext, wizard.ActionBack} {
		lvt.MustPush(string(action), nil)

		doc := lvt.Rendered()
		current := comp.Step()
		assert.Equal(t, 3, strings.Count(doc, `<section class="step-panel"`))
		assert.Equal(t, 2, strings.Count(doc, `" hidden aria-label=`), "after %s", action)
		assert.Contains(t, doc, fmt.Sprintf(`<section class="step-panel" data-step="%d" aria-label=`, current))
		assert.Equal(t, 1, strings.Count(doc, `class="step active"`))
		assert.Contains(t, doc, fmt.Sprintf(`<button type="button" class="step active" data-step="%d"`, current))
	}
	assert.Equal(t, 2, comp.Step())
}

func TestRedisplay(t *testing.T) {
	doc := Redisplay(layout.Page{Title: "Report a crime", Nonce: "n"}, "tok",
		map[string]string{FieldCrimeType: "Theft", FieldDescription: "Bag <stolen>"},
		[]string{FieldLocation})

	assert.Contains(t, doc, `<section class="step-panel" data-step="2" aria-label="Where">`)
	assert.Contains(t, doc, `<section class="step-panel" data-step="1" hidden`)
	assert.Contains(t, doc, `id="location" name="location" class="form-control input-error"`)
	assert.Contains(t, doc, "Bag &lt;stolen&gt;</textarea>")
	assert.Contains(t, doc, `value="tok"`)

	first := Redisplay(layout.Page{}, "", nil, []string{FieldDescription})
	assert.Contains(t, first, `<section class="step-panel" data-step="1" aria-label="Incident">`)
}

func TestDraft_ResumesAfterReconnect(t *testing.T) {
	drafts := recovery.NewManager(recovery.Config{Secret: []byte("k")})
	session := core.Session{"username": "ana", "user_id": int64(7)}

	first := New(Options{Drafts: drafts})().(*Component)
	lvt := lvtest.Mount(t, first, lvtest.WithSession(session))
	change(lvt, FieldCrimeType, "Theft")
	change(lvt, FieldDescription, "Bag stolen")
	lvt.MustPush(string(wizard.ActionNext), nil)
	require.Equal(t, 2, first.Step())

	tokens := args(lvt.Ops(), js.OpSetAttr, "value")
	require.Len(t, tokens, 1, "token is sent once")
	token := tokens[0].(string)

	second := New(Options{Drafts: drafts})().(*Component)
	resumed := lvtest.Mount(t, second,
		lvtest.WithSession(session),
		lvtest.WithParams(core.Params{RecoverParam: token}),
	)
	assert.Equal(t, 2, second.Step())
	assert.Equal(t, "Bag stolen", second.Value(FieldDescription))
	resumed.HTML().HasSlot("step-status", "Step 2 of 3: Where")

	resumed.MustPush(EventChange, map[string]any{"field": FieldLocation, "value": "Main St"})
	assert.Empty(t, resumed.Ops().Find(js.OpSetAttr), "resumed token is kept")

	stranger := New(Options{Drafts: drafts})().(*Component)
	lvtest.Mount(t, stranger,
		lvtest.WithSession(core.Session{"username": "eve", "user_id": int64(9)}),
		lvtest.WithParams(core.Params{RecoverParam: token}),
	)
	assert.Equal(t, 1, stranger.Step())
	assert.Empty(t, stranger.Value(FieldDescription))

	forged := New(Options{Drafts: drafts})().(*Component)
	lvtest.Mount(t, forged,
		lvtest.WithSession(session),
		lvtest.WithParams(core.Params{RecoverParam: token + "x"}),
	)
	assert.Equal(t, 1, forged.Step())
}

func TestDraft_DiscardedOnSubmit(t *testing.T) {
	drafts := recovery.NewManager(recovery.Config{})
	session := core.Session{"username": "ana", "user_id": int64(7)}

	comp := New(Options{Drafts: drafts})().(*Component)
	lvt := lvtest.Mount(t, comp, lvtest.WithSession(session))
	change(lvt, FieldCrimeType, "Theft")
	change(lvt, FieldDescription, "Bag stolen")
	change(lvt, FieldLocation, "Main St")
	token := args(lvt.Ops(), js.OpSetAttr, "value")[0].(string)

	lvt.MustPush(string(wizard.ActionGoto), map[string]any{"step": 3})
	require.Equal(t, 3, comp.Step())
	lvt.MustPush(string(wizard.ActionSubmit), nil)
	require.NotEmpty(t, lvt.Ops().Find(js.OpSubmit))

	var d draft
	_, err := drafts.Restore(context.Background(), token, &d)
	assert.ErrorIs(t, err, recovery.ErrStateNotFound)
}

func TestDraft_IdleSessionDropsDraft(t *testing.T) {
	ctx := context.Background()
	drafts := recovery.NewManager(recovery.Config{})
	session := core.Session{"username": "ana", "user_id": int64(7)}

	comp := New(Options{Drafts: drafts})().(*Component)
	lvt := lvtest.Mount(t, comp, lvtest.WithSession(session))
	change(lvt, FieldCrimeType, "Theft")
	token := args(lvt.Ops(), js.OpSetAttr, "value")[0].(string)

	var d draft
	require.NoError(t, comp.Terminate(ctx, core.TerminateNormal))
	_, err := drafts.Restore(ctx, token, &d)
	require.NoError(t, err, "a disconnect keeps the draft")

	require.NoError(t, comp.Terminate(ctx, core.TerminateIdle))
	_, err = drafts.Restore(ctx, token, &d)
	assert.ErrorIs(t, err, recovery.ErrStateNotFound)
}
