package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingView struct {
	values      map[string]string
	visible     map[int]bool
	active      map[int]bool
	errored     map[string]bool
	focused     string
	review      Snapshot
	reviews     int
	transitions []Transition
}

func newRecordingView() *recordingView {
	return &recordingView{
		values:  make(map[string]string),
		visible: make(map[int]bool),
		active:  make(map[int]bool),
		errored: make(map[string]bool),
	}
}

func (v *recordingView) Value(field string) string             { return v.values[field] }
func (v *recordingView) SetPanelVisible(step int, visible bool) { v.visible[step] = visible }
func (v *recordingView) SetIndicatorActive(step int, on bool)   { v.active[step] = on }
func (v *recordingView) SetFieldError(field string, failed bool) {
	v.errored[field] = failed
}
func (v *recordingView) Focus(field string) { v.focused = field }
func (v *recordingView) SetReview(s Snapshot) {
	v.review = s
	v.reviews++
}
func (v *recordingView) Animate(t Transition) { v.transitions = append(v.transitions, t) }

func (v *recordingView) visiblePanels() []int {
	var out []int
	for step, on := range v.visible {
		if on {
			out = append(out, step)
		}
	}
	return out
}

func (v *recordingView) activeIndicators() []int {
	var out []int
	for step, on := range v.active {
		if on {
			out = append(out, step)
		}
	}
	return out
}

func reportDefinition() Definition {
	return Definition{
		Steps: []Step{
			{Number: 1, Title: "Incident", Fields: []Field{
				{Name: "crime_type", Required: true},
				{Name: "description", Required: true},
			}},
			{Number: 2, Title: "Where", Fields: []Field{
				{Name: "location", Required: true},
				{Name: "latitude"},
				{Name: "longitude"},
			}},
			{Number: 3, Title: "Review", Fields: []Field{
				{Name: "additional"},
			}},
		},
		Review: []ReviewItem{
			{Target: "type", Field: "crime_type", Placeholder: PlaceholderNotProvided},
			{Target: "description", Field: "description", Placeholder: PlaceholderNotProvided},
			{Target: "location", Field: "location", Placeholder: PlaceholderNotProvided},
			{Target: "additional", Field: "additional", Placeholder: PlaceholderNone},
		},
	}
}

func newStarted(t *testing.T, values map[string]string) (*Controller, *recordingView) {
	t.Helper()
	view := newRecordingView()
	for k, v := range values {
		view.values[k] = v
	}
	c, err := New(reportDefinition(), view)
	require.NoError(t, err)
	c.Start()
	return c, view
}

func filled() map[string]string {
	return map[string]string{
		"crime_type":  "Theft",
		"description": "Bag stolen",
		"location":    "Main St",
	}
}

func TestNew_RejectsInvalidDefinitions(t *testing.T) {
	view := newRecordingView()

	_, err := New(Definition{}, view)
	assert.ErrorIs(t, err, ErrNoSteps)

	_, err = New(Definition{Steps: []Step{{Number: 2}}}, view)
	assert.ErrorIs(t, err, ErrStepOrder)

	_, err = New(Definition{Steps: []Step{
		{Number: 1, Fields: []Field{{Name: "a"}}},
		{Number: 2, Fields: []Field{{Name: "a"}}},
	}}, view)
	assert.ErrorIs(t, err, ErrDuplicateField)

	_, err = New(Definition{
		Steps:  []Step{{Number: 1, Fields: []Field{{Name: "a"}}}},
		Review: []ReviewItem{{Target: "x", Field: "missing"}},
	}, view)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = New(reportDefinition(), nil)
	assert.ErrorIs(t, err, ErrNilView)
}

func TestStart_ShowsFirstStepWithoutAnimation(t *testing.T) {
	c, view := newStarted(t, nil)

	assert.Equal(t, 1, c.Current())
	assert.Equal(t, []int{1}, view.visiblePanels())
	assert.Equal(t, []int{1}, view.activeIndicators())
	assert.Equal(t, "crime_type", view.focused)
	assert.Empty(t, view.transitions)
	assert.Zero(t, view.reviews)
}

func TestDisplay_ExactlyOnePanelAndIndicatorPerStep(t *testing.T) {
	c, view := newStarted(t, filled())

	for n := 1; n <= c.Last(); n++ {
		c.Goto(n)
		require.Equal(t, n, c.Current())
		assert.Equal(t, []int{n}, view.visiblePanels(), "step %d", n)
		assert.Equal(t, []int{n}, view.activeIndicators(), "step %d", n)
	}
}

func TestNext_BlankRequiredFieldBlocks(t *testing.T) {
	c, view := newStarted(t, map[string]string{
		"crime_type":  "   ",
		"description": "\t\n",
	})

	out := c.Next()

	assert.False(t, out.Moved())
	assert.Equal(t, []string{"crime_type", "description"}, out.Failed)
	assert.Equal(t, 1, c.Current())
	assert.True(t, view.errored["crime_type"])
	assert.True(t, view.errored["description"])
	assert.Equal(t, "crime_type", view.focused)
	assert.Empty(t, view.transitions)
}

func TestNext_ClearsMarkersOnPassingFields(t *testing.T) {
	c, view := newStarted(t, map[string]string{"crime_type": "", "description": ""})

	c.Next()
	require.True(t, view.errored["crime_type"])

	view.values["crime_type"] = "Assault"
	out := c.Next()

	assert.Equal(t, []string{"description"}, out.Failed)
	assert.False(t, view.errored["crime_type"])
	assert.True(t, view.errored["description"])
	assert.Equal(t, "description", view.focused)
}

func TestNext_TheftScenario(t *testing.T) {
	c, view := newStarted(t, map[string]string{
		"crime_type":  "Theft",
		"description": "",
		"location":    "Main St",
	})

	out := c.Next()
	assert.Equal(t, 1, c.Current())
	assert.Equal(t, []string{"description"}, out.Failed)
	assert.True(t, view.errored["description"])
	assert.False(t, view.errored["crime_type"])

	view.values["description"] = "Bag stolen"
	out = c.Next()
	assert.True(t, out.Moved())
	assert.Equal(t, 2, c.Current())
	assert.False(t, view.errored["description"])
	assert.Equal(t, "location", view.focused)

	require.Len(t, view.transitions, 1)
	tr := view.transitions[0]
	assert.Equal(t, Forward, tr.Direction)
	assert.Equal(t, 1, tr.From)
	assert.Equal(t, 2, tr.To)
	assert.Equal(t, TransitionDuration, tr.Duration)
}

func TestNext_AtFinalStepStays(t *testing.T) {
	c, view := newStarted(t, filled())
	c.Goto(3)
	before := len(view.transitions)

	out := c.Next()

	assert.False(t, out.Moved())
	assert.Equal(t, 3, c.Current())
	assert.Len(t, view.transitions, before)
}

func TestBack_NeverValidates(t *testing.T) {
	c, view := newStarted(t, filled())
	c.Next()
	require.Equal(t, 2, c.Current())

	view.values["location"] = ""
	view.values["description"] = ""
	out := c.Back()

	assert.True(t, out.Moved())
	assert.Empty(t, out.Failed)
	assert.Equal(t, 1, c.Current())
	assert.False(t, view.errored["location"])
	assert.False(t, view.errored["description"])

	tr := view.transitions[len(view.transitions)-1]
	assert.Equal(t, Backward, tr.Direction)
	assert.Equal(t, 20, tr.ExitOffset())
	assert.Equal(t, -20, tr.EnterOffset())
}

func TestBack_AtFirstStepIsNoop(t *testing.T) {
	c, view := newStarted(t, nil)

	out := c.Back()

	assert.False(t, out.Moved())
	assert.Equal(t, 1, c.Current())
	assert.Empty(t, view.transitions)
}

func TestSubmit_BeforeFinalStepRedirects(t *testing.T) {
	c, view := newStarted(t, filled())

	out := c.Submit()

	assert.False(t, out.Submit)
	assert.True(t, out.Redirected)
	assert.Equal(t, 3, c.Current())
	assert.Equal(t, []int{3}, view.visiblePanels())
	assert.Equal(t, 1, view.reviews)
	assert.Empty(t, view.transitions)
}

func TestSubmit_InvalidCurrentStepAborts(t *testing.T) {
	c, view := newStarted(t, map[string]string{"crime_type": "Theft"})

	out := c.Submit()

	assert.False(t, out.Submit)
	assert.False(t, out.Redirected)
	assert.Equal(t, 1, c.Current())
	assert.Equal(t, "description", view.focused)
}

func TestSubmit_AtFinalStepProceeds(t *testing.T) {
	c, _ := newStarted(t, filled())
	c.Next()
	c.Next()
	require.Equal(t, 3, c.Current())

	out := c.Submit()

	assert.True(t, out.Submit)
	assert.False(t, out.Redirected)
	assert.Empty(t, out.Failed)
}

func TestReview_PlaceholdersForBlankFields(t *testing.T) {
	c, view := newStarted(t, map[string]string{
		"crime_type":  "Vandalism",
		"description": "Window broken",
		"location":    "Main St",
	})
	c.Goto(3)
	require.Equal(t, 1, view.reviews)

	assert.Equal(t, "Vandalism", view.review.Text("type"))
	assert.Equal(t, "Window broken", view.review.Text("description"))
	assert.Equal(t, "Main St", view.review.Text("location"))
	assert.Equal(t, PlaceholderNone, view.review.Text("additional"))

	view.values["location"] = "  "
	view.values["additional"] = "Two suspects"
	c.Back()
	view.values["location"] = "Main St"
	c.Next()

	assert.Equal(t, 2, view.reviews)
	assert.Equal(t, "Two suspects", view.review.Text("additional"))

	view.values["description"] = ""
	snap := c.Snapshot()
	assert.Equal(t, PlaceholderNotProvided, snap.Text("description"))
}

func TestGoto_ForwardStopsAtFirstInvalidStep(t *testing.T) {
	c, view := newStarted(t, map[string]string{
		"crime_type":  "Theft",
		"description": "Bag stolen",
	})

	out := c.Goto(3)

	assert.Equal(t, 2, out.To)
	assert.Equal(t, []string{"location"}, out.Failed)
	assert.Equal(t, 2, c.Current())
	assert.True(t, view.errored["location"])
	assert.Equal(t, "location", view.focused)
}

func TestGoto_OutOfRangeIgnored(t *testing.T) {
	c, view := newStarted(t, filled())

	for _, n := range []int{0, -1, 4, 1} {
		out := c.Goto(n)
		assert.False(t, out.Moved(), "goto %d", n)
	}
	assert.Empty(t, view.transitions)
}

func TestDispatch(t *testing.T) {
	c, _ := newStarted(t, filled())

	out, err := c.Dispatch(ActionNext, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, out.To)

	_, err = c.Dispatch(Action("explode"), 0)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, 2, c.Current())
}

func TestParseAction(t *testing.T) {
	for _, name := range []string{"next", "back", "submit", "goto"} {
		a, ok := ParseAction(name)
		assert.True(t, ok, name)
		assert.Equal(t, Action(name), a)
	}

	_, ok := ParseAction("change")
	assert.False(t, ok)
}
