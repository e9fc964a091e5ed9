package wizard

import (
	"strings"
	"time"
)

// View is the read/render port between a Controller and the page it drives.
// Implementations must not call back into the Controller.
type View interface {
	// Value returns the current raw value of the named field.
	Value(field string) string

	// SetPanelVisible shows or hides the panel of a step.
	SetPanelVisible(step int, visible bool)

	// SetIndicatorActive toggles the active marker of a step indicator.
	SetIndicatorActive(step int, active bool)

	// SetFieldError adds or clears the error marker on a field.
	SetFieldError(field string, failed bool)

	// Focus moves input focus to a field.
	Focus(field string)

	// SetReview renders the review snapshot.
	SetReview(snapshot Snapshot)

	// Animate decorates a transition that has already been applied.
	// It is cosmetic and may be ignored.
	Animate(t Transition)
}

// ReviewLine is one rendered row of the review snapshot.
type ReviewLine struct {
	Target string
	Label  string
	Text   string
	Blank  bool
}

// Snapshot is the read-only projection of field values shown on the final step.
type Snapshot []ReviewLine

// Text returns the rendered text of a review target.
func (s Snapshot) Text(target string) string {
	for _, line := range s {
		if line.Target == target {
			return line.Text
		}
	}
	return ""
}

func buildSnapshot(items []ReviewItem, view View) Snapshot {
	snap := make(Snapshot, 0, len(items))
	for _, item := range items {
		v := view.Value(item.Field)
		line := ReviewLine{Target: item.Target, Label: item.Label, Text: v}
		if strings.TrimSpace(v) == "" {
			line.Text = item.Placeholder
			line.Blank = true
		}
		snap = append(snap, line)
	}
	return snap
}

// TransitionDuration is how long panel slide animations run.
const TransitionDuration = 300 * time.Millisecond

// slideOffset is the horizontal distance, in pixels, panels travel while sliding.
const slideOffset = 20

// Direction is the direction of travel between panels.
type Direction int

const (
	// Forward moves to a later step.
	Forward Direction = iota
	// Backward moves to an earlier step.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Transition describes the animation between two panels.
type Transition struct {
	From      int
	To        int
	Direction Direction
	Duration  time.Duration
}

func newTransition(from, to int) Transition {
	dir := Forward
	if to < from {
		dir = Backward
	}
	return Transition{From: from, To: to, Direction: dir, Duration: TransitionDuration}
}

// ExitOffset is where the outgoing panel slides to, in pixels along x.
func (t Transition) ExitOffset() int {
	if t.Direction == Backward {
		return slideOffset
	}
	return -slideOffset
}

// EnterOffset is where the incoming panel starts, in pixels along x.
func (t Transition) EnterOffset() int {
	return -t.ExitOffset()
}
