package activity

import (
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/internal/window"
)

// TransitionKind tells visible state changes apart from pending layer events.
type TransitionKind int

const (
	StateChanged TransitionKind = iota
	PendingRidingEntered
	PendingRidingCancelled
	PendingRestEntered
	PendingRestCancelled
	LiftUnloadDetected
)

func (k TransitionKind) String() string {
	switch k {
	case PendingRidingEntered:
		return "pending_riding_entered"
	case PendingRidingCancelled:
		return "pending_riding_cancelled"
	case PendingRestEntered:
		return "pending_rest_entered"
	case PendingRestCancelled:
		return "pending_rest_cancelled"
	case LiftUnloadDetected:
		return "lift_unload_detected"
	default:
		return "state_changed"
	}
}

// Transition is emitted by Step. For a StateChanged out of PendingRest,
// EffectiveAt is the instant the rider stopped (PendingRest entry) rather
// than the instant the change was confirmed. LiftUnloadDetected is raised
// while the visible state is still OnLift, as soon as the rider leaves the
// lift line descending.
type Transition struct {
	Kind            TransitionKind
	From, To        types.ActivityState
	At              time.Time
	EffectiveAt     time.Time
	FromPendingRest bool
}

// Machine feeds frames through decide, maintaining the trailing windows it
// needs. It must be driven by a single goroutine in frame time order.
type Machine struct {
	params Params
	st     status

	lift *window.Window
	rest *window.Window

	boostUntil time.Time
	last       time.Time
}

// New creates a machine in the Resting state.
func New(p Params) *Machine {
	return &Machine{
		params: p,
		lift:   window.New(p.LiftWindow),
		rest:   window.New(p.RestWindow),
	}
}

// Reset returns the machine to Resting with empty windows.
func (m *Machine) Reset() {
	m.st = status{}
	m.lift.Reset()
	m.rest.Reset()
	m.boostUntil = time.Time{}
	m.last = time.Time{}
}

// Step classifies one frame and returns the transitions it caused, in order.
func (m *Machine) Step(f types.Frame) []Transition {
	m.lift.Push(f)
	m.rest.Push(f)
	if f.Time.After(m.last) {
		m.last = f.Time
	}

	in := inputs{
		frame: f,
		lift:  m.lift.Snapshot(true),
		rest:  m.rest.Snapshot(false),
	}
	next, out := decide(m.st, in, m.params)
	m.st = next

	for _, t := range out {
		switch {
		case t.Kind == LiftUnloadDetected:
			m.boostUntil = t.At.Add(m.params.UnloadBoost)
		case t.Kind != StateChanged:
		case t.To == types.OnLift:
			m.boostUntil = time.Time{}
		case t.From == types.OnLift && !m.Unloading(t.At):
			m.boostUntil = t.At.Add(m.params.UnloadBoost)
		}
	}
	return out
}

// State returns the visible state. Pending layers never show here.
func (m *Machine) State() types.ActivityState {
	return m.st.state
}

// Pending returns the active pending layer and when it began.
func (m *Machine) Pending() (Pending, time.Time) {
	return m.st.pending.kind, m.st.pending.since
}

// Unloading reports whether at falls within the boost window that follows a
// lift disembark. The window opens on LiftUnloadDetected, or on the exit
// from OnLift when no unload was seen.
func (m *Machine) Unloading(at time.Time) bool {
	return !m.boostUntil.IsZero() && at.Before(m.boostUntil)
}

// AccuracyHint is the location accuracy the provider should use right now.
func (m *Machine) AccuracyHint() types.AccuracyMode {
	switch {
	case m.st.state == types.Riding && m.st.pending.kind == PendingRest:
		return types.AccuracyBalanced
	case m.st.state == types.Riding:
		return types.AccuracyHigh
	case m.Unloading(m.last):
		return types.AccuracyHigh
	default:
		return types.AccuracyCoarse
	}
}
