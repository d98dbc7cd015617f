package activity

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/internal/window"
)

// Pending identifies the hysteresis layer active under the visible state.
type Pending int

const (
	PendingNone Pending = iota
	PendingRiding
	PendingRest
)

func (p Pending) String() string {
	switch p {
	case PendingRiding:
		return "pending_riding"
	case PendingRest:
		return "pending_rest"
	default:
		return "none"
	}
}

// pendingContext is carried next to the visible state while a pending layer
// runs. For PendingRiding it accumulates the travel since the layer opened;
// for PendingRest only since and startAlt are used.
type pendingContext struct {
	kind       Pending
	since      time.Time
	startAlt   float64
	distance   float64
	speedSum   float64
	speedCount int
}

func (c pendingContext) elapsed(at time.Time) time.Duration {
	return at.Sub(c.since)
}

func (c pendingContext) avgSpeed() float64 {
	if c.speedCount == 0 {
		return 0
	}
	return c.speedSum / float64(c.speedCount)
}

// status is the complete classifier state: the visible state plus the
// pending context and the OnLift stillness timer.
type status struct {
	state      types.ActivityState
	pending    pendingContext
	stillSince time.Time

	// unloaded is set once the rider is seen leaving the lift line while the
	// visible state is still OnLift.
	unloaded bool
}

// inputs is what decide sees for one frame.
type inputs struct {
	frame types.Frame
	lift  window.Stats // LiftWindow, with trend
	rest  window.Stats // RestWindow
}

// decide is the transition function. It is pure: the next status and the
// transitions it produced depend only on its arguments.
func decide(st status, in inputs, p Params) (status, []Transition) {
	switch st.state {
	case types.Riding:
		if st.pending.kind == PendingRest {
			return decidePendingRest(st, in, p)
		}
		return decideRiding(st, in, p)
	case types.OnLift:
		return decideOnLift(st, in, p)
	default:
		return decideResting(st, in, p)
	}
}

func decideResting(st status, in inputs, p Params) (status, []Transition) {
	f := in.frame
	var out []Transition

	if st.pending.kind == PendingRiding {
		st.pending.distance += f.StepDistance
		if f.SpeedValid {
			st.pending.speedSum += f.Speed
			st.pending.speedCount++
		}
		if st.pending.elapsed(f.Time) >= p.ConfirmWindow {
			drop := st.pending.startAlt - f.Altitude
			if st.pending.avgSpeed() >= p.ConfirmAvgSpeed && st.pending.distance >= p.ConfirmDistance && drop >= p.ConfirmDrop {
				next := status{state: types.Riding}
				return next, []Transition{changed(types.Resting, types.Riding, f.Time)}
			}
			st.pending = pendingContext{}
			out = append(out, Transition{Kind: PendingRidingCancelled, From: types.Resting, To: types.Resting, At: f.Time, EffectiveAt: f.Time})
		}
	}

	if in.lift.NetAltitude >= p.RestingLiftAscent {
		if st.pending.kind == PendingRiding {
			out = append(out, Transition{Kind: PendingRidingCancelled, From: types.Resting, To: types.Resting, At: f.Time, EffectiveAt: f.Time})
		}
		return status{state: types.OnLift}, append(out, changed(types.Resting, types.OnLift, f.Time))
	}

	if st.pending.kind == PendingNone && f.Speed > p.RideEntrySpeed && descending(in, p) {
		st.pending = pendingContext{kind: PendingRiding, since: f.Time, startAlt: f.Altitude}
		if f.SpeedValid {
			st.pending.speedSum = f.Speed
			st.pending.speedCount = 1
		}
		out = append(out, Transition{Kind: PendingRidingEntered, From: types.Resting, To: types.Resting, At: f.Time, EffectiveAt: f.Time})
	}
	return st, out
}

// descending reports a descent on the current frame or across the lift window.
func descending(in inputs, p Params) bool {
	return in.frame.AltitudeDelta <= -p.DescentDetectDelta || in.lift.NetAltitude <= -p.ConfirmDrop
}

func decideRiding(st status, in inputs, p Params) (status, []Transition) {
	f := in.frame
	if in.lift.NetAltitude >= p.RidingLiftAscent {
		return status{state: types.OnLift}, []Transition{changed(types.Riding, types.OnLift, f.Time)}
	}
	if in.rest.Full && in.rest.MaxSpeed <= p.RestMaxSpeed && -in.rest.NetAltitude <= p.RestMaxDescent {
		st.pending = pendingContext{kind: PendingRest, since: f.Time, startAlt: f.Altitude}
		return st, []Transition{{Kind: PendingRestEntered, From: types.Riding, To: types.Riding, At: f.Time, EffectiveAt: f.Time}}
	}
	return st, nil
}

func decidePendingRest(st status, in inputs, p Params) (status, []Transition) {
	f := in.frame
	entry := st.pending.since

	if in.lift.NetAltitude >= p.RidingLiftAscent {
		t := changed(types.Riding, types.OnLift, f.Time)
		t.EffectiveAt = entry
		t.FromPendingRest = true
		return status{state: types.OnLift}, []Transition{t}
	}

	drop := st.pending.startAlt - f.Altitude
	if f.Speed >= p.ResumeSpeed && (drop >= p.ResumeDrop || in.lift.AltitudeTrend <= p.ResumeTrend) {
		st.pending = pendingContext{}
		return st, []Transition{{Kind: PendingRestCancelled, From: types.Riding, To: types.Riding, At: f.Time, EffectiveAt: f.Time}}
	}

	if st.pending.elapsed(f.Time) >= p.PendingRestTimeout {
		t := changed(types.Riding, types.Resting, f.Time)
		t.EffectiveAt = entry
		t.FromPendingRest = true
		return status{state: types.Resting}, []Transition{t}
	}
	return st, nil
}

func decideOnLift(st status, in inputs, p Params) (status, []Transition) {
	f := in.frame
	liftLike := in.lift.Straightness >= p.LiftStraightness && in.lift.HeadingDeviation <= p.LiftHeadingVariance
	if f.Speed > p.LiftExitSpeed && -in.lift.NetAltitude >= p.LiftExitDescent && !liftLike {
		return status{state: types.Riding}, []Transition{changed(types.OnLift, types.Riding, f.Time)}
	}

	var out []Transition
	descendingOff := f.Speed >= p.LiftStopSpeed && f.AltitudeDelta <= -p.DescentDetectDelta && !liftLike
	switch {
	case !st.unloaded && descendingOff:
		st.unloaded = true
		out = append(out, Transition{Kind: LiftUnloadDetected, From: types.OnLift, To: types.OnLift, At: f.Time, EffectiveAt: f.Time})
	case st.unloaded && liftLike && f.AltitudeDelta >= p.DescentDetectDelta:
		// Climbing along the lift line again; the next descent is a new unload.
		st.unloaded = false
	}

	still := f.Speed < p.LiftStopSpeed &&
		math.Abs(in.lift.AltitudeTrend) < p.LiftStopTrend &&
		math.Abs(in.lift.NetAltitude) < p.LiftStopNetChange
	if !still {
		st.stillSince = time.Time{}
		return st, out
	}
	if st.stillSince.IsZero() {
		st.stillSince = f.Time
	}
	if f.Time.Sub(st.stillSince) >= p.LiftStopDuration {
		return status{state: types.Resting}, append(out, changed(types.OnLift, types.Resting, f.Time))
	}
	return st, out
}

func changed(from, to types.ActivityState, at time.Time) Transition {
	return Transition{Kind: StateChanged, From: from, To: to, At: at, EffectiveAt: at}
}
