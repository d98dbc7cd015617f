// Package metrics accumulates distance, vertical drop, speed statistics and
// the sampled route for a session and for the run in progress.
package metrics

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// Params tunes the accumulator.
type Params struct {
	RouteIntervalRiding   float64 // meters between route points while Riding
	RouteIntervalIdle     float64 // meters between route points otherwise
	MovingSpeed           float64 // m/s; slower Riding samples stay out of the average
	MaxSpeedAccuracy      float64 // m/s; worst speed accuracy accepted for max speed and the speed series
	MaxHorizontalAccuracy float64 // meters; worse fixes add no distance
}

// DefaultParams returns the production settings.
func DefaultParams() Params {
	return Params{
		RouteIntervalRiding:   5,
		RouteIntervalIdle:     20,
		MovingSpeed:           types.Mps(5),
		MaxSpeedAccuracy:      2.0,
		MaxHorizontalAccuracy: 50,
	}
}

// Totals is a snapshot of accumulated figures.
type Totals struct {
	Distance       float64
	VerticalDrop   float64
	MaxSpeed       float64
	TopAltitude    float64
	BottomAltitude float64
	HasAltitude    bool

	speedSum   float64
	speedCount int
}

// AvgSpeed is the mean of the moving Riding samples, 0 when there were none.
func (t Totals) AvgSpeed() float64 {
	if t.speedCount == 0 {
		return 0
	}
	return t.speedSum / float64(t.speedCount)
}

func (t *Totals) add(f types.Frame, p Params) {
	if f.Sample.HorizontalAccuracy <= p.MaxHorizontalAccuracy {
		t.Distance += f.StepDistance
	}
	if f.AltitudeDelta < 0 {
		t.VerticalDrop -= f.AltitudeDelta
	}
	if f.SpeedValid && f.Speed > p.MovingSpeed {
		t.speedSum += f.Speed
		t.speedCount++
	}
	if speedTrusted(f, p) {
		t.MaxSpeed = math.Max(t.MaxSpeed, f.Speed)
	}
	if f.AltitudeSource != types.AltitudeSourceNone {
		if !t.HasAltitude {
			t.TopAltitude, t.BottomAltitude, t.HasAltitude = f.Altitude, f.Altitude, true
		}
		t.TopAltitude = math.Max(t.TopAltitude, f.Altitude)
		t.BottomAltitude = math.Min(t.BottomAltitude, f.Altitude)
	}
}

func speedTrusted(f types.Frame, p Params) bool {
	acc := f.Sample.SpeedAccuracy
	return f.SpeedValid && acc >= 0 && acc <= p.MaxSpeedAccuracy
}

// Accumulator is fed one frame at a time with the visible state. Pending
// layers are collapsed by the caller, so PendingRest still counts as Riding.
type Accumulator struct {
	params Params

	session Totals
	run     Totals
	runOpen bool

	route        []types.RoutePoint
	sinceRoute   float64
	routeStarted bool
	speeds       []types.SpeedPoint

	ridingTime time.Duration
	liftTime   time.Duration
	lastTime   time.Time
	lastState  types.ActivityState
}

// New creates an empty accumulator.
func New(p Params) *Accumulator {
	return &Accumulator{params: p}
}

// Reset clears everything, including the route.
func (a *Accumulator) Reset() {
	*a = Accumulator{params: a.params}
}

// Observe folds one frame recorded while in state.
func (a *Accumulator) Observe(f types.Frame, state types.ActivityState) {
	if !a.lastTime.IsZero() && f.Time.After(a.lastTime) {
		switch a.lastState {
		case types.Riding:
			a.ridingTime += f.Time.Sub(a.lastTime)
		case types.OnLift:
			a.liftTime += f.Time.Sub(a.lastTime)
		}
	}
	if a.lastTime.IsZero() || f.Time.After(a.lastTime) {
		a.lastTime = f.Time
	}
	a.lastState = state

	if state == types.Riding {
		a.session.add(f, a.params)
		if a.runOpen {
			a.run.add(f, a.params)
		}
	}

	if speedTrusted(f, a.params) {
		a.speeds = append(a.speeds, types.SpeedPoint{Timestamp: f.Time, Speed: f.Speed})
	}
	a.sampleRoute(f, state)
}

func (a *Accumulator) sampleRoute(f types.Frame, state types.ActivityState) {
	interval := a.params.RouteIntervalIdle
	if state == types.Riding {
		interval = a.params.RouteIntervalRiding
	}
	a.sinceRoute += f.StepDistance
	if a.routeStarted && a.sinceRoute < interval {
		return
	}
	a.routeStarted = true
	a.sinceRoute = 0
	a.route = append(a.route, types.RoutePoint{
		Lat:       f.Sample.Lat,
		Lon:       f.Sample.Lon,
		Speed:     f.Speed,
		Altitude:  f.Altitude,
		Distance:  a.session.Distance,
		Timestamp: f.Time,
		State:     state,
	})
}

// OpenRun starts the per-run totals.
func (a *Accumulator) OpenRun() {
	a.run = Totals{}
	a.runOpen = true
}

// RunTotals returns the totals of the open run.
func (a *Accumulator) RunTotals() Totals {
	return a.run
}

// CloseRun stops the per-run totals and returns them.
func (a *Accumulator) CloseRun() Totals {
	t := a.run
	a.run = Totals{}
	a.runOpen = false
	return t
}

// Session returns the session totals.
func (a *Accumulator) Session() Totals {
	return a.session
}

// RidingTime and LiftTime return the time spent in each state.
func (a *Accumulator) RidingTime() time.Duration { return a.ridingTime }
func (a *Accumulator) LiftTime() time.Duration   { return a.liftTime }

// Route returns a copy of the sampled route.
func (a *Accumulator) Route() []types.RoutePoint {
	return append([]types.RoutePoint(nil), a.route...)
}

// RouteBetween returns the route points with start <= timestamp <= end.
func (a *Accumulator) RouteBetween(start, end time.Time) []types.RoutePoint {
	var out []types.RoutePoint
	for _, rp := range a.route {
		if rp.Timestamp.Before(start) || rp.Timestamp.After(end) {
			continue
		}
		out = append(out, rp)
	}
	return out
}

// RouteLen returns the number of route points.
func (a *Accumulator) RouteLen() int {
	return len(a.route)
}

// Speeds returns a copy of the accuracy-filtered speed series.
func (a *Accumulator) Speeds() []types.SpeedPoint {
	return append([]types.SpeedPoint(nil), a.speeds...)
}
