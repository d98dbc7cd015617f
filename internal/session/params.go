package session

import (
	"time"

	"github.com/chrissnell/snowrecorder/internal/activity"
	"github.com/chrissnell/snowrecorder/internal/altitude"
	"github.com/chrissnell/snowrecorder/internal/metrics"
	"github.com/chrissnell/snowrecorder/internal/score"
	"github.com/chrissnell/snowrecorder/internal/segment"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/pkg/config"
)

// minBearingStep is the shortest step that still yields a usable bearing.
const minBearingStep = 0.5

// Params gathers the parameters of every pipeline stage.
type Params struct {
	Altitude altitude.Params
	Activity activity.Params
	Metrics  metrics.Params
	Segment  segment.Params
	Edge     score.EdgeParams
	Flow     score.FlowParams

	StartFinishRadius float64
	TagInterval       float64
	UnloadBoost       time.Duration
}

// DefaultParams returns the production pipeline.
func DefaultParams() Params {
	return Params{
		Altitude:          altitude.DefaultParams(),
		Activity:          activity.DefaultParams(),
		Metrics:           metrics.DefaultParams(),
		Segment:           segment.DefaultParams(),
		Edge:              score.DefaultEdgeParams(),
		Flow:              score.DefaultFlowParams(),
		StartFinishRadius: slope.StartFinishRadius,
		TagInterval:       slope.TagInterval,
		UnloadBoost:       slope.UnloadBoostWindow,
	}
}

// ApplyTuning overrides every parameter the tuning section sets. Zero values
// keep the default. Score constants are not tunable.
func ApplyTuning(p Params, t config.TuningData) Params {
	setDuration(&p.Segment.NoiseMaxDuration, t.NoiseMaxDurationSeconds)
	setFloat(&p.Segment.NoiseMaxDrop, t.NoiseMaxDrop)

	setDuration(&p.Activity.ConfirmWindow, t.ConfirmWindowSeconds)
	setDuration(&p.Activity.PendingRestTimeout, t.PendingRestTimeoutSeconds)
	setDuration(&p.Activity.LiftStopDuration, t.LiftStopSeconds)
	setSpeed(&p.Activity.RideEntrySpeed, t.RideEntrySpeedKmh)
	setSpeed(&p.Activity.ConfirmAvgSpeed, t.RideEntrySpeedKmh)
	setSpeed(&p.Activity.RestMaxSpeed, t.RestMaxSpeedKmh)
	setSpeed(&p.Activity.ResumeSpeed, t.ResumeSpeedKmh)
	setFloat(&p.Activity.RestingLiftAscent, t.RestingLiftAscent)
	setFloat(&p.Activity.RidingLiftAscent, t.RidingLiftAscent)

	setDuration(&p.Altitude.BaroLossTimeout, t.BaroLossTimeoutSeconds)

	setFloat(&p.Metrics.RouteIntervalRiding, t.RouteIntervalRiding)
	setFloat(&p.Metrics.RouteIntervalIdle, t.RouteIntervalIdle)

	setFloat(&p.StartFinishRadius, t.StartFinishRadius)
	setFloat(&p.TagInterval, t.TagInterval)
	setDuration(&p.UnloadBoost, t.UnloadBoostSeconds)
	setDuration(&p.Activity.UnloadBoost, t.UnloadBoostSeconds)
	return p
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setSpeed(dst *float64, kmh float64) {
	if kmh > 0 {
		*dst = types.Mps(kmh)
	}
}

func setDuration(dst *time.Duration, seconds float64) {
	if seconds > 0 {
		*dst = time.Duration(seconds * float64(time.Second))
	}
}
