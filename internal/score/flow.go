package score

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
	"gonum.org/v1/gonum/stat"
)

// standardGravity converts G into m/s².
const standardGravity = 9.80665

// FlowParams tunes the Flow engine.
type FlowParams struct {
	MaxHorizontalAccuracy float64
	MaxSpeedAccuracy      float64

	StabilityWindow int
	MinWindowMean   float64 // m/s; slower windows carry no stability signal
	BaseScore       float64
	StabilityWeight float64

	MinActive  time.Duration
	MinMoving  time.Duration
	MinSamples int
	MaxGap     time.Duration
	IdleSpeed  float64 // m/s; slower samples count as idle, faster as moving

	IdlePenaltyPerSecond float64
	MaxIdlePenalty       float64

	HardBrakeDecel   float64 // m/s², negative
	HardBrakePenalty float64

	ChatterJerk       float64 // m/s³
	ChatterWindow     time.Duration
	ChatterCooldown   time.Duration
	ChatterMinSpeed   float64
	ChatterPenalty    float64
	MaxChatterPenalty float64

	QuietTolerance float64 // G around 1.0
	QuietDuration  time.Duration
	QuietMinSpeed  float64
	QuietBonus     float64

	MinScore float64
	MaxScore float64
}

// DefaultFlowParams returns the production Flow settings.
func DefaultFlowParams() FlowParams {
	return FlowParams{
		MaxHorizontalAccuracy: 80,
		MaxSpeedAccuracy:      10,

		StabilityWindow: 5,
		MinWindowMean:   1,
		BaseScore:       300,
		StabilityWeight: 700,

		MinActive:  5 * time.Second,
		MinMoving:  5 * time.Second,
		MinSamples: 5,
		MaxGap:     5 * time.Second,
		IdleSpeed:  1,

		IdlePenaltyPerSecond: 5,
		MaxIdlePenalty:       300,

		HardBrakeDecel:   -2.0,
		HardBrakePenalty: 40,

		ChatterJerk:       15,
		ChatterWindow:     200 * time.Millisecond,
		ChatterCooldown:   2500 * time.Millisecond,
		ChatterMinSpeed:   5.5,
		ChatterPenalty:    10,
		MaxChatterPenalty: 450,

		QuietTolerance: 0.05,
		QuietDuration:  500 * time.Millisecond,
		QuietMinSpeed:  5.5,
		QuietBonus:     5,

		MinScore: 200,
		MaxScore: 1000,
	}
}

type gPoint struct {
	t time.Time
	g float64
}

// Flow accumulates speed smoothness and motion events for one run.
type Flow struct {
	params FlowParams

	samples   int
	speeds    []float64
	stabSum   float64
	stabCount int

	lastTime  time.Time
	lastSpeed float64
	hasSpeed  bool
	active    time.Duration
	moving    time.Duration
	idle      time.Duration

	pendingRest bool
	braking     bool
	hardBrakes  int

	gWindow     []gPoint
	lastChatter time.Time
	chatter     int

	quietSince   time.Time
	quietAwarded bool
	quiet        int
}

// NewFlow creates an empty Flow engine.
func NewFlow(p FlowParams) *Flow {
	return &Flow{params: p}
}

// Reset clears the accumulators for a new run.
func (f *Flow) Reset() {
	*f = Flow{params: f.params}
}

// SetPendingRest suspends idle accounting while the rider may be stopping.
func (f *Flow) SetPendingRest(on bool) {
	f.pendingRest = on
}

// Accepts reports whether a sample passes the Flow accuracy filter. A
// negative speed accuracy means unknown and is accepted.
func (f *Flow) Accepts(s types.Sample) bool {
	p := f.params
	if !s.HasFix() || !s.SpeedValid() || s.HorizontalAccuracy > p.MaxHorizontalAccuracy {
		return false
	}
	return s.SpeedAccuracy < 0 || s.SpeedAccuracy <= p.MaxSpeedAccuracy
}

// AddSpeed folds one location sample taken at at.
func (f *Flow) AddSpeed(s types.Sample, at time.Time) {
	if !f.Accepts(s) {
		return
	}
	p := f.params
	v := s.Speed
	f.samples++

	if f.hasSpeed && at.After(f.lastTime) {
		gap := at.Sub(f.lastTime)
		dt := min(gap, p.MaxGap)
		f.active += dt
		if v >= p.IdleSpeed {
			f.moving += dt
		} else if !f.pendingRest {
			f.idle += dt
		}

		// Only time accounting is capped; deceleration uses the real gap.
		accel := (v - f.lastSpeed) / gap.Seconds()
		if accel <= p.HardBrakeDecel {
			if !f.braking {
				f.hardBrakes++
			}
			f.braking = true
		} else {
			f.braking = false
		}
	}
	if !f.hasSpeed || at.After(f.lastTime) {
		f.lastTime = at
	}
	f.lastSpeed, f.hasSpeed = v, true

	f.speeds = append(f.speeds, v)
	if n := len(f.speeds); n > p.StabilityWindow {
		f.speeds = append(f.speeds[:0], f.speeds[n-p.StabilityWindow:]...)
	}
	if len(f.speeds) == p.StabilityWindow {
		mean, std := stat.MeanStdDev(f.speeds, nil)
		if mean >= p.MinWindowMean {
			f.stabSum += clamp01(1 - std/mean)
			f.stabCount++
		}
	}
}

// AddG folds one acceleration magnitude sample for chatter and quiet
// detection. Both only count at speed.
func (f *Flow) AddG(g float64, at time.Time) {
	p := f.params

	f.gWindow = append(f.gWindow, gPoint{t: at, g: g})
	start := at.Add(-p.ChatterWindow)
	for len(f.gWindow) > 1 && !f.gWindow[1].t.After(start) {
		f.gWindow = f.gWindow[1:]
	}
	oldest := f.gWindow[0]
	if at.Sub(oldest.t) >= p.ChatterWindow && f.lastSpeed >= p.ChatterMinSpeed {
		jerk := math.Abs(g-oldest.g) * standardGravity / p.ChatterWindow.Seconds()
		if jerk >= p.ChatterJerk && (f.lastChatter.IsZero() || at.Sub(f.lastChatter) >= p.ChatterCooldown) {
			f.chatter++
			f.lastChatter = at
		}
	}

	if math.Abs(g-1) > p.QuietTolerance || f.lastSpeed < p.QuietMinSpeed {
		f.quietSince = time.Time{}
		f.quietAwarded = false
		return
	}
	if f.quietSince.IsZero() {
		f.quietSince = at
	}
	if !f.quietAwarded && at.Sub(f.quietSince) >= p.QuietDuration {
		f.quiet++
		f.quietAwarded = true
	}
}

// Result returns the score and summary of what has been accumulated so far.
func (f *Flow) Result() types.FlowSummary {
	p := f.params
	sum := types.FlowSummary{
		HardBrakes:   f.hardBrakes,
		ChatterCount: f.chatter,
		QuietBonuses: f.quiet,
		IdlePenalty:  math.Min(p.MaxIdlePenalty, f.idle.Seconds()*p.IdlePenaltyPerSecond),
	}
	if f.stabCount > 0 {
		sum.Stability = f.stabSum / float64(f.stabCount)
	}
	if f.active < p.MinActive || f.moving < p.MinMoving || f.samples < p.MinSamples || f.stabCount == 0 {
		return sum
	}

	score := p.BaseScore + p.StabilityWeight*sum.Stability
	score -= sum.IdlePenalty
	score -= float64(f.hardBrakes) * p.HardBrakePenalty
	score -= math.Min(p.MaxChatterPenalty, float64(f.chatter)*p.ChatterPenalty)
	score += float64(f.quiet) * p.QuietBonus
	sum.Score = int(math.Round(ClampFlow(score, p)))
	return sum
}

// ClampFlow applies the final Flow bounds: anything at or below zero is 0,
// everything else lands in [MinScore, MaxScore].
func ClampFlow(score float64, p FlowParams) float64 {
	if score <= 0 || math.IsNaN(score) {
		return 0
	}
	return math.Max(p.MinScore, math.Min(p.MaxScore, score))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
