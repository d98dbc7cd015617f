// Package activity classifies the frame stream into Resting, Riding and
// OnLift. Two pending layers sit underneath the visible state so noisy fixes
// do not make it flicker: PendingRiding delays the Resting to Riding switch
// until the descent is confirmed, and PendingRest keeps a run open while the
// rider slows down until the stop is confirmed.
package activity

import (
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// Params holds every threshold of the classifier. Speeds are m/s, altitudes
// and distances meters.
type Params struct {
	// Resting -> PendingRiding -> Riding
	RideEntrySpeed     float64
	ConfirmWindow      time.Duration
	ConfirmAvgSpeed    float64
	ConfirmDistance    float64
	ConfirmDrop        float64
	DescentDetectDelta float64

	// Lift detection over LiftWindow
	LiftWindow          time.Duration
	RestingLiftAscent   float64
	RidingLiftAscent    float64
	LiftExitSpeed       float64
	LiftExitDescent     float64
	LiftStraightness    float64
	LiftHeadingVariance float64

	// OnLift -> Resting
	LiftStopSpeed     float64
	LiftStopTrend     float64
	LiftStopNetChange float64
	LiftStopDuration  time.Duration

	// Riding -> PendingRest -> Resting
	RestWindow         time.Duration
	RestMaxSpeed       float64
	RestMaxDescent     float64
	ResumeSpeed        float64
	ResumeDrop         float64
	ResumeTrend        float64
	PendingRestTimeout time.Duration

	// UnloadBoost is how long after leaving a lift the accuracy hint stays high.
	UnloadBoost time.Duration
}

// DefaultParams returns the production thresholds.
func DefaultParams() Params {
	return Params{
		RideEntrySpeed:     types.Mps(5),
		ConfirmWindow:      5 * time.Second,
		ConfirmAvgSpeed:    types.Mps(5),
		ConfirmDistance:    5,
		ConfirmDrop:        3,
		DescentDetectDelta: 0.05,

		LiftWindow:          10 * time.Second,
		RestingLiftAscent:   5,
		RidingLiftAscent:    7,
		LiftExitSpeed:       types.Mps(5),
		LiftExitDescent:     5,
		LiftStraightness:    0.95,
		LiftHeadingVariance: 5,

		LiftStopSpeed:     types.Mps(1.5),
		LiftStopTrend:     0.1,
		LiftStopNetChange: 3,
		LiftStopDuration:  60 * time.Second,

		RestWindow:         20 * time.Second,
		RestMaxSpeed:       types.Mps(6),
		RestMaxDescent:     10,
		ResumeSpeed:        types.Mps(10),
		ResumeDrop:         3,
		ResumeTrend:        -0.5,
		PendingRestTimeout: 180 * time.Second,

		UnloadBoost: 20 * time.Second,
	}
}
