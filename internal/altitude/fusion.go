// Package altitude selects and blends the altitude signal used for rise and
// drop detection. The barometer is authoritative whenever it is available;
// GPS altitude, smoothed, is the fallback.
package altitude

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// Params tunes the fusion.
type Params struct {
	// GPSSmoothing is the time constant of the exponential GPS altitude smoother.
	GPSSmoothing time.Duration

	// BaroLossTimeout is how long the barometer may stay silent before GPS
	// takes over again.
	BaroLossTimeout time.Duration

	// DriftTimeConstant controls how slowly the barometric series is pulled
	// toward the smoothed GPS altitude to cancel weather drift.
	DriftTimeConstant time.Duration

	// DriftMaxVerticalAccuracy is the worst GPS vertical accuracy (meters)
	// still trusted for drift correction.
	DriftMaxVerticalAccuracy float64
}

// DefaultParams returns the production fusion parameters.
func DefaultParams() Params {
	return Params{
		GPSSmoothing:             1500 * time.Millisecond,
		BaroLossTimeout:          30 * time.Second,
		DriftTimeConstant:        10 * time.Minute,
		DriftMaxVerticalAccuracy: 10,
	}
}

// Reading is the fused altitude for one sample.
type Reading struct {
	Altitude float64
	Delta    float64
	Source   types.AltitudeSource
	Valid    bool
}

// Fusion tracks the selected altitude source across a session. It is not
// safe for concurrent use.
type Fusion struct {
	params Params

	source   types.AltitudeSource
	fused    float64
	hasFused bool
	lastTime time.Time

	gps       float64
	hasGPS    bool
	gpsOffset float64

	baroOffset   float64
	lastBaroTime time.Time

	rebase bool
}

// New creates a Fusion with the given parameters.
func New(p Params) *Fusion {
	return &Fusion{params: p}
}

// Source returns the currently authoritative signal.
func (f *Fusion) Source() types.AltitudeSource {
	return f.source
}

// Reset forgets all state; the next sample starts a fresh series.
func (f *Fusion) Reset() {
	*f = Fusion{params: f.params}
}

// Rebase makes the next reading continue the fused series with a zero
// delta, whatever the signals did in between. The GPS smoother restarts
// from the next raw value.
func (f *Fusion) Rebase() {
	f.rebase = f.hasFused || f.hasGPS
}

// Update folds one sample into the fusion and returns the fused altitude
// and its change since the previous call. at is the pipeline clock time.
func (f *Fusion) Update(s types.Sample, at time.Time) Reading {
	var dt time.Duration
	if !f.lastTime.IsZero() && at.After(f.lastTime) {
		dt = at.Sub(f.lastTime)
	}
	if f.lastTime.IsZero() || at.After(f.lastTime) {
		f.lastTime = at
	}

	gpsUpdated := f.updateGPS(s, dt)
	baro, hasBaro := s.Baro()
	if hasBaro {
		f.lastBaroTime = at
	}

	prev := f.fused
	next, ok := f.selectAndBlend(s, baro, hasBaro, gpsUpdated, dt, at)
	if !ok {
		return Reading{Altitude: f.fused, Source: f.source, Valid: f.hasFused}
	}
	fresh := (f.source == types.AltitudeSourceBarometer && hasBaro) || (f.source == types.AltitudeSourceGPS && gpsUpdated)
	if f.rebase && fresh {
		f.rebase = false
		if f.hasFused {
			shift := f.fused - next
			f.baroOffset += shift
			f.gpsOffset += shift
			next = f.fused
		}
	}

	delta := 0.0
	if f.hasFused {
		delta = next - prev
	}
	f.fused = next
	f.hasFused = true
	return Reading{Altitude: next, Delta: delta, Source: f.source, Valid: true}
}

func (f *Fusion) updateGPS(s types.Sample, dt time.Duration) bool {
	if !s.HasFix() || !s.HasAltitude() {
		return false
	}
	if !f.hasGPS || f.rebase {
		f.gps = s.Altitude
		f.hasGPS = true
		return true
	}
	f.gps += alpha(dt, f.params.GPSSmoothing) * (s.Altitude - f.gps)
	return true
}

func (f *Fusion) selectAndBlend(s types.Sample, baro float64, hasBaro, gpsUpdated bool, dt time.Duration, at time.Time) (float64, bool) {
	switch {
	case hasBaro:
		if f.source != types.AltitudeSourceBarometer {
			f.baroOffset = f.anchorFor(baro)
			f.source = types.AltitudeSourceBarometer
		}
		if gpsUpdated && s.VerticalAccuracy <= f.params.DriftMaxVerticalAccuracy {
			target := f.gps + f.gpsOffset
			f.baroOffset += alpha(dt, f.params.DriftTimeConstant) * (target - (baro + f.baroOffset))
		}
		return baro + f.baroOffset, true

	case f.source == types.AltitudeSourceBarometer && at.Sub(f.lastBaroTime) < f.params.BaroLossTimeout:
		// Short barometer gap: hold the last value rather than flap to GPS.
		return f.fused, f.hasFused

	case f.hasGPS:
		if f.source != types.AltitudeSourceGPS {
			f.gpsOffset = f.anchorFor(f.gps)
			f.source = types.AltitudeSourceGPS
		}
		if !gpsUpdated {
			return f.fused, f.hasFused
		}
		return f.gps + f.gpsOffset, true
	}
	return 0, false
}

// anchorFor returns the offset that makes a newly selected signal continue
// the fused series without a step.
func (f *Fusion) anchorFor(raw float64) float64 {
	if !f.hasFused {
		if f.hasGPS {
			// Align a first barometric reading with GPS when it is known.
			return f.gps - raw
		}
		return 0
	}
	return f.fused - raw
}

func alpha(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-dt.Seconds()/tau.Seconds())
}
