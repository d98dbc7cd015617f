// Package types holds the data model shared by the recording pipeline: raw sensor
// samples, the per-fix frames derived from them, activity states, route points and runs.
package types

import (
	"math"
	"time"
)

// MetersPerSecondPerKmh converts km/h into m/s.
const MetersPerSecondPerKmh = 1 / 3.6

// Kmh converts a speed in m/s to km/h.
func Kmh(mps float64) float64 {
	return mps * 3.6
}

// Mps converts a speed in km/h to m/s.
func Mps(kmh float64) float64 {
	return kmh * MetersPerSecondPerKmh
}

// Sample is one instant of sensor input as delivered by the location/motion
// provider. Location fields follow the platform convention where a negative
// accuracy means "not available". A motion-only sample (60 Hz accelerometer
// feed) has a negative HorizontalAccuracy and a non-nil GForce.
type Sample struct {
	Time               time.Time `json:"time"`
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	Speed              float64   `json:"speed"`
	SpeedAccuracy      float64   `json:"speed_accuracy"`
	Altitude           float64   `json:"altitude"`
	VerticalAccuracy   float64   `json:"vertical_accuracy"`

	// BaroAltitude is the barometric altitude relative to the start of the
	// barometer session, in meters.
	BaroAltitude *float64 `json:"baro_altitude,omitempty"`

	// GForce is the device-motion total acceleration magnitude in G.
	GForce *float64 `json:"g_force,omitempty"`
}

// HasFix reports whether the sample carries a usable position.
func (s Sample) HasFix() bool {
	if s.HorizontalAccuracy < 0 || !finite(s.HorizontalAccuracy) {
		return false
	}
	if !finite(s.Lat) || !finite(s.Lon) {
		return false
	}
	if s.Lat == 0 && s.Lon == 0 {
		return false
	}
	return s.Lat >= -90 && s.Lat <= 90 && s.Lon >= -180 && s.Lon <= 180
}

// SafeSpeed always reports a usable speed in m/s, flooring invalid values to 0.
func (s Sample) SafeSpeed() float64 {
	if !finite(s.Speed) || s.Speed < 0 {
		return 0
	}
	return s.Speed
}

// SpeedValid reports whether the provider delivered a real speed value.
func (s Sample) SpeedValid() bool {
	return finite(s.Speed) && s.Speed >= 0
}

// HasAltitude reports whether the GPS altitude can be trusted at all.
func (s Sample) HasAltitude() bool {
	return s.VerticalAccuracy >= 0 && finite(s.VerticalAccuracy) && finite(s.Altitude)
}

// Baro returns the barometric altitude and whether it is present.
func (s Sample) Baro() (float64, bool) {
	if s.BaroAltitude == nil || !finite(*s.BaroAltitude) {
		return 0, false
	}
	return *s.BaroAltitude, true
}

// G returns the acceleration magnitude and whether it is present.
func (s Sample) G() (float64, bool) {
	if s.GForce == nil || !finite(*s.GForce) || *s.GForce < 0 {
		return 0, false
	}
	return *s.GForce, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Float returns a pointer to v, for building samples with optional readings.
func Float(v float64) *float64 {
	return &v
}
