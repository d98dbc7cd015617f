package types

import "time"

// AltitudeSource identifies which sensor the fused altitude currently follows.
type AltitudeSource int

const (
	AltitudeSourceNone AltitudeSource = iota
	AltitudeSourceGPS
	AltitudeSourceBarometer
)

func (a AltitudeSource) String() string {
	switch a {
	case AltitudeSourceGPS:
		return "gps"
	case AltitudeSourceBarometer:
		return "barometer"
	default:
		return "none"
	}
}

// Frame is a location fix enriched with everything the classifier needs:
// the clamped speed, the fused altitude and the step travelled since the
// previous fix. Frames are built by the session, one per fix, in time order.
type Frame struct {
	Sample Sample

	// Time is the pipeline clock time of the fix. It equals Sample.Time
	// unless the session has been paused, in which case paused spans are removed.
	Time time.Time

	Speed      float64 // m/s, invalid speeds floored to 0
	SpeedValid bool

	Altitude       float64 // fused altitude, meters
	AltitudeDelta  float64 // change since the previous frame, meters
	AltitudeSource AltitudeSource

	StepDistance float64 // meters from the previous fix
	Bearing      float64 // degrees from the previous fix
	HasBearing   bool
}
