package types

// ActivityState is the externally visible classification. Pending hysteresis
// layers exist underneath but never surface as a distinct value.
type ActivityState int

const (
	Resting ActivityState = iota
	Riding
	OnLift
)

func (s ActivityState) String() string {
	switch s {
	case Riding:
		return "riding"
	case OnLift:
		return "on_lift"
	default:
		return "resting"
	}
}

// MarshalText keeps the wire form of a state readable in JSON and msgpack.
func (s ActivityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AccuracyMode is the location accuracy hint emitted to the provider.
type AccuracyMode int

const (
	AccuracyCoarse AccuracyMode = iota
	AccuracyBalanced
	AccuracyHigh
)

func (a AccuracyMode) String() string {
	switch a {
	case AccuracyHigh:
		return "high"
	case AccuracyBalanced:
		return "balanced"
	default:
		return "coarse"
	}
}

func (a AccuracyMode) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
