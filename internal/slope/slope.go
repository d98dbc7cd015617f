// Package slope holds the static slope database: polygon lookup, Start/Finish
// proximity, distance-throttled tagging and run slope attribution. Nothing in
// this package feeds back into activity classification.
package slope

import (
	"strings"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/paulmach/orb"
)

// Difficulty ranks slopes; a higher value is harder.
type Difficulty int

const (
	DifficultyUnknown Difficulty = iota
	DifficultyBeginner
	DifficultyIntermediate
	DifficultyAdvanced
	DifficultyExpert
)

func (d Difficulty) String() string {
	switch d {
	case DifficultyBeginner:
		return "beginner"
	case DifficultyIntermediate:
		return "intermediate"
	case DifficultyAdvanced:
		return "advanced"
	case DifficultyExpert:
		return "expert"
	default:
		return "unknown"
	}
}

func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDifficulty accepts the resort database spellings as well as the
// OpenStreetMap piste:difficulty values.
func ParseDifficulty(s string) Difficulty {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch s {
	case "beginner", "novice", "easy":
		return DifficultyBeginner
	case "intermediate":
		return DifficultyIntermediate
	case "advanced", "difficult":
		return DifficultyAdvanced
	case "expert", "extreme", "freeride":
		return DifficultyExpert
	default:
		return DifficultyUnknown
	}
}

// Slope is one named run of the resort.
type Slope struct {
	Name        string     `json:"name"`
	KoreanName  string     `json:"korean_name,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
	Status      string     `json:"status,omitempty"`
	Length      float64    `json:"length,omitempty"`
	AvgGradient float64    `json:"avg_gradient,omitempty"`
	MaxGradient float64    `json:"max_gradient,omitempty"`

	Boundary orb.Ring `json:"-"`

	// Top and Bottom are the Start and Finish points of the slope.
	Top            *orb.Point `json:"-"`
	Bottom         *orb.Point `json:"-"`
	TopAltitude    *float64   `json:"top_altitude,omitempty"`
	BottomAltitude *float64   `json:"bottom_altitude,omitempty"`

	// Area is the boundary area in square meters. It is computed when the
	// slope enters an Index unless already set.
	Area float64 `json:"area"`

	bound orb.Bound
}

// Contains runs the ray casting test with the odd-crossing rule. Latitude is
// treated as x and longitude as y.
func (s *Slope) Contains(p orb.Point) bool {
	n := len(s.Boundary)
	if n < 3 {
		return false
	}
	lat, lon := p.Lat(), p.Lon()
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := s.Boundary[i].Lat(), s.Boundary[i].Lon()
		xj, yj := s.Boundary[j].Lat(), s.Boundary[j].Lon()
		if (yi > lon) != (yj > lon) && lat < (xj-xi)*(lon-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func (s *Slope) prepare() {
	s.bound = s.Boundary.Bound()
	if s.Area == 0 {
		s.Area = geo.RingArea(s.Boundary)
	}
}

// outranks reports whether s beats o under the attribution tie-breaks that
// follow the Start/Finish rule: harder first, then smaller, then by name so
// the result is deterministic.
func (s *Slope) outranks(o *Slope) bool {
	if s.Difficulty != o.Difficulty {
		return s.Difficulty > o.Difficulty
	}
	if s.Area != o.Area {
		return s.Area < o.Area
	}
	return s.Name < o.Name
}
