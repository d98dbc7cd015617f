package slope

import (
	"sort"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/paulmach/orb"
)

// StartFinishRadius is the default acceptance radius around a slope's Start
// and Finish points, in meters.
const StartFinishRadius = 50.0

// Index is an immutable collection of slopes.
type Index struct {
	slopes []*Slope
	byName map[string]*Slope
}

// NewIndex builds an index, precomputing bounds and areas.
func NewIndex(slopes []Slope) *Index {
	idx := &Index{byName: make(map[string]*Slope, len(slopes))}
	for i := range slopes {
		s := slopes[i]
		s.prepare()
		idx.slopes = append(idx.slopes, &s)
		idx.byName[s.Name] = &s
	}
	sort.SliceStable(idx.slopes, func(i, j int) bool {
		return idx.slopes[i].Name < idx.slopes[j].Name
	})
	return idx
}

// Len returns the number of slopes.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.slopes)
}

// Slopes returns the slopes sorted by name.
func (idx *Index) Slopes() []*Slope {
	if idx == nil {
		return nil
	}
	return idx.slopes
}

// Lookup returns the slope with the given name.
func (idx *Index) Lookup(name string) (*Slope, bool) {
	if idx == nil {
		return nil, false
	}
	s, ok := idx.byName[name]
	return s, ok
}

// Find returns the smallest-area slope whose boundary contains p. Overlaps
// are resolved by area and then by name.
func (idx *Index) Find(p orb.Point) (*Slope, bool) {
	if idx == nil {
		return nil, false
	}
	var best *Slope
	for _, s := range idx.slopes {
		if !s.bound.Contains(p) || !s.Contains(p) {
			continue
		}
		if best == nil || s.Area < best.Area || (s.Area == best.Area && s.Name < best.Name) {
			best = s
		}
	}
	return best, best != nil
}

// Proximity reports that a point lies near a slope's Start and/or Finish.
type Proximity struct {
	Slope  *Slope
	Start  bool
	Finish bool
}

// NearStartOrFinish returns the slopes whose Start or Finish point lies
// within radius meters of p. State gating is left to the caller.
func (idx *Index) NearStartOrFinish(p orb.Point, radius float64) []Proximity {
	if idx == nil {
		return nil
	}
	var out []Proximity
	for _, s := range idx.slopes {
		var px Proximity
		if s.Top != nil && geo.Distance(p, *s.Top) <= radius {
			px.Start = true
		}
		if s.Bottom != nil && geo.Distance(p, *s.Bottom) <= radius {
			px.Finish = true
		}
		if px.Start || px.Finish {
			px.Slope = s
			out = append(out, px)
		}
	}
	return out
}
