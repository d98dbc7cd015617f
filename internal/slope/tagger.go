package slope

import "github.com/paulmach/orb"

// TagInterval is the travel distance between two polygon lookups.
const TagInterval = 50.0

// Tagger throttles Index.Find to once per TagInterval meters of travel and
// remembers the last result as the current slope tag.
type Tagger struct {
	index     *Index
	interval  float64
	travelled float64
	current   *Slope
	started   bool
}

// NewTagger creates a tagger over idx.
func NewTagger(idx *Index, interval float64) *Tagger {
	if interval <= 0 {
		interval = TagInterval
	}
	return &Tagger{index: idx, interval: interval}
}

// Observe accounts for step meters of travel ending at p. It reports the
// current tag and whether a lookup ran for this observation.
func (t *Tagger) Observe(p orb.Point, step float64) (*Slope, bool) {
	if step > 0 {
		t.travelled += step
	}
	if t.started && t.travelled < t.interval {
		return t.current, false
	}
	t.started = true
	t.travelled = 0
	t.current, _ = t.index.Find(p)
	return t.current, true
}

// Current returns the last lookup result.
func (t *Tagger) Current() *Slope {
	return t.current
}

// Reset forgets the travelled distance and tag.
func (t *Tagger) Reset() {
	t.travelled = 0
	t.current = nil
	t.started = false
}
