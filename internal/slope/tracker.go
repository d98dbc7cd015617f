package slope

import (
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/paulmach/orb"
)

// UnloadBoostWindow is how long after a lift disembark Start detections are
// accepted regardless of the current state.
const UnloadBoostWindow = 20 * time.Second

type candidate struct {
	slope   *Slope
	touched bool
	start   bool
	finish  bool
}

// Tracker collects, for the run in progress, which slopes were touched and
// where Start and Finish were seen, then picks the slope the run is
// attributed to when it closes.
type Tracker struct {
	index  *Index
	radius float64
	boost  time.Duration

	boostUntil time.Time
	preRun     map[string]*candidate
	run        map[string]*candidate
	inRun      bool
}

// NewTracker creates a tracker over idx.
func NewTracker(idx *Index, radius float64, boost time.Duration) *Tracker {
	if radius <= 0 {
		radius = StartFinishRadius
	}
	return &Tracker{
		index:  idx,
		radius: radius,
		boost:  boost,
		preRun: make(map[string]*candidate),
		run:    make(map[string]*candidate),
	}
}

// LiftBoarded drops Start candidates gathered before the lift ride.
func (t *Tracker) LiftBoarded() {
	t.preRun = make(map[string]*candidate)
	t.boostUntil = time.Time{}
}

// LiftUnloaded opens the unload boost window.
func (t *Tracker) LiftUnloaded(at time.Time) {
	t.boostUntil = at.Add(t.boost)
}

// Boosting reports whether at falls inside the unload boost window.
func (t *Tracker) Boosting(at time.Time) bool {
	return !t.boostUntil.IsZero() && at.Before(t.boostUntil)
}

// Observe checks Start/Finish proximity for one fix. Start counts while
// Riding or Resting, or at any state inside the boost window; Finish counts
// only while Riding. Detections made before a run opens are held until the
// run confirms them.
func (t *Tracker) Observe(p orb.Point, at time.Time, state types.ActivityState) {
	if t.index.Len() == 0 {
		return
	}
	startOK := state == types.Riding || state == types.Resting || t.Boosting(at)
	finishOK := state == types.Riding && t.inRun
	for _, px := range t.index.NearStartOrFinish(p, t.radius) {
		start := px.Start && startOK
		finish := px.Finish && finishOK
		if !start && !finish {
			continue
		}
		target := t.preRun
		if t.inRun {
			target = t.run
		}
		c := entryFor(target, px.Slope)
		c.start = c.start || start
		c.finish = c.finish || finish
	}
}

// Touch records a polygon hit from the tagger during the run.
func (t *Tracker) Touch(s *Slope) {
	if s == nil || !t.inRun {
		return
	}
	entryFor(t.run, s).touched = true
}

// OpenRun starts attribution for a new run, validating the Start
// candidates collected since the last lift.
func (t *Tracker) OpenRun() {
	t.run = make(map[string]*candidate, len(t.preRun))
	for name, c := range t.preRun {
		cp := *c
		t.run[name] = &cp
	}
	t.preRun = make(map[string]*candidate)
	t.inRun = true
}

// CloseRun returns the attributed slope for the run and resets.
func (t *Tracker) CloseRun() *Slope {
	best := Attribute(t.candidates())
	t.run = make(map[string]*candidate)
	t.inRun = false
	return best
}

// Discard forgets the run in progress without attributing it.
func (t *Tracker) Discard() {
	t.run = make(map[string]*candidate)
	t.inRun = false
}

func (t *Tracker) candidates() []Candidate {
	out := make([]Candidate, 0, len(t.run))
	for _, c := range t.run {
		out = append(out, Candidate{Slope: c.slope, Start: c.start, Finish: c.finish})
	}
	return out
}

func entryFor(m map[string]*candidate, s *Slope) *candidate {
	c, ok := m[s.Name]
	if !ok {
		c = &candidate{slope: s}
		m[s.Name] = c
	}
	return c
}

// Candidate is one slope considered for attribution.
type Candidate struct {
	Slope  *Slope
	Start  bool
	Finish bool
}

// Attribute applies the attribution chain: a slope with both Start and
// Finish beats everything else; then the harder slope wins; then the smaller
// polygon. Returns nil when there are no candidates.
func Attribute(cands []Candidate) *Slope {
	var best *Candidate
	for i := range cands {
		c := &cands[i]
		if c.Slope == nil {
			continue
		}
		if best == nil || beats(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.Slope
}

func beats(a, b *Candidate) bool {
	ab := a.Start && a.Finish
	bb := b.Start && b.Finish
	if ab != bb {
		return ab
	}
	return a.Slope.outranks(b.Slope)
}
