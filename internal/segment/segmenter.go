// Package segment turns classifier transitions into runs: it opens a run
// when Riding is confirmed, keeps it open through PendingRest, closes it on
// the exit to Resting or OnLift and drops noise runs.
package segment

import (
	"errors"
	"time"

	"github.com/chrissnell/snowrecorder/internal/activity"
	"github.com/chrissnell/snowrecorder/internal/metrics"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/types"
)

// ErrRunNotFound is returned by Run for numbers that were never finalized.
var ErrRunNotFound = errors.New("run not found")

// Params tunes the noise filter. A run is dropped only when it is both
// short and shallow.
type Params struct {
	NoiseMaxDuration time.Duration
	NoiseMaxDrop     float64
}

// DefaultParams returns the production noise filter.
func DefaultParams() Params {
	return Params{
		NoiseMaxDuration: 40 * time.Second,
		NoiseMaxDrop:     30,
	}
}

// Scorer is the score side of a run: reset on open, told about PendingRest,
// and joined synchronously on close.
type Scorer interface {
	Reset()
	PendingRest(on bool)
	Finalize() (types.EdgeSummary, types.FlowSummary)
}

// Segmenter owns the run list of one session. It is driven by the session
// goroutine only.
type Segmenter struct {
	params  Params
	metrics *metrics.Accumulator
	scores  Scorer
	slopes  *slope.Tracker

	open         bool
	start        time.Time
	checkpoint   *metrics.Totals
	pendingSince time.Time

	runs      []types.Run
	discarded int
	lifts     int
}

// New creates a segmenter. tracker may be nil when no slope database is loaded.
func New(p Params, acc *metrics.Accumulator, scores Scorer, tracker *slope.Tracker) *Segmenter {
	return &Segmenter{params: p, metrics: acc, scores: scores, slopes: tracker}
}

// Apply handles one transition and returns the run it finalized, if any.
func (s *Segmenter) Apply(t activity.Transition) (types.Run, bool) {
	switch t.Kind {
	case activity.PendingRestEntered:
		if s.open {
			cp := s.metrics.RunTotals()
			s.checkpoint = &cp
			s.pendingSince = t.At
		}
		s.scores.PendingRest(true)
		return types.Run{}, false

	case activity.PendingRestCancelled:
		s.checkpoint = nil
		s.pendingSince = time.Time{}
		s.scores.PendingRest(false)
		return types.Run{}, false

	case activity.LiftUnloadDetected:
		if s.slopes != nil {
			s.slopes.LiftUnloaded(t.At)
		}
		return types.Run{}, false

	case activity.StateChanged:
	default:
		return types.Run{}, false
	}

	var (
		run  types.Run
		kept bool
	)
	if t.From == types.Riding && s.open {
		end := t.At
		if t.FromPendingRest {
			end = t.EffectiveAt
		}
		run, kept = s.close(end, t.FromPendingRest)
	}

	if s.slopes != nil {
		if t.To == types.OnLift {
			s.slopes.LiftBoarded()
		}
		if t.From == types.OnLift && !s.slopes.Boosting(t.At) {
			s.slopes.LiftUnloaded(t.At)
		}
	}
	if t.To == types.OnLift {
		s.lifts++
	}

	if t.To == types.Riding {
		s.openRun(t.At)
	}
	return run, kept
}

func (s *Segmenter) openRun(at time.Time) {
	s.open = true
	s.start = at
	s.checkpoint = nil
	s.pendingSince = time.Time{}
	s.metrics.OpenRun()
	s.scores.Reset()
	if s.slopes != nil {
		s.slopes.OpenRun()
	}
}

// Flush closes a still-open run at at, as an implicit exit. A run sitting in
// PendingRest ends where the rider stopped.
func (s *Segmenter) Flush(at time.Time) (types.Run, bool) {
	if !s.open {
		return types.Run{}, false
	}
	if s.checkpoint != nil {
		return s.close(s.pendingSince, true)
	}
	return s.close(at, false)
}

func (s *Segmenter) close(end time.Time, atCheckpoint bool) (types.Run, bool) {
	totals := s.metrics.CloseRun()
	if atCheckpoint && s.checkpoint != nil {
		totals = *s.checkpoint
	}
	edge, flow := s.scores.Finalize()
	s.scores.PendingRest(false)

	var attributed *slope.Slope
	if s.slopes != nil {
		attributed = s.slopes.CloseRun()
	}

	start := s.start
	s.open = false
	s.checkpoint = nil
	s.pendingSince = time.Time{}

	if end.Before(start) {
		end = start
	}
	duration := end.Sub(start)
	if duration <= s.params.NoiseMaxDuration && totals.VerticalDrop <= s.params.NoiseMaxDrop {
		s.discarded++
		return types.Run{}, false
	}

	run := types.Run{
		Number:         len(s.runs) + 1,
		Start:          start,
		End:            end,
		Duration:       duration,
		Distance:       totals.Distance,
		VerticalDrop:   totals.VerticalDrop,
		MaxSpeed:       totals.MaxSpeed,
		AvgSpeed:       totals.AvgSpeed(),
		TopAltitude:    totals.TopAltitude,
		BottomAltitude: totals.BottomAltitude,
		Edge:           edge,
		Flow:           flow,
	}
	if attributed != nil {
		run.Slope = attributed.Name
	}
	s.runs = append(s.runs, run)
	return run, true
}

// Open reports whether a run is in progress and when it started.
func (s *Segmenter) Open() (time.Time, bool) {
	return s.start, s.open
}

// Runs returns a copy of the finalized runs in number order.
func (s *Segmenter) Runs() []types.Run {
	return append([]types.Run(nil), s.runs...)
}

// Run returns finalized run n. Repeated calls return the same record.
func (s *Segmenter) Run(n int) (types.Run, error) {
	if n < 1 || n > len(s.runs) {
		return types.Run{}, ErrRunNotFound
	}
	return s.runs[n-1], nil
}

// Discarded returns how many closed runs the noise filter dropped.
func (s *Segmenter) Discarded() int {
	return s.discarded
}

// Lifts returns how many lift rides were confirmed.
func (s *Segmenter) Lifts() int {
	return s.lifts
}
