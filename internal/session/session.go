// Package session runs the recording pipeline for one ski day: it feeds
// samples through altitude fusion, the activity classifier, the metrics
// accumulator and the score engines, segments runs, and publishes finished
// runs and the session summary as events.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/activity"
	"github.com/chrissnell/snowrecorder/internal/altitude"
	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/metrics"
	"github.com/chrissnell/snowrecorder/internal/score"
	"github.com/chrissnell/snowrecorder/internal/segment"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// EventKind distinguishes session events.
type EventKind int

const (
	RunClosed EventKind = iota
	SessionEnded
)

func (k EventKind) String() string {
	if k == SessionEnded {
		return "session_ended"
	}
	return "run_closed"
}

// Event is published after a run is finalized or the session ends. Times
// are wall clock.
type Event struct {
	Kind        EventKind
	SessionID   string
	Run         *types.Run
	RoutePoints []types.RoutePoint
	Summary     *types.SessionSummary
}

// Snapshot is the live view offered to the UI. Pending layers are
// collapsed into State.
type Snapshot struct {
	SessionID    string              `json:"session_id"`
	Started      bool                `json:"started"`
	Stopped      bool                `json:"stopped"`
	Paused       bool                `json:"paused"`
	State        types.ActivityState `json:"state"`
	AccuracyHint types.AccuracyMode  `json:"accuracy_hint"`
	Slope        string              `json:"slope,omitempty"`
	InRun        bool                `json:"in_run"`
	RunStart     *time.Time          `json:"run_start,omitempty"`
	Edge         types.EdgeSummary   `json:"edge"`
	Flow         types.FlowSummary   `json:"flow"`
	RunCount     int                 `json:"run_count"`
	LiftCount    int                 `json:"lift_count"`
	Distance     float64             `json:"distance"`
	VerticalDrop float64             `json:"vertical_drop"`
	MaxSpeed     float64             `json:"max_speed"`
	LastFix      *time.Time          `json:"last_fix,omitempty"`
}

// Session is one recording. Its methods serialize on a mutex, which makes
// the pipeline a single actor regardless of how many goroutines call it.
// Events() must be drained by the owner.
type Session struct {
	id     string
	params Params
	logger *zap.SugaredLogger
	slopes *slope.Index

	mu      sync.Mutex
	started bool
	stopped bool
	start   time.Time
	end     time.Time
	clock   pauseClock

	fusion  *altitude.Fusion
	machine *activity.Machine
	acc     *metrics.Accumulator
	workers *score.Workers
	seg     *segment.Segmenter
	tagger  *slope.Tagger
	tracker *slope.Tracker

	lastPoint orb.Point
	lastFix   time.Time
	hasFix    bool
	// resumed marks the first fix after a pause; it carries no step from the
	// fix before the pause.
	resumed bool

	events *eventQueue
}

// New creates a session. slopes may be nil.
func New(id string, p Params, slopes *slope.Index, logger *zap.SugaredLogger) *Session {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		id:     id,
		params: p,
		logger: logger.With("session", id),
		slopes: slopes,
		events: newEventQueue(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Events delivers RunClosed and SessionEnded events. The channel is closed
// after Stop once everything has been delivered.
func (s *Session) Events() <-chan Event {
	return s.events.out
}

// Start resets every accumulator and begins accepting samples.
func (s *Session) Start(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	p := s.params
	s.fusion = altitude.New(p.Altitude)
	s.machine = activity.New(p.Activity)
	s.acc = metrics.New(p.Metrics)
	s.workers = score.StartWorkers(p.Edge, p.Flow)
	s.tagger = slope.NewTagger(s.slopes, p.TagInterval)
	s.tracker = slope.NewTracker(s.slopes, p.StartFinishRadius, p.UnloadBoost)
	s.seg = segment.New(p.Segment, s.acc, s.workers, s.tracker)
	s.clock = pauseClock{}
	s.hasFix = false
	s.resumed = false
	s.start = at
	s.started = true

	s.logger.Infow("session started", "at", at, "slopes", s.slopes.Len())
	return nil
}

func (s *Session) usable() error {
	switch {
	case s.stopped:
		return ErrStopped
	case !s.started:
		return ErrNotStarted
	}
	return nil
}

// Pause freezes the sample clock. Samples arriving while paused are dropped.
func (s *Session) Pause(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.clock.pause(at)
	s.logger.Debugw("session paused", "at", at)
	return nil
}

// Resume restarts the sample clock; the paused span is not counted anywhere.
func (s *Session) Resume(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.clock.paused {
		s.resumed = true
		s.fusion.Rebase()
	}
	s.clock.resume(at)
	s.logger.Debugw("session resumed", "at", at)
	return nil
}

// Ingest feeds one sample through the pipeline. Malformed values degrade to
// absent; the only errors are lifecycle errors.
func (s *Session) Ingest(sample types.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.clock.paused {
		return nil
	}
	at := s.clock.toInternal(sample.Time)

	if g, ok := sample.G(); ok {
		s.workers.Motion(g, at)
	}
	if !sample.HasFix() {
		return nil
	}
	if s.hasFix && !at.After(s.lastFix) {
		s.logger.Debugw("dropping out-of-order fix", "time", sample.Time)
		return nil
	}

	s.step(sample, at)
	return nil
}

func (s *Session) step(sample types.Sample, at time.Time) {
	point := geo.Point(sample.Lat, sample.Lon)
	reading := s.fusion.Update(sample, at)
	f := types.Frame{
		Sample:         sample,
		Time:           at,
		Speed:          sample.SafeSpeed(),
		SpeedValid:     sample.SpeedValid(),
		Altitude:       reading.Altitude,
		AltitudeDelta:  reading.Delta,
		AltitudeSource: reading.Source,
	}
	if s.hasFix && !s.resumed {
		f.StepDistance = geo.Distance(s.lastPoint, point)
		if f.StepDistance >= minBearingStep {
			f.Bearing = geo.Bearing(s.lastPoint, point)
			f.HasBearing = true
		}
	}
	s.lastPoint, s.lastFix, s.hasFix = point, at, true
	s.resumed = false

	s.workers.Location(sample, at)

	for _, t := range s.machine.Step(f) {
		if t.Kind == activity.StateChanged {
			s.logger.Debugw("state changed", "from", t.From, "to", t.To, "at", s.clock.toWall(t.At))
		}
		run, kept := s.seg.Apply(t)
		if kept {
			s.publishRun(run)
		} else if t.Kind == activity.StateChanged && t.From == types.Riding {
			s.logger.Debugw("run dropped by noise filter", "at", s.clock.toWall(t.EffectiveAt))
		}
	}

	state := s.machine.State()
	s.tracker.Observe(point, at, state)
	if tag, evaluated := s.tagger.Observe(point, f.StepDistance); evaluated && tag != nil {
		s.tracker.Touch(tag)
	}
	s.acc.Observe(f, state)
}

// publishRun converts a finalized run to wall time and queues it with its
// route points.
func (s *Session) publishRun(run types.Run) {
	route := s.wallRoute(s.acc.RouteBetween(run.Start, run.End))
	run = s.wallRun(run)
	s.logger.Infow("run closed",
		"run", run.Number,
		"slope", run.Slope,
		"duration", run.Duration,
		"drop", run.VerticalDrop,
		"distance", run.Distance,
		"edge", run.Edge.Score,
		"flow", run.Flow.Score)
	s.events.push(Event{Kind: RunClosed, SessionID: s.id, Run: &run, RoutePoints: route})
}

func (s *Session) wallRun(run types.Run) types.Run {
	run.Start = s.clock.toWall(run.Start)
	run.End = s.clock.toWall(run.End)
	return run
}

func (s *Session) wallRoute(route []types.RoutePoint) []types.RoutePoint {
	for i := range route {
		route[i].Timestamp = s.clock.toWall(route[i].Timestamp)
	}
	return route
}

// Stop flushes the open run, publishes the session summary and releases the
// score workers. Later calls return ErrStopped.
func (s *Session) Stop(at time.Time) (types.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return types.SessionSummary{}, err
	}

	flushAt := s.clock.toInternal(at)
	if s.hasFix {
		flushAt = s.lastFix
	}
	if run, kept := s.seg.Flush(flushAt); kept {
		s.publishRun(run)
	}

	s.end = at
	summary := s.summaryLocked()
	s.workers.Stop()
	s.stopped = true

	s.logger.Infow("session stopped", "runs", summary.RunCount, "lifts", summary.LiftCount, "distance", summary.Distance)
	s.events.push(Event{Kind: SessionEnded, SessionID: s.id, Summary: &summary})
	s.events.close()
	return summary, nil
}

// Abandon ends a session that was never started. Its event stream closes
// without a summary. It has no effect on a started session.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.stopped = true
	s.events.close()
}

func (s *Session) summaryLocked() types.SessionSummary {
	totals := s.acc.Session()
	sum := types.SessionSummary{
		SessionID:      s.id,
		Start:          s.start,
		End:            s.end,
		LiftCount:      s.seg.Lifts(),
		Distance:       totals.Distance,
		VerticalDrop:   totals.VerticalDrop,
		MaxSpeed:       totals.MaxSpeed,
		AvgSpeed:       totals.AvgSpeed(),
		RidingTime:     s.acc.RidingTime(),
		LiftTime:       s.acc.LiftTime(),
		RoutePointsLen: s.acc.RouteLen(),
	}
	for _, r := range s.seg.Runs() {
		sum.RunCount++
		if r.Edge.Score > sum.BestEdgeScore {
			sum.BestEdgeScore = r.Edge.Score
		}
		if r.Flow.Score > sum.BestFlowScore {
			sum.BestFlowScore = r.Flow.Score
		}
	}
	return sum
}

// Summary returns the running session summary.
func (s *Session) Summary() (types.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return types.SessionSummary{}, ErrNotStarted
	}
	return s.summaryLocked(), nil
}

// Runs returns the finalized runs in wall time.
func (s *Session) Runs() []types.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	runs := s.seg.Runs()
	for i := range runs {
		runs[i] = s.wallRun(runs[i])
	}
	return runs
}

// Run returns finalized run n in wall time.
func (s *Session) Run(n int) (types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return types.Run{}, segment.ErrRunNotFound
	}
	run, err := s.seg.Run(n)
	if err != nil {
		return types.Run{}, err
	}
	return s.wallRun(run), nil
}

// Route returns the sampled route in wall time.
func (s *Session) Route() []types.RoutePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	return s.wallRoute(s.acc.Route())
}

// Snapshot returns the live view. Scores in progress are a best-effort read.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID: s.id,
		Started:   s.started,
		Stopped:   s.stopped,
		Paused:    s.clock.paused,
	}
	if !s.started {
		return snap
	}
	snap.State = s.machine.State()
	snap.AccuracyHint = s.machine.AccuracyHint()
	if tag := s.tagger.Current(); tag != nil {
		snap.Slope = tag.Name
	}
	if start, open := s.seg.Open(); open {
		wall := s.clock.toWall(start)
		snap.InRun = true
		snap.RunStart = &wall
	}
	if !s.stopped {
		snap.Edge, snap.Flow = s.workers.Live()
	}
	totals := s.acc.Session()
	snap.RunCount = len(s.seg.Runs())
	snap.LiftCount = s.seg.Lifts()
	snap.Distance = totals.Distance
	snap.VerticalDrop = totals.VerticalDrop
	snap.MaxSpeed = totals.MaxSpeed
	if s.hasFix {
		wall := s.clock.toWall(s.lastFix)
		snap.LastFix = &wall
	}
	return snap
}
