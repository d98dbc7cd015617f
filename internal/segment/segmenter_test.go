package segment

import (
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/activity"
	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/metrics"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
)

var epoch = time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)

type fakeScorer struct {
	resets    int
	finalized int
	pending   bool
}

func (f *fakeScorer) Reset()              { f.resets++ }
func (f *fakeScorer) PendingRest(on bool) { f.pending = on }
func (f *fakeScorer) Finalize() (types.EdgeSummary, types.FlowSummary) {
	f.finalized++
	return types.EdgeSummary{Score: 700}, types.FlowSummary{Score: 650}
}

type harness struct {
	seg    *Segmenter
	acc    *metrics.Accumulator
	scorer *fakeScorer
	state  types.ActivityState
	alt    float64
}

func newHarness(tracker *slope.Tracker) *harness {
	acc := metrics.New(metrics.DefaultParams())
	sc := &fakeScorer{}
	return &harness{seg: New(DefaultParams(), acc, sc, tracker), acc: acc, scorer: sc, alt: 1500}
}

func ts(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func (h *harness) transition(kind activity.TransitionKind, from, to types.ActivityState, sec int) (types.Run, bool) {
	t := activity.Transition{Kind: kind, From: from, To: to, At: ts(sec), EffectiveAt: ts(sec)}
	if kind == activity.StateChanged {
		h.state = to
	}
	return h.seg.Apply(t)
}

// descend observes one frame per second from..to-1, dropping climb meters each.
func (h *harness) descend(from, to int, climb float64) {
	for sec := from; sec < to; sec++ {
		h.alt += climb
		h.acc.Observe(types.Frame{
			Sample:         types.Sample{Lat: 37.19, Lon: 128.82, HorizontalAccuracy: 5, SpeedAccuracy: 0.5},
			Time:           ts(sec),
			Speed:          10,
			SpeedValid:     true,
			Altitude:       h.alt,
			AltitudeDelta:  climb,
			AltitudeSource: types.AltitudeSourceGPS,
			StepDistance:   10,
		}, h.state)
	}
}

func TestNoiseFilter(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		climb    float64
		wantKept bool
	}{
		{"short and shallow", 30, -0.5, false},
		{"exactly 40s and 30m", 40, -0.75, false},
		{"short but steep", 30, -2, true},
		{"long but shallow", 60, -0.1, true},
	}
	for _, tt := range tests {
		h := newHarness(nil)
		h.transition(activity.StateChanged, types.Resting, types.Riding, 0)
		h.descend(0, tt.seconds, tt.climb)
		_, kept := h.transition(activity.StateChanged, types.Riding, types.Resting, tt.seconds)
		if kept != tt.wantKept {
			t.Errorf("%s: kept = %v, want %v", tt.name, kept, tt.wantKept)
		}
		if got := len(h.seg.Runs()); got != map[bool]int{true: 1, false: 0}[tt.wantKept] {
			t.Errorf("%s: %d finalized runs", tt.name, got)
		}
	}
}

func TestRunNumberingAndLookup(t *testing.T) {
	h := newHarness(nil)
	sec := 0
	ride := func(seconds int, climb float64) {
		h.transition(activity.StateChanged, h.state, types.Riding, sec)
		h.descend(sec, sec+seconds, climb)
		sec += seconds
		h.transition(activity.StateChanged, types.Riding, types.OnLift, sec)
		sec += 300
	}
	ride(120, -2)  // run 1
	ride(20, -0.2) // noise
	ride(90, -3)   // run 2

	want := []types.Run{
		{Number: 1, Start: ts(0), End: ts(120), Duration: 120 * time.Second, Distance: 1200, VerticalDrop: 240, MaxSpeed: 10, AvgSpeed: 10, TopAltitude: 1498, BottomAltitude: 1260},
		{Number: 2, Start: ts(740), End: ts(830), Duration: 90 * time.Second, Distance: 900, VerticalDrop: 270, MaxSpeed: 10, AvgSpeed: 10, TopAltitude: 1253, BottomAltitude: 986},
	}
	opts := cmpopts.IgnoreFields(types.Run{}, "Edge", "Flow")
	if diff := cmp.Diff(want, h.seg.Runs(), opts, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}

	first, err := h.seg.Run(2)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := h.seg.Run(2)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Fatalf("Run(2) is not stable:\n%s", diff)
	}
	if first.Edge.Score != 700 || first.Flow.Score != 650 {
		t.Fatalf("scores not joined: %+v %+v", first.Edge, first.Flow)
	}
	if _, err := h.seg.Run(3); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Run(3) error = %v, want ErrRunNotFound", err)
	}
	if h.seg.Discarded() != 1 || h.seg.Lifts() != 3 {
		t.Fatalf("discarded/lifts = %d/%d, want 1/3", h.seg.Discarded(), h.seg.Lifts())
	}
	if h.scorer.resets != 3 || h.scorer.finalized != 3 {
		t.Fatalf("scorer resets/finalized = %d/%d, want 3/3", h.scorer.resets, h.scorer.finalized)
	}
}

func TestCloseFromPendingRestUsesCheckpoint(t *testing.T) {
	h := newHarness(nil)
	h.transition(activity.StateChanged, types.Resting, types.Riding, 0)
	h.descend(0, 60, -1)
	h.transition(activity.PendingRestEntered, types.Riding, types.Riding, 60)
	if !h.scorer.pending {
		t.Fatal("scorer not told about PendingRest")
	}
	// Creeping on while pending still adds to the session but not to the run.
	h.descend(60, 200, -0.05)

	run, kept := h.seg.Apply(activity.Transition{
		Kind: activity.StateChanged, From: types.Riding, To: types.OnLift,
		At: ts(200), EffectiveAt: ts(60), FromPendingRest: true,
	})
	if !kept {
		t.Fatal("run was dropped")
	}
	if !run.End.Equal(ts(60)) || run.Duration != 60*time.Second {
		t.Fatalf("run end/duration = %v/%v, want %v/60s", run.End, run.Duration, ts(60))
	}
	if run.VerticalDrop != 60 || run.Distance != 600 {
		t.Fatalf("run drop/distance = %v/%v, want checkpoint 60/600", run.VerticalDrop, run.Distance)
	}
	if h.scorer.pending {
		t.Fatal("PendingRest flag left on after close")
	}
}

func TestPendingRestCancelledKeepsRunGoing(t *testing.T) {
	h := newHarness(nil)
	h.transition(activity.StateChanged, types.Resting, types.Riding, 0)
	h.descend(0, 30, -1)
	h.transition(activity.PendingRestEntered, types.Riding, types.Riding, 30)
	h.descend(30, 40, 0)
	h.transition(activity.PendingRestCancelled, types.Riding, types.Riding, 40)
	h.descend(40, 70, -1)
	run, kept := h.transition(activity.StateChanged, types.Riding, types.Resting, 70)
	if !kept || run.VerticalDrop != 60 || !run.End.Equal(ts(70)) {
		t.Fatalf("run = %+v kept=%v, want drop 60 ending at 70s", run, kept)
	}
}

func TestFlush(t *testing.T) {
	h := newHarness(nil)
	if _, ok := h.seg.Flush(ts(0)); ok {
		t.Fatal("Flush without an open run returned a run")
	}
	h.transition(activity.StateChanged, types.Resting, types.Riding, 0)
	h.descend(0, 50, -1)
	run, ok := h.seg.Flush(ts(50))
	if !ok || run.Number != 1 || !run.End.Equal(ts(50)) {
		t.Fatalf("Flush() = %+v, %v", run, ok)
	}
	if _, open := h.seg.Open(); open {
		t.Fatal("run still open after Flush")
	}
}

func TestSlopeAttribution(t *testing.T) {
	top := geo.Point(37.1900, 128.8200)
	bottom := geo.Point(37.1850, 128.8200)
	ring := orb.Ring{
		geo.Point(37.1905, 128.8190), geo.Point(37.1905, 128.8210),
		geo.Point(37.1845, 128.8210), geo.Point(37.1845, 128.8190),
	}
	idx := slope.NewIndex([]slope.Slope{{Name: "APOLLO IV", Difficulty: slope.DifficultyAdvanced, Boundary: ring, Top: &top, Bottom: &bottom}})
	tracker := slope.NewTracker(idx, slope.StartFinishRadius, slope.UnloadBoostWindow)
	h := newHarness(tracker)

	h.transition(activity.StateChanged, types.Riding, types.OnLift, 0)
	h.transition(activity.StateChanged, types.OnLift, types.Resting, 100)
	tracker.Observe(top, ts(105), types.Resting)
	h.transition(activity.StateChanged, types.Resting, types.Riding, 110)
	h.descend(110, 170, -2)
	tracker.Observe(bottom, ts(169), types.Riding)
	run, kept := h.transition(activity.StateChanged, types.Riding, types.Resting, 170)
	if !kept || run.Slope != "APOLLO IV" {
		t.Fatalf("run slope = %q kept=%v, want APOLLO IV", run.Slope, kept)
	}
}

func TestUnloadOpensStartWindowBeforeLiftExit(t *testing.T) {
	top := geo.Point(37.1900, 128.8200)
	bottom := geo.Point(37.1850, 128.8200)
	ring := orb.Ring{
		geo.Point(37.1905, 128.8190), geo.Point(37.1905, 128.8210),
		geo.Point(37.1845, 128.8210), geo.Point(37.1845, 128.8190),
	}
	idx := slope.NewIndex([]slope.Slope{
		{Name: "HERMES", Difficulty: slope.DifficultyBeginner, Boundary: ring, Top: &top, Bottom: &bottom},
		{Name: "ARES", Difficulty: slope.DifficultyExpert, Boundary: ring},
	})
	ares, _ := idx.Lookup("ARES")
	tracker := slope.NewTracker(idx, slope.StartFinishRadius, slope.UnloadBoostWindow)
	h := newHarness(tracker)

	h.transition(activity.StateChanged, types.Resting, types.OnLift, 0)
	tracker.Observe(top, ts(99), types.OnLift)
	if tracker.Boosting(ts(99)) {
		t.Fatal("start window open before the unload")
	}

	h.transition(activity.LiftUnloadDetected, types.OnLift, types.OnLift, 100)
	tracker.Observe(top, ts(101), types.OnLift)
	h.transition(activity.StateChanged, types.OnLift, types.Riding, 106)
	if tracker.Boosting(ts(121)) {
		t.Fatal("lift exit after an unload must not restart the start window")
	}
	tracker.Touch(ares)
	h.descend(106, 170, -2)
	tracker.Observe(bottom, ts(169), types.Riding)

	run, kept := h.transition(activity.StateChanged, types.Riding, types.Resting, 170)
	if !kept {
		t.Fatal("run dropped")
	}
	if run.Slope != "HERMES" {
		t.Fatalf("run slope = %q, want HERMES from a Start seen while still on the lift", run.Slope)
	}
}
