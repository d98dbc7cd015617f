// Package window implements a trailing, time-keyed sliding window over
// pipeline frames. Every aggregate the classifier asks for is maintained
// incrementally as entries are pushed and evicted; only the altitude trend
// regression walks the (small) window on demand.
package window

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

type entry struct {
	t          time.Time
	speed      float64
	speedValid bool
	alt        float64
	pt         orb.Point
	step       float64
	sin, cos   float64
	hasBearing bool
}

// Window keeps the frames of the trailing span plus one anchor entry at or
// before the window start. Because eviction is driven by frame timestamps
// only, a gap in the feed stalls the window instead of emptying it.
type Window struct {
	span    time.Duration
	entries []entry
	head    int

	speedSum   float64
	speedCount int
	stepSum    float64
	sinSum     float64
	cosSum     float64
	bearings   int

	// maxq is a monotonic deque of indexes (absolute) into entries with
	// non-increasing speeds, used for O(1) trailing max speed.
	maxq    []int
	maxHead int
	base    int
}

// New creates a window covering the given span.
func New(span time.Duration) *Window {
	return &Window{span: span}
}

// Span returns the configured window span.
func (w *Window) Span() time.Duration {
	return w.span
}

// Reset empties the window.
func (w *Window) Reset() {
	*w = Window{span: w.span}
}

// Push appends a frame and evicts everything that fell out of the span.
func (w *Window) Push(f types.Frame) {
	e := entry{
		t:          f.Time,
		speed:      f.Speed,
		speedValid: f.SpeedValid,
		alt:        f.Altitude,
		pt:         geo.Point(f.Sample.Lat, f.Sample.Lon),
		step:       f.StepDistance,
		hasBearing: f.HasBearing,
	}
	if f.HasBearing {
		rad := f.Bearing * math.Pi / 180
		e.sin, e.cos = math.Sin(rad), math.Cos(rad)
	}

	if n := w.Len(); n > 0 && e.t.Before(w.at(n-1).t) {
		// Out-of-order frames are clamped onto the newest timestamp.
		e.t = w.at(n - 1).t
	}

	w.entries = append(w.entries, e)
	w.add(e)

	abs := w.base + len(w.entries) - 1
	if e.speedValid {
		for len(w.maxq) > w.maxHead && w.entryAbs(w.maxq[len(w.maxq)-1]).speed <= e.speed {
			w.maxq = w.maxq[:len(w.maxq)-1]
		}
		w.maxq = append(w.maxq, abs)
	}

	w.evict()
}

func (w *Window) add(e entry) {
	if e.speedValid {
		w.speedSum += e.speed
		w.speedCount++
	}
	w.stepSum += e.step
	if e.hasBearing {
		w.sinSum += e.sin
		w.cosSum += e.cos
		w.bearings++
	}
}

func (w *Window) remove(e entry) {
	if e.speedValid {
		w.speedSum -= e.speed
		w.speedCount--
	}
	w.stepSum -= e.step
	if e.hasBearing {
		w.sinSum -= e.sin
		w.cosSum -= e.cos
		w.bearings--
	}
}

func (w *Window) evict() {
	newest := w.at(w.Len() - 1).t
	start := newest.Add(-w.span)
	// Keep the oldest entry as long as the next one is still inside the span,
	// so the window always reaches back to (or past) its start.
	for w.Len() > 1 && !w.at(1).t.After(start) {
		w.remove(w.at(0))
		w.head++
	}
	for w.maxHead < len(w.maxq) && w.maxq[w.maxHead] < w.base+w.head {
		w.maxHead++
	}
	w.compact()
}

// compact reclaims the evicted prefix once it dominates the backing slice.
func (w *Window) compact() {
	if w.head < 64 || w.head < len(w.entries)/2 {
		return
	}
	w.entries = append(w.entries[:0:0], w.entries[w.head:]...)
	w.base += w.head
	w.head = 0
	w.maxq = append(w.maxq[:0:0], w.maxq[w.maxHead:]...)
	w.maxHead = 0
}

func (w *Window) at(i int) entry {
	return w.entries[w.head+i]
}

func (w *Window) entryAbs(abs int) entry {
	return w.entries[abs-w.base]
}

// Len returns the number of entries, anchor included.
func (w *Window) Len() int {
	return len(w.entries) - w.head
}

// Covered is the time between the oldest and newest entry.
func (w *Window) Covered() time.Duration {
	if w.Len() < 2 {
		return 0
	}
	return w.at(w.Len() - 1).t.Sub(w.at(0).t)
}

// Full reports whether the window reaches back over its whole span.
func (w *Window) Full() bool {
	return w.Len() > 1 && w.Covered() >= w.span
}

// AvgSpeed is the mean of the valid speeds in the window.
func (w *Window) AvgSpeed() float64 {
	if w.speedCount == 0 {
		return 0
	}
	return w.speedSum / float64(w.speedCount)
}

// MaxSpeed is the largest valid speed in the window.
func (w *Window) MaxSpeed() float64 {
	if w.maxHead >= len(w.maxq) {
		return 0
	}
	return w.entryAbs(w.maxq[w.maxHead]).speed
}

// NetAltitude is newest minus oldest fused altitude: positive for ascent.
func (w *Window) NetAltitude() float64 {
	if w.Len() < 2 {
		return 0
	}
	return w.at(w.Len()-1).alt - w.at(0).alt
}

// PathLength is the distance travelled between the oldest and newest entry.
func (w *Window) PathLength() float64 {
	if w.Len() < 2 {
		return 0
	}
	// The anchor's own step lies before the window.
	return math.Max(0, w.stepSum-w.at(0).step)
}

// Displacement is the straight-line distance between oldest and newest entry.
func (w *Window) Displacement() float64 {
	if w.Len() < 2 {
		return 0
	}
	return geo.Distance(w.at(0).pt, w.at(w.Len()-1).pt)
}

// Straightness is displacement over path length, 1 for a perfectly straight
// path. A window that has not moved reports 0.
func (w *Window) Straightness() float64 {
	path := w.PathLength()
	if path <= 0 {
		return 0
	}
	return math.Min(1, w.Displacement()/path)
}

// HeadingDeviation is the circular standard deviation of the step bearings in
// degrees. Fewer than two bearings give 0.
func (w *Window) HeadingDeviation() float64 {
	if w.bearings < 2 {
		return 0
	}
	n := float64(w.bearings)
	r := math.Hypot(w.sinSum/n, w.cosSum/n)
	if r >= 1 {
		return 0
	}
	if r <= 0 {
		return 180
	}
	return math.Sqrt(-2*math.Log(r)) * 180 / math.Pi
}

// AltitudeTrend is the least-squares slope of fused altitude over time in m/s.
func (w *Window) AltitudeTrend() float64 {
	n := w.Len()
	if n < 3 {
		return 0
	}
	origin := w.at(0).t
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		e := w.at(i)
		xs[i] = e.t.Sub(origin).Seconds()
		ys[i] = e.alt
	}
	if xs[n-1] == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

// Stats is a value snapshot of the window aggregates.
type Stats struct {
	Full             bool
	Covered          time.Duration
	AvgSpeed         float64
	MaxSpeed         float64
	NetAltitude      float64
	PathLength       float64
	Straightness     float64
	HeadingDeviation float64
	AltitudeTrend    float64
}

// Snapshot gathers every aggregate. The trend regression is included only
// when withTrend is set since it is the one computation that walks the window.
func (w *Window) Snapshot(withTrend bool) Stats {
	s := Stats{
		Full:             w.Full(),
		Covered:          w.Covered(),
		AvgSpeed:         w.AvgSpeed(),
		MaxSpeed:         w.MaxSpeed(),
		NetAltitude:      w.NetAltitude(),
		PathLength:       w.PathLength(),
		Straightness:     w.Straightness(),
		HeadingDeviation: w.HeadingDeviation(),
	}
	if withTrend {
		s.AltitudeTrend = w.AltitudeTrend()
	}
	return s
}
