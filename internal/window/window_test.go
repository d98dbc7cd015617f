package window

import (
	"math"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/types"
)

var t0 = time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)

// frames builds a 1 Hz straight-line track heading north.
func frames(n int, speed, altStep float64) []types.Frame {
	start := geo.Point(37.19, 128.82)
	out := make([]types.Frame, n)
	for i := 0; i < n; i++ {
		pt := geo.Offset(start, 0, speed*float64(i))
		f := types.Frame{
			Time:       t0.Add(time.Duration(i) * time.Second),
			Speed:      speed,
			SpeedValid: true,
			Altitude:   1000 + altStep*float64(i),
		}
		f.Sample.Lat, f.Sample.Lon = pt.Lat(), pt.Lon()
		if i > 0 {
			f.StepDistance = speed
			f.Bearing = 0
			f.HasBearing = true
		}
		out[i] = f
	}
	return out
}

func TestWindowEvictionKeepsAnchor(t *testing.T) {
	w := New(10 * time.Second)
	for _, f := range frames(30, 2, 0) {
		w.Push(f)
	}
	if w.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", w.Len())
	}
	if w.Covered() != 10*time.Second {
		t.Fatalf("Covered() = %v, want 10s", w.Covered())
	}
	if !w.Full() {
		t.Fatal("expected full window")
	}
}

func TestWindowGapStallsInsteadOfResetting(t *testing.T) {
	w := New(10 * time.Second)
	fs := frames(12, 2, -1)
	for _, f := range fs {
		w.Push(f)
	}
	late := fs[11]
	late.Time = late.Time.Add(time.Minute)
	late.Altitude -= 5
	w.Push(late)

	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want anchor + new entry", w.Len())
	}
	if got := w.NetAltitude(); math.Abs(got+5) > 1e-9 {
		t.Fatalf("NetAltitude() = %v, want -5 across the gap", got)
	}
}

func TestWindowAggregates(t *testing.T) {
	w := New(10 * time.Second)
	for _, f := range frames(21, 3, 0.8) {
		w.Push(f)
	}
	if got := w.AvgSpeed(); math.Abs(got-3) > 1e-9 {
		t.Errorf("AvgSpeed() = %v, want 3", got)
	}
	if got := w.NetAltitude(); math.Abs(got-8) > 1e-9 {
		t.Errorf("NetAltitude() = %v, want 8", got)
	}
	if got := w.PathLength(); math.Abs(got-30) > 1e-9 {
		t.Errorf("PathLength() = %v, want 30", got)
	}
	if got := w.Straightness(); got < 0.99 {
		t.Errorf("Straightness() = %v, want ~1", got)
	}
	if got := w.HeadingDeviation(); got > 1e-6 {
		t.Errorf("HeadingDeviation() = %v, want 0", got)
	}
	if got := w.AltitudeTrend(); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("AltitudeTrend() = %v, want 0.8", got)
	}
}

func TestWindowMaxSpeedFollowsEviction(t *testing.T) {
	w := New(5 * time.Second)
	speeds := []float64{1, 9, 2, 3, 2, 1, 1, 1, 1, 4}
	fs := frames(len(speeds), 1, 0)
	for i, f := range fs {
		f.Speed = speeds[i]
		w.Push(f)
		if i == 3 && w.MaxSpeed() != 9 {
			t.Fatalf("MaxSpeed() at %d = %v, want 9", i, w.MaxSpeed())
		}
	}
	// Window now spans t=4..9: speeds 2,1,1,1,1,4.
	if w.MaxSpeed() != 4 {
		t.Fatalf("MaxSpeed() = %v, want 4", w.MaxSpeed())
	}
}

func TestWindowIgnoresInvalidSpeeds(t *testing.T) {
	w := New(5 * time.Second)
	fs := frames(4, 2, 0)
	fs[2].SpeedValid = false
	fs[2].Speed = 0
	for _, f := range fs {
		w.Push(f)
	}
	if got := w.AvgSpeed(); math.Abs(got-2) > 1e-9 {
		t.Fatalf("AvgSpeed() = %v, want 2", got)
	}
}

func TestWindowCompactionPreservesState(t *testing.T) {
	w := New(3 * time.Second)
	fs := frames(500, 2, -0.5)
	for i, f := range fs {
		f.Speed = float64(i % 7)
		w.Push(f)
	}
	// Last four entries: i=496..499 → speeds 6,0,1,2.
	if w.MaxSpeed() != 6 {
		t.Fatalf("MaxSpeed() = %v, want 6", w.MaxSpeed())
	}
	if got := w.NetAltitude(); math.Abs(got+1.5) > 1e-9 {
		t.Fatalf("NetAltitude() = %v, want -1.5", got)
	}
}

func TestHeadingDeviationZigZag(t *testing.T) {
	w := New(10 * time.Second)
	fs := frames(11, 2, 0)
	for i := range fs {
		if i%2 == 0 {
			fs[i].Bearing = 30
		} else {
			fs[i].Bearing = 330
		}
		w.Push(fs[i])
	}
	if got := w.HeadingDeviation(); got < 20 {
		t.Fatalf("HeadingDeviation() = %v, want a wide spread", got)
	}
}
