package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

var epoch = time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)

func frame(sec int, step, alt, delta, speed, speedAcc float64) types.Frame {
	return types.Frame{
		Sample: types.Sample{
			Lat:                37.19,
			Lon:                128.82,
			HorizontalAccuracy: 5,
			SpeedAccuracy:      speedAcc,
		},
		Time:           epoch.Add(time.Duration(sec) * time.Second),
		Speed:          speed,
		SpeedValid:     true,
		Altitude:       alt,
		AltitudeDelta:  delta,
		AltitudeSource: types.AltitudeSourceGPS,
		StepDistance:   step,
	}
}

func TestRidingOnlyTotals(t *testing.T) {
	a := New(DefaultParams())
	a.Observe(frame(0, 0, 1500, 0, 0, 1), types.Resting)
	a.Observe(frame(1, 30, 1510, 10, 3, 1), types.OnLift)
	a.OpenRun()
	a.Observe(frame(2, 10, 1508, -2, 10, 1), types.Riding)
	a.Observe(frame(3, 12, 1505, -3, 12, 1), types.Riding)
	a.Observe(frame(4, 1, 1505.5, 0.5, 1, 1), types.Riding)
	a.Observe(frame(5, 20, 1500, -5.5, 20, 5), types.Riding) // speed accuracy too poor for max
	run := a.CloseRun()
	a.Observe(frame(6, 50, 1495, -5, 30, 1), types.Resting)

	tests := []struct {
		name      string
		got, want float64
	}{
		{"distance", run.Distance, 43},
		{"vertical drop", run.VerticalDrop, 10.5},
		{"max speed", run.MaxSpeed, 12},
		{"avg speed", run.AvgSpeed(), (10 + 12 + 20) / 3.0},
		{"top altitude", run.TopAltitude, 1508},
		{"bottom altitude", run.BottomAltitude, 1500},
		{"session distance", a.Session().Distance, 43},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if a.RidingTime() != 4*time.Second || a.LiftTime() != time.Second {
		t.Errorf("riding/lift time = %v/%v, want 4s/1s", a.RidingTime(), a.LiftTime())
	}
}

func TestPoorFixAddsNoDistance(t *testing.T) {
	a := New(DefaultParams())
	f := frame(1, 100, 1500, 0, 5, 1)
	f.Sample.HorizontalAccuracy = 65
	a.Observe(f, types.Riding)
	if d := a.Session().Distance; d != 0 {
		t.Fatalf("distance = %v, want 0", d)
	}
}

func TestRouteCadenceFollowsState(t *testing.T) {
	a := New(DefaultParams())
	// 40 m while resting at 2 m steps: first fix plus one point per 20 m.
	for i := 0; i <= 20; i++ {
		a.Observe(frame(i, 2, 1500, 0, 1, 1), types.Resting)
	}
	if n := a.RouteLen(); n != 3 {
		t.Fatalf("resting route points = %d, want 3", n)
	}
	// 50 m while riding at 2.5 m steps: one point per 5 m.
	for i := 21; i <= 40; i++ {
		a.Observe(frame(i, 2.5, 1500, 0, 10, 1), types.Riding)
	}
	route := a.Route()
	if n := len(route); n != 13 {
		t.Fatalf("route points = %d, want 13", n)
	}
	for i := 1; i < len(route); i++ {
		if route[i].Timestamp.Before(route[i-1].Timestamp) {
			t.Fatalf("route timestamps decrease at %d", i)
		}
		if route[i].Distance < route[i-1].Distance {
			t.Fatalf("route distance decreases at %d", i)
		}
	}
	if last := route[len(route)-1]; last.State != types.Riding {
		t.Fatalf("last route point state = %v", last.State)
	}
}

func TestSpeedSeriesFiltersAccuracy(t *testing.T) {
	a := New(DefaultParams())
	a.Observe(frame(0, 0, 1500, 0, 5, 1.5), types.Riding)
	a.Observe(frame(1, 0, 1500, 0, 6, 2.5), types.Riding)
	a.Observe(frame(2, 0, 1500, 0, 7, -1), types.Riding)
	a.Observe(frame(3, 0, 1500, 0, 8, 2.0), types.OnLift)
	speeds := a.Speeds()
	if len(speeds) != 2 || speeds[0].Speed != 5 || speeds[1].Speed != 8 {
		t.Fatalf("speeds = %+v", speeds)
	}
}

func TestRouteBetween(t *testing.T) {
	a := New(DefaultParams())
	for i := 0; i < 10; i++ {
		a.Observe(frame(i, 10, 1500, 0, 10, 1), types.Riding)
	}
	got := a.RouteBetween(epoch.Add(3*time.Second), epoch.Add(6*time.Second))
	if len(got) != 4 {
		t.Fatalf("RouteBetween returned %d points, want 4", len(got))
	}
}
