package altitude

import (
	"math"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

var t0 = time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)

func gpsSample(i int, alt float64) types.Sample {
	return types.Sample{
		Time:               t0.Add(time.Duration(i) * time.Second),
		Lat:                37.19,
		Lon:                128.82,
		HorizontalAccuracy: 5,
		Speed:              2,
		Altitude:           alt,
		VerticalAccuracy:   4,
	}
}

func TestGPSFallbackTracksDescent(t *testing.T) {
	f := New(DefaultParams())
	var r Reading
	for i := 0; i <= 20; i++ {
		r = f.Update(gpsSample(i, 1000-float64(i)), t0.Add(time.Duration(i)*time.Second))
	}
	if r.Source != types.AltitudeSourceGPS {
		t.Fatalf("source = %v, want gps", r.Source)
	}
	// After many time constants the smoother lags a 1 m/s ramp by ~tau meters.
	if math.Abs(r.Delta+1) > 0.01 {
		t.Fatalf("delta = %v, want ~-1", r.Delta)
	}
	if lag := r.Altitude - 980; lag < 1.0 || lag > 2.0 {
		t.Fatalf("smoothed altitude lag = %v, want ~1.5", lag)
	}
}

func TestBarometerBecomesAuthoritative(t *testing.T) {
	f := New(DefaultParams())
	f.Update(gpsSample(0, 1200), t0)
	f.Update(gpsSample(1, 1200), t0.Add(time.Second))

	s := gpsSample(2, 1230) // noisy GPS jump
	s.BaroAltitude = types.Float(0)
	r := f.Update(s, t0.Add(2*time.Second))
	if r.Source != types.AltitudeSourceBarometer {
		t.Fatalf("source = %v, want barometer", r.Source)
	}

	s = gpsSample(3, 1180) // GPS noise in the other direction
	s.BaroAltitude = types.Float(-2)
	r = f.Update(s, t0.Add(3*time.Second))
	if math.Abs(r.Delta+2) > 0.05 {
		t.Fatalf("delta = %v, want ~-2 from the barometer", r.Delta)
	}
}

func TestShortBarometerGapDoesNotFlap(t *testing.T) {
	f := New(DefaultParams())
	for i := 0; i < 5; i++ {
		s := gpsSample(i, 1000)
		s.BaroAltitude = types.Float(-float64(i))
		f.Update(s, t0.Add(time.Duration(i)*time.Second))
	}
	// Barometer silent for 10 s while GPS keeps reporting a climb.
	for i := 5; i < 15; i++ {
		r := f.Update(gpsSample(i, 1000+float64(i)), t0.Add(time.Duration(i)*time.Second))
		if r.Source != types.AltitudeSourceBarometer {
			t.Fatalf("sample %d: source = %v, want barometer held", i, r.Source)
		}
		if r.Delta != 0 {
			t.Fatalf("sample %d: delta = %v, want 0 while holding", i, r.Delta)
		}
	}
}

func TestSustainedBarometerLossFallsBackContinuously(t *testing.T) {
	f := New(DefaultParams())
	var last Reading
	for i := 0; i < 5; i++ {
		s := gpsSample(i, 1000)
		s.BaroAltitude = types.Float(0)
		last = f.Update(s, t0.Add(time.Duration(i)*time.Second))
	}
	var r Reading
	for i := 5; i < 40; i++ {
		r = f.Update(gpsSample(i, 1000), t0.Add(time.Duration(i)*time.Second))
	}
	if r.Source != types.AltitudeSourceGPS {
		t.Fatalf("source = %v, want gps after sustained loss", r.Source)
	}
	if math.Abs(r.Altitude-last.Altitude) > 0.5 {
		t.Fatalf("fused altitude jumped from %v to %v on source switch", last.Altitude, r.Altitude)
	}
}

func TestMissingAltitudeDegradesQuietly(t *testing.T) {
	f := New(DefaultParams())
	s := gpsSample(0, math.NaN())
	r := f.Update(s, t0)
	if r.Valid {
		t.Fatal("expected invalid reading without any altitude source")
	}
	if r.Delta != 0 {
		t.Fatalf("delta = %v, want 0", r.Delta)
	}
}

func TestRebaseContinuesSeriesWithoutStep(t *testing.T) {
	for _, tc := range []struct {
		name string
		baro bool
	}{
		{"gps", false},
		{"barometer", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := New(DefaultParams())
			sample := func(i int, alt float64) types.Sample {
				s := gpsSample(i, alt)
				if tc.baro {
					s.BaroAltitude = types.Float(alt - 1000)
				}
				return s
			}
			var before Reading
			for i := 0; i <= 10; i++ {
				before = f.Update(sample(i, 1500-float64(i)), t0.Add(time.Duration(i)*time.Second))
			}

			// 200 m lower after the break.
			f.Rebase()
			r := f.Update(sample(11, 1290), t0.Add(11*time.Second))
			if r.Delta != 0 || math.Abs(r.Altitude-before.Altitude) > 1e-9 {
				t.Fatalf("first reading after rebase = %+v, want a zero delta at %.2f", r, before.Altitude)
			}

			r = f.Update(sample(12, 1289), t0.Add(12*time.Second))
			if r.Delta > 0 || r.Delta < -1.01 {
				t.Fatalf("delta after rebase = %v, want the 1 m descent only", r.Delta)
			}
		})
	}
}
