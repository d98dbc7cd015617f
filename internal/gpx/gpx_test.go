package gpx

import (
	"math"
	"strings"
	"testing"
	"time"
)

const trackWithSpeed = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1" xmlns:gte="http://www.gpstrackeditor.com/xmlschemas/General/1">
	<trk>
		<name>High1</name>
		<trkseg>
			<trkpt lat="37.1977" lon="128.8278">
				<ele>1340.5</ele>
				<time>2025-01-18T10:00:00Z</time>
				<extensions><gte:gps speed="8.5" course="180"/></extensions>
			</trkpt>
			<trkpt lat="37.1976" lon="128.8278">
				<ele>1338</ele>
				<time>2025-01-18T10:00:01Z</time>
				<extensions><gte:gps speed="9.25"/></extensions>
			</trkpt>
		</trkseg>
	</trk>
</gpx>`

const trackWithoutSpeed = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<trk>
		<trkseg>
			<trkpt lat="37.0000" lon="128.0000"><time>2025-01-18T10:00:00Z</time></trkpt>
			<trkpt lat="37.0001" lon="128.0000"><time>2025-01-18T10:00:02Z</time><hdop>2</hdop></trkpt>
			<trkpt lat="37.0002" lon="128.0000"></trkpt>
		</trkseg>
	</trk>
</gpx>`

func TestParseReaderSpeedExtension(t *testing.T) {
	g, err := ParseReader(strings.NewReader(trackWithSpeed))
	if err != nil {
		t.Fatal(err)
	}
	points := g.Points()
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if v, ok := points[0].Speed(); !ok || v != 8.5 {
		t.Errorf("speed = %v, %v; want 8.5", v, ok)
	}
	if points[0].Elevation == nil || *points[0].Elevation != 1340.5 {
		t.Errorf("elevation = %v", points[0].Elevation)
	}
	if want := time.Date(2025, 1, 18, 10, 0, 0, 0, time.UTC); !points[0].Time.Equal(want) {
		t.Errorf("time = %v, want %v", points[0].Time, want)
	}

	samples := g.Samples()
	if len(samples) != 2 {
		t.Fatalf("got %d samples", len(samples))
	}
	if samples[1].Speed != 9.25 || !samples[1].HasFix() || !samples[1].HasAltitude() {
		t.Errorf("sample = %+v", samples[1])
	}
}

func TestSamplesDeriveSpeed(t *testing.T) {
	g, err := ParseReader(strings.NewReader(trackWithoutSpeed))
	if err != nil {
		t.Fatal(err)
	}
	samples := g.Samples()
	// The point without a timestamp is skipped.
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].SpeedValid() {
		t.Errorf("first sample has no predecessor, speed should be invalid: %v", samples[0].Speed)
	}
	// 0.0001° of latitude is about 11.1 m, covered in 2 s.
	if math.Abs(samples[1].Speed-5.56) > 0.05 {
		t.Errorf("derived speed = %.3f, want ≈5.56", samples[1].Speed)
	}
	if samples[0].HasAltitude() {
		t.Error("point without <ele> should have no altitude")
	}
	if samples[1].HorizontalAccuracy != 10 {
		t.Errorf("accuracy from hdop = %v, want 10", samples[1].HorizontalAccuracy)
	}
}
