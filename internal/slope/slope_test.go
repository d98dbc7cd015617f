package slope

import (
	"math"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

var origin = geo.Point(37.19, 128.82)

// rect builds a rectangle of the given size (meters) whose south-west corner
// sits east/north of origin by the given offsets.
func rect(east, north, width, height float64) orb.Ring {
	sw := geo.Offset(geo.Offset(origin, 90, east), 0, north)
	se := geo.Offset(sw, 90, width)
	return orb.Ring{sw, se, geo.Offset(se, 0, height), geo.Offset(sw, 0, height)}
}

func at(east, north float64) orb.Point {
	return geo.Offset(geo.Offset(origin, 90, east), 0, north)
}

func TestContainsRayCasting(t *testing.T) {
	s := Slope{Name: "HERA II", Boundary: rect(0, 0, 200, 100)}
	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"center", at(100, 50), true},
		{"west of polygon", at(-20, 50), false},
		{"north of polygon", at(100, 130), false},
		{"near corner inside", at(5, 5), true},
	}
	for _, tt := range tests {
		if got := s.Contains(tt.p); got != tt.want {
			t.Errorf("%s: Contains() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestContainsConcavePolygon(t *testing.T) {
	// U-shape: the notch between the arms is outside.
	ring := orb.Ring{
		at(0, 0), at(300, 0), at(300, 300), at(200, 300),
		at(200, 100), at(100, 100), at(100, 300), at(0, 300),
	}
	s := Slope{Name: "U", Boundary: ring}
	if !s.Contains(at(50, 250)) {
		t.Error("left arm should be inside")
	}
	if s.Contains(at(150, 250)) {
		t.Error("notch should be outside")
	}
}

func TestFindPrefersSmallestArea(t *testing.T) {
	idx := NewIndex([]Slope{
		{Name: "ATHENA II", Difficulty: DifficultyIntermediate, Boundary: rect(0, 0, 250, 200)},
		{Name: "APOLLO VI", Difficulty: DifficultyAdvanced, Boundary: rect(50, 50, 200, 100)},
	})
	big, _ := idx.Lookup("ATHENA II")
	small, _ := idx.Lookup("APOLLO VI")
	if math.Abs(big.Area-50000) > 500 || math.Abs(small.Area-20000) > 200 {
		t.Fatalf("areas = %.0f / %.0f, want ~50000 / ~20000", big.Area, small.Area)
	}

	got, ok := idx.Find(at(100, 100))
	if !ok || got.Name != "APOLLO VI" {
		t.Fatalf("Find() = %v, want APOLLO VI", got)
	}
	got, ok = idx.Find(at(20, 20))
	if !ok || got.Name != "ATHENA II" {
		t.Fatalf("Find() outside the small polygon = %v, want ATHENA II", got)
	}
	if _, ok := idx.Find(at(-500, -500)); ok {
		t.Fatal("Find() outside every polygon should miss")
	}
}

func TestFindUsesPresetArea(t *testing.T) {
	idx := NewIndex([]Slope{
		{Name: "A", Boundary: rect(0, 0, 100, 100), Area: 50000},
		{Name: "B", Boundary: rect(0, 0, 100, 100), Area: 20000},
	})
	got, _ := idx.Find(at(50, 50))
	if got.Name != "B" {
		t.Fatalf("Find() = %s, want B", got.Name)
	}
}

func TestNearStartOrFinish(t *testing.T) {
	top, bottom := at(0, 500), at(0, 0)
	idx := NewIndex([]Slope{{Name: "ZEUS III", Boundary: rect(-50, 0, 100, 500), Top: &top, Bottom: &bottom}})

	px := idx.NearStartOrFinish(at(10, 480), StartFinishRadius)
	if len(px) != 1 || !px[0].Start || px[0].Finish {
		t.Fatalf("near top: %+v", px)
	}
	px = idx.NearStartOrFinish(at(0, 40), StartFinishRadius)
	if len(px) != 1 || px[0].Start || !px[0].Finish {
		t.Fatalf("near bottom: %+v", px)
	}
	if px := idx.NearStartOrFinish(at(0, 250), StartFinishRadius); len(px) != 0 {
		t.Fatalf("mid slope: %+v", px)
	}
}

func TestTaggerThrottlesLookups(t *testing.T) {
	idx := NewIndex([]Slope{{Name: "HERA II", Boundary: rect(0, 0, 200, 1000)}})
	tg := NewTagger(idx, TagInterval)

	evaluations := 0
	for i := 0; i < 100; i++ {
		_, evaluated := tg.Observe(at(100, float64(i*5)), 5)
		if evaluated {
			evaluations++
		}
	}
	// First observation plus one lookup per 50 m over 495 m.
	if evaluations != 10 {
		t.Fatalf("evaluations = %d, want 10", evaluations)
	}
	if tg.Current() == nil || tg.Current().Name != "HERA II" {
		t.Fatalf("Current() = %v", tg.Current())
	}
}

func TestAttributeTieBreaks(t *testing.T) {
	easyBig := &Slope{Name: "easy-big", Difficulty: DifficultyBeginner, Area: 90000}
	hardBig := &Slope{Name: "hard-big", Difficulty: DifficultyAdvanced, Area: 80000}
	hardSmall := &Slope{Name: "hard-small", Difficulty: DifficultyAdvanced, Area: 30000}

	tests := []struct {
		name  string
		cands []Candidate
		want  string
	}{
		{
			name: "start and finish wins over difficulty",
			cands: []Candidate{
				{Slope: easyBig, Start: true, Finish: true},
				{Slope: hardSmall, Start: true},
			},
			want: "easy-big",
		},
		{
			name:  "difficulty breaks ties",
			cands: []Candidate{{Slope: easyBig}, {Slope: hardBig}},
			want:  "hard-big",
		},
		{
			name:  "area breaks difficulty ties",
			cands: []Candidate{{Slope: hardBig}, {Slope: hardSmall}},
			want:  "hard-small",
		},
	}
	for _, tt := range tests {
		got := Attribute(tt.cands)
		if got == nil || got.Name != tt.want {
			t.Errorf("%s: Attribute() = %v, want %s", tt.name, got, tt.want)
		}
	}
	if Attribute(nil) != nil {
		t.Error("Attribute(nil) should be nil")
	}
}

func TestTrackerBoostWindowAndRetroactiveStart(t *testing.T) {
	top, bottom := at(0, 500), at(0, 0)
	idx := NewIndex([]Slope{
		{Name: "ZEUS III", Difficulty: DifficultyBeginner, Boundary: rect(-50, 0, 100, 500), Top: &top, Bottom: &bottom},
		{Name: "HERA II", Difficulty: DifficultyExpert, Boundary: rect(-60, 100, 120, 200)},
	})
	tr := NewTracker(idx, StartFinishRadius, UnloadBoostWindow)
	now := time.Date(2026, 1, 22, 11, 0, 0, 0, time.UTC)

	// Still classified OnLift right after unloading at the top.
	tr.LiftUnloaded(now)
	tr.Observe(at(0, 490), now.Add(5*time.Second), types.OnLift)

	tr.OpenRun()
	hera, _ := idx.Lookup("HERA II")
	tr.Touch(hera)
	tr.Observe(at(0, 20), now.Add(2*time.Minute), types.Riding)

	got := tr.CloseRun()
	if got == nil || got.Name != "ZEUS III" {
		t.Fatalf("CloseRun() = %v, want ZEUS III (start+finish)", got)
	}
}

func TestTrackerIgnoresStartOnLiftOutsideBoost(t *testing.T) {
	top := at(0, 500)
	idx := NewIndex([]Slope{{Name: "ZEUS III", Boundary: rect(-50, 0, 100, 500), Top: &top}})
	tr := NewTracker(idx, StartFinishRadius, UnloadBoostWindow)
	now := time.Date(2026, 1, 22, 11, 0, 0, 0, time.UTC)

	tr.Observe(at(0, 500), now, types.OnLift)
	tr.OpenRun()
	if got := tr.CloseRun(); got != nil {
		t.Fatalf("CloseRun() = %v, want nil", got)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`[
	  {"name": "APOLLO VI", "koreanName": "아폴로6", "difficulty": ".advanced", "status": ".open",
	   "polygon": [[37.185625, 128.817298], [37.185625, 128.823481], [37.183367, 128.823481], [37.183367, 128.817298]],
	   "topPoint": {"lat": 37.1856, "lon": 128.8173}, "topAltitude": 1340.5}
	]`)
	slopes, err := ParseJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	got := struct {
		Name, Status string
		Difficulty   Difficulty
		Points       int
		HasTop       bool
		HasBottom    bool
	}{slopes[0].Name, slopes[0].Status, slopes[0].Difficulty, len(slopes[0].Boundary), slopes[0].Top != nil, slopes[0].Bottom != nil}
	want := struct {
		Name, Status string
		Difficulty   Difficulty
		Points       int
		HasTop       bool
		HasBottom    bool
	}{"APOLLO VI", "open", DifficultyAdvanced, 4, true, false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseJSON mismatch (-want +got):\n%s", diff)
	}
	// Latitude is stored as the orb Y coordinate.
	if slopes[0].Boundary[0].Lat() != 37.185625 {
		t.Fatalf("boundary lat = %v", slopes[0].Boundary[0].Lat())
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
- name: HERA II
  difficulty: intermediate
  boundary:
    - [37.190233, 128.817327]
    - [37.190233, 128.828115]
    - [37.183076, 128.828115]
    - [37.183076, 128.817327]
`)
	slopes, err := ParseYAML(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(slopes) != 1 || slopes[0].Difficulty != DifficultyIntermediate || len(slopes[0].Boundary) != 4 {
		t.Fatalf("unexpected slopes: %+v", slopes)
	}
}

func TestParseGeoJSON(t *testing.T) {
	data := []byte(`{"type": "FeatureCollection", "features": [
	  {"type": "Feature",
	   "properties": {"name": "Zeus3", "piste:difficulty": "easy", "top_lat": 37.1977, "top_lon": 128.8278},
	   "geometry": {"type": "Polygon", "coordinates": [[[128.827842, 37.197708], [128.832255, 37.197708], [128.832255, 37.190316], [128.827842, 37.190316], [128.827842, 37.197708]]]}}
	]}`)
	slopes, err := ParseGeoJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	s := slopes[0]
	if s.Name != "Zeus3" || s.Difficulty != DifficultyBeginner || s.Top == nil || s.Bottom != nil {
		t.Fatalf("unexpected slope: %+v", s)
	}
	idx := NewIndex(slopes)
	if _, ok := idx.Find(geo.Point(37.194, 128.830)); !ok {
		t.Fatal("expected point inside Zeus3")
	}
}

func TestFeatureCollectionRoundTrip(t *testing.T) {
	data := []byte(`{"type": "FeatureCollection", "features": [
	  {"type": "Feature",
	   "properties": {"name": "Zeus3", "koreanName": "제우스3", "difficulty": "intermediate", "status": "open",
	                  "top_lat": 37.1977, "top_lon": 128.8278, "bottom_lat": 37.1904, "bottom_lon": 128.832, "top_altitude": 1150},
	   "geometry": {"type": "Polygon", "coordinates": [[[128.827842, 37.197708], [128.832255, 37.197708], [128.832255, 37.190316], [128.827842, 37.190316], [128.827842, 37.197708]]]}}
	]}`)
	slopes, err := ParseGeoJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := NewIndex(slopes).FeatureCollection().MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseGeoJSON(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 {
		t.Fatalf("got %d slopes", len(again))
	}
	want, got := slopes[0], again[0]
	if got.Name != want.Name || got.KoreanName != want.KoreanName || got.Difficulty != want.Difficulty || got.Status != want.Status {
		t.Errorf("attributes changed: %+v", got)
	}
	if got.Top == nil || *got.Top != *want.Top || got.Bottom == nil || *got.Bottom != *want.Bottom {
		t.Errorf("start/finish points changed: %v %v", got.Top, got.Bottom)
	}
	if got.TopAltitude == nil || *got.TopAltitude != 1150 || got.BottomAltitude != nil {
		t.Errorf("altitudes changed: %v %v", got.TopAltitude, got.BottomAltitude)
	}
	if len(got.Boundary) != len(want.Boundary) {
		t.Errorf("boundary has %d points, want %d", len(got.Boundary), len(want.Boundary))
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := map[string]Difficulty{
		".beginner":    DifficultyBeginner,
		"novice":       DifficultyBeginner,
		"Intermediate": DifficultyIntermediate,
		"advanced":     DifficultyAdvanced,
		"freeride":     DifficultyExpert,
		"???":          DifficultyUnknown,
	}
	for in, want := range tests {
		if got := ParseDifficulty(in); got != want {
			t.Errorf("ParseDifficulty(%q) = %v, want %v", in, got, want)
		}
	}
}
