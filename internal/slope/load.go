package slope

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v2"
)

// pointRecord is a {lat, lon} pair as written in the resort database files.
type pointRecord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// record mirrors one slope entry of the JSON/YAML database. The boundary is
// a list of [lat, lon] pairs and may appear under either key.
type record struct {
	Name           string       `json:"name" yaml:"name"`
	KoreanName     string       `json:"koreanName" yaml:"koreanName"`
	Difficulty     string       `json:"difficulty" yaml:"difficulty"`
	Status         string       `json:"status" yaml:"status"`
	Length         float64      `json:"length" yaml:"length"`
	AvgGradient    float64      `json:"avgGradient" yaml:"avgGradient"`
	MaxGradient    float64      `json:"maxGradient" yaml:"maxGradient"`
	Polygon        [][]float64  `json:"polygon" yaml:"polygon"`
	Boundary       [][]float64  `json:"boundary" yaml:"boundary"`
	TopPoint       *pointRecord `json:"topPoint" yaml:"topPoint"`
	BottomPoint    *pointRecord `json:"bottomPoint" yaml:"bottomPoint"`
	TopAltitude    *float64     `json:"topAltitude" yaml:"topAltitude"`
	BottomAltitude *float64     `json:"bottomAltitude" yaml:"bottomAltitude"`
}

func (r record) toSlope() (Slope, error) {
	coords := r.Polygon
	if len(coords) == 0 {
		coords = r.Boundary
	}
	if r.Name == "" {
		return Slope{}, fmt.Errorf("slope without a name")
	}
	if len(coords) < 3 {
		return Slope{}, fmt.Errorf("slope %q: boundary needs at least 3 points, got %d", r.Name, len(coords))
	}
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return Slope{}, fmt.Errorf("slope %q: boundary point %d is not a [lat, lon] pair", r.Name, i)
		}
		ring[i] = geo.Point(c[0], c[1])
	}
	s := Slope{
		Name:           r.Name,
		KoreanName:     r.KoreanName,
		Difficulty:     ParseDifficulty(r.Difficulty),
		Status:         strings.TrimPrefix(r.Status, "."),
		Length:         r.Length,
		AvgGradient:    r.AvgGradient,
		MaxGradient:    r.MaxGradient,
		Boundary:       ring,
		TopAltitude:    r.TopAltitude,
		BottomAltitude: r.BottomAltitude,
	}
	if r.TopPoint != nil {
		p := geo.Point(r.TopPoint.Lat, r.TopPoint.Lon)
		s.Top = &p
	}
	if r.BottomPoint != nil {
		p := geo.Point(r.BottomPoint.Lat, r.BottomPoint.Lon)
		s.Bottom = &p
	}
	return s, nil
}

// LoadFile reads a slope database, choosing the format by extension:
// .json, .yaml/.yml, or .geojson.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read slope file: %w", err)
	}

	var slopes []Slope
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		slopes, err = ParseJSON(data)
	case ".yaml", ".yml":
		slopes, err = ParseYAML(data)
	case ".geojson":
		slopes, err = ParseGeoJSON(data)
	default:
		return nil, fmt.Errorf("unsupported slope file format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return NewIndex(slopes), nil
}

// ParseJSON decodes a JSON array of slope records.
func ParseJSON(data []byte) ([]Slope, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return convert(records)
}

// ParseYAML decodes a YAML list of slope records.
func ParseYAML(data []byte) ([]Slope, error) {
	var records []record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return convert(records)
}

func convert(records []record) ([]Slope, error) {
	slopes := make([]Slope, 0, len(records))
	for _, r := range records {
		s, err := r.toSlope()
		if err != nil {
			return nil, err
		}
		slopes = append(slopes, s)
	}
	return slopes, nil
}

// ParseGeoJSON reads a FeatureCollection of Polygon features. The outer ring
// is the boundary; properties carry name, koreanName, difficulty (or
// piste:difficulty), status and optional top_lat/top_lon, bottom_lat/bottom_lon,
// top_altitude and bottom_altitude.
func ParseGeoJSON(data []byte) ([]Slope, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var slopes []Slope
	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok || len(poly) == 0 {
			return nil, fmt.Errorf("feature %d: expected a polygon geometry", i)
		}
		props := f.Properties
		difficulty := props.MustString("difficulty", "")
		if difficulty == "" {
			difficulty = props.MustString("piste:difficulty", "")
		}
		s := Slope{
			Name:        props.MustString("name", ""),
			KoreanName:  props.MustString("koreanName", ""),
			Difficulty:  ParseDifficulty(difficulty),
			Status:      props.MustString("status", ""),
			Length:      props.MustFloat64("length", 0),
			AvgGradient: props.MustFloat64("avgGradient", 0),
			MaxGradient: props.MustFloat64("maxGradient", 0),
			Boundary:    poly[0],
		}
		if s.Name == "" {
			return nil, fmt.Errorf("feature %d: missing name property", i)
		}
		s.Top = optionalPoint(props, "top_lat", "top_lon")
		s.Bottom = optionalPoint(props, "bottom_lat", "bottom_lon")
		s.TopAltitude = optionalFloat(props, "top_altitude")
		s.BottomAltitude = optionalFloat(props, "bottom_altitude")
		slopes = append(slopes, s)
	}
	return slopes, nil
}

func optionalPoint(props geojson.Properties, latKey, lonKey string) *orb.Point {
	lat := props.MustFloat64(latKey, math.NaN())
	lon := props.MustFloat64(lonKey, math.NaN())
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return nil
	}
	p := geo.Point(lat, lon)
	return &p
}

func optionalFloat(props geojson.Properties, key string) *float64 {
	v := props.MustFloat64(key, math.NaN())
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// FeatureCollection renders the index in the form ParseGeoJSON reads.
func (idx *Index) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range idx.Slopes() {
		f := geojson.NewFeature(orb.Polygon{s.Boundary})
		f.Properties["name"] = s.Name
		if s.KoreanName != "" {
			f.Properties["koreanName"] = s.KoreanName
		}
		f.Properties["difficulty"] = s.Difficulty.String()
		if s.Status != "" {
			f.Properties["status"] = s.Status
		}
		if s.Length > 0 {
			f.Properties["length"] = s.Length
		}
		if s.AvgGradient > 0 {
			f.Properties["avgGradient"] = s.AvgGradient
		}
		if s.MaxGradient > 0 {
			f.Properties["maxGradient"] = s.MaxGradient
		}
		if s.Top != nil {
			f.Properties["top_lat"], f.Properties["top_lon"] = s.Top.Lat(), s.Top.Lon()
		}
		if s.Bottom != nil {
			f.Properties["bottom_lat"], f.Properties["bottom_lon"] = s.Bottom.Lat(), s.Bottom.Lon()
		}
		if s.TopAltitude != nil {
			f.Properties["top_altitude"] = *s.TopAltitude
		}
		if s.BottomAltitude != nil {
			f.Properties["bottom_altitude"] = *s.BottomAltitude
		}
		fc.Append(f)
	}
	return fc
}
