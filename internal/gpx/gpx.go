// Package gpx reads GPX 1.1 tracks into recorder samples. It understands the
// GPS Track Editor extension that carries the device speed on each point.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// gpsExtension is the <gte:gps speed=".." course=".."/> element
type gpsExtension struct {
	Speed  string `xml:"speed,attr"`
	Course string `xml:"course,attr"`
}

type extensions struct {
	GPS *gpsExtension `xml:"gps"`
}

// Point represents a GPX track point
type Point struct {
	Lat        float64     `xml:"lat,attr"`
	Lon        float64     `xml:"lon,attr"`
	Elevation  *float64    `xml:"ele"`
	Time       time.Time   `xml:"time"`
	HDOP       *float64    `xml:"hdop"`
	Extensions *extensions `xml:"extensions"`
}

// Speed returns the recorded device speed in m/s, if the point carries one
func (p Point) Speed() (float64, bool) {
	if p.Extensions == nil || p.Extensions.GPS == nil || p.Extensions.GPS.Speed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(p.Extensions.GPS.Speed, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// TrackSegment represents a track segment
type TrackSegment struct {
	Points []Point `xml:"trkpt"`
}

// Track represents a GPX track with segments
type Track struct {
	Name     string         `xml:"name"`
	Segments []TrackSegment `xml:"trkseg"`
}

// GPX represents the parts of a GPX file the recorder uses
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Creator string   `xml:"creator,attr"`
	Tracks  []Track  `xml:"trk"`
}

// Parse reads and parses a GPX file
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader parses GPX from an io.Reader
func ParseReader(r io.Reader) (*GPX, error) {
	var g GPX
	if err := xml.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}
	return &g, nil
}

// Points returns every track point in file order
func (g *GPX) Points() []Point {
	var points []Point
	for _, t := range g.Tracks {
		for _, s := range t.Segments {
			points = append(points, s.Points...)
		}
	}
	return points
}
