package gpx

import (
	"sort"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/types"
)

const (
	// assumedHorizontalAccuracy stands in for devices that record no HDOP
	assumedHorizontalAccuracy = 5.0
	// metersPerHDOP converts HDOP to an approximate accuracy radius
	metersPerHDOP = 5.0
	// assumedVerticalAccuracy applies whenever an elevation is present
	assumedVerticalAccuracy = 8.0
)

// Samples converts the track into time-ordered samples. Points without a
// timestamp are skipped. When a point carries no device speed, the speed is
// derived from the distance to the previous point.
func (g *GPX) Samples() []types.Sample {
	points := g.Points()
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	samples := make([]types.Sample, 0, len(points))
	var prev *Point
	for i := range points {
		p := points[i]
		if p.Time.IsZero() {
			continue
		}

		s := types.Sample{
			Time:               p.Time,
			Lat:                p.Lat,
			Lon:                p.Lon,
			HorizontalAccuracy: assumedHorizontalAccuracy,
			Speed:              -1,
			SpeedAccuracy:      -1,
			VerticalAccuracy:   -1,
		}
		if p.HDOP != nil && *p.HDOP > 0 {
			s.HorizontalAccuracy = *p.HDOP * metersPerHDOP
		}
		if p.Elevation != nil {
			s.Altitude = *p.Elevation
			s.VerticalAccuracy = assumedVerticalAccuracy
		}

		if v, ok := p.Speed(); ok {
			s.Speed = v
		} else if prev != nil {
			if dt := p.Time.Sub(prev.Time).Seconds(); dt > 0 {
				s.Speed = geo.Distance(geo.Point(prev.Lat, prev.Lon), geo.Point(p.Lat, p.Lon)) / dt
			}
		}

		samples = append(samples, s)
		prev = &points[i]
	}
	return samples
}
