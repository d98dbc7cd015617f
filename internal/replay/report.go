package replay

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// UnknownSlope labels runs that were not matched to any slope.
const UnknownSlope = "(unknown)"

// SlopeTotals aggregates the runs recorded on one slope.
type SlopeTotals struct {
	Slope        string
	Runs         int
	VerticalDrop float64
	Distance     float64
	MaxSpeed     float64
	BestEdge     int
	BestFlow     int
}

// BySlope groups runs by slope, most ridden first.
func BySlope(runs []types.Run) []SlopeTotals {
	totals := make(map[string]*SlopeTotals)
	for _, r := range runs {
		name := r.Slope
		if name == "" {
			name = UnknownSlope
		}
		t, ok := totals[name]
		if !ok {
			t = &SlopeTotals{Slope: name}
			totals[name] = t
		}
		t.Runs++
		t.VerticalDrop += r.VerticalDrop
		t.Distance += r.Distance
		t.MaxSpeed = max(t.MaxSpeed, r.MaxSpeed)
		t.BestEdge = max(t.BestEdge, r.Edge.Score)
		t.BestFlow = max(t.BestFlow, r.Flow.Score)
	}

	out := make([]SlopeTotals, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Slope < out[j].Slope
	})
	return out
}

// WriteReport prints the per-run table, the per-slope totals and the session
// summary.
func WriteReport(w io.Writer, res *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RUN\tSLOPE\tSTART\tDURATION\tTOP\tBOTTOM\tDROP\tDISTANCE\tMAX KM/H\tAVG KM/H\tEDGE\tFLOW")
	for _, r := range res.Runs {
		slope := r.Slope
		if slope == "" {
			slope = UnknownSlope
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0fm\t%.0fm\t%.0fm\t%.0fm\t%.1f\t%.1f\t%d\t%d\n",
			r.Number, slope, r.Start.Format("15:04:05"), r.Duration.Round(1e9),
			r.TopAltitude, r.BottomAltitude, r.VerticalDrop, r.Distance,
			types.Kmh(r.MaxSpeed), types.Kmh(r.AvgSpeed), r.Edge.Score, r.Flow.Score)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SLOPE\tRUNS\tDROP\tDISTANCE\tMAX KM/H\tBEST EDGE\tBEST FLOW")
	for _, t := range BySlope(res.Runs) {
		fmt.Fprintf(tw, "%s\t%d\t%.0fm\t%.0fm\t%.1f\t%d\t%d\n",
			t.Slope, t.Runs, t.VerticalDrop, t.Distance, types.Kmh(t.MaxSpeed), t.BestEdge, t.BestFlow)
	}
	fmt.Fprintln(tw)

	s := res.Summary
	fmt.Fprintf(tw, "runs\t%d\n", s.RunCount)
	fmt.Fprintf(tw, "lifts\t%d\n", s.LiftCount)
	fmt.Fprintf(tw, "vertical drop\t%.0fm\n", s.VerticalDrop)
	fmt.Fprintf(tw, "distance\t%.1fkm\n", s.Distance/1000)
	fmt.Fprintf(tw, "max speed\t%.1fkm/h\n", types.Kmh(s.MaxSpeed))
	fmt.Fprintf(tw, "riding time\t%s\n", s.RidingTime.Round(1e9))
	fmt.Fprintf(tw, "lift time\t%s\n", s.LiftTime.Round(1e9))

	return tw.Flush()
}
