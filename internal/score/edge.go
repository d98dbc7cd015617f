// Package score computes the two riding-style scores of a run: Edge, from
// the acceleration magnitude, and Flow, from GPS speed consistency.
package score

import (
	"math"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// tierEpsilon absorbs floating point noise from the moving average so a
// steady 1.7 G lands in the top tier.
const tierEpsilon = 1e-9

// EdgeParams tunes the Edge engine.
type EdgeParams struct {
	MinSpeed      float64 // m/s; slower G samples are ignored
	MaxDelta      float64 // G; larger frame-to-frame jumps are sensor noise
	Smoothing     int     // frames in the moving average
	DefaultDT     time.Duration
	MaxDT         time.Duration
	Tier1         float64
	Tier2         float64
	Tier3         float64
	Tier1Weight   float64
	Tier2Weight   float64
	Tier3Weight   float64
	Normalizer    float64
	NoTier3Cap    float64
	MinTurnRatio  float64
	TurnRatioCap  float64
	MaxScoreValue float64
}

// DefaultEdgeParams returns the production Edge settings.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		MinSpeed:      4.2,
		MaxDelta:      0.5,
		Smoothing:     10,
		DefaultDT:     time.Second / 60,
		MaxDT:         100 * time.Millisecond,
		Tier1:         1.2,
		Tier2:         1.4,
		Tier3:         1.7,
		Tier1Weight:   0.2,
		Tier2Weight:   2.5,
		Tier3Weight:   6.0,
		Normalizer:    260,
		NoTier3Cap:    940,
		MinTurnRatio:  0.25,
		TurnRatioCap:  790,
		MaxScoreValue: 1000,
	}
}

// Edge accumulates carving intensity for one run.
type Edge struct {
	params EdgeParams

	speed    float64
	lastTime time.Time
	prev     float64
	hasPrev  bool

	ring  []float64
	next  int
	count int
	sum   float64

	raw      float64
	maxG     float64
	gSum     float64
	gCount   int
	tierTime [3]float64
}

// NewEdge creates an empty Edge engine.
func NewEdge(p EdgeParams) *Edge {
	if p.Smoothing < 1 {
		p.Smoothing = 1
	}
	return &Edge{params: p, ring: make([]float64, p.Smoothing)}
}

// Reset clears the accumulators for a new run.
func (e *Edge) Reset() {
	*e = Edge{params: e.params, ring: make([]float64, e.params.Smoothing)}
}

// SetSpeed records the horizontal speed used to gate G samples.
func (e *Edge) SetSpeed(mps float64) {
	e.speed = mps
}

// AddG folds one acceleration magnitude sample taken at at.
func (e *Edge) AddG(g float64, at time.Time) {
	dt := e.params.DefaultDT.Seconds()
	if !e.lastTime.IsZero() {
		dt = math.Max(0, math.Min(at.Sub(e.lastTime).Seconds(), e.params.MaxDT.Seconds()))
	}
	if e.lastTime.IsZero() || at.After(e.lastTime) {
		e.lastTime = at
	}

	jump := e.hasPrev && math.Abs(g-e.prev) >= e.params.MaxDelta
	e.prev, e.hasPrev = g, true
	if jump || e.speed < e.params.MinSpeed {
		return
	}

	smoothed := e.smooth(g)
	e.maxG = math.Max(e.maxG, smoothed)
	e.gSum += smoothed
	e.gCount++

	tier, weight := e.tier(smoothed)
	if tier < 0 {
		return
	}
	e.tierTime[tier] += dt
	e.raw += smoothed * weight * dt
}

func (e *Edge) smooth(g float64) float64 {
	if e.count == len(e.ring) {
		e.sum -= e.ring[e.next]
	} else {
		e.count++
	}
	e.ring[e.next] = g
	e.sum += g
	e.next = (e.next + 1) % len(e.ring)
	return e.sum / float64(e.count)
}

func (e *Edge) tier(g float64) (int, float64) {
	p := e.params
	switch {
	case g >= p.Tier3-tierEpsilon:
		return 2, p.Tier3Weight
	case g >= p.Tier2-tierEpsilon:
		return 1, p.Tier2Weight
	case g >= p.Tier1-tierEpsilon:
		return 0, p.Tier1Weight
	default:
		return -1, 0
	}
}

// Raw returns the accumulated weighted G time.
func (e *Edge) Raw() float64 {
	return e.raw
}

// NormalizeEdge maps a raw accumulation onto [0, 1000] before caps.
func NormalizeEdge(raw float64, p EdgeParams) float64 {
	if raw <= 0 {
		return 0
	}
	s := p.MaxScoreValue * math.Log1p(raw) / math.Log1p(p.Normalizer)
	return math.Min(p.MaxScoreValue, s)
}

// Result returns the score and summary of what has been accumulated so far.
func (e *Edge) Result() types.EdgeSummary {
	p := e.params
	tiered := e.tierTime[0] + e.tierTime[1] + e.tierTime[2]
	ratio := 0.0
	if tiered > 0 {
		ratio = (e.tierTime[1] + e.tierTime[2]) / tiered
	}

	score := NormalizeEdge(e.raw, p)
	if e.maxG < p.Tier3-tierEpsilon {
		score = math.Min(score, p.NoTier3Cap)
	}
	if ratio < p.MinTurnRatio {
		score = math.Min(score, p.TurnRatioCap)
	}

	avg := 0.0
	if e.gCount > 0 {
		avg = e.gSum / float64(e.gCount)
	}
	return types.EdgeSummary{
		Score:     int(math.Round(score)),
		Raw:       e.raw,
		MaxG:      e.maxG,
		AvgG:      avg,
		TurnRatio: ratio,
	}
}
