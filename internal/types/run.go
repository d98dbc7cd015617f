package types

import "time"

// RoutePoint is one sampled point of the recorded route.
type RoutePoint struct {
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	Speed     float64       `json:"speed"`
	Altitude  float64       `json:"altitude"`
	Distance  float64       `json:"distance"`
	Timestamp time.Time     `json:"timestamp"`
	State     ActivityState `json:"state"`
}

// SpeedPoint is one entry of the accuracy-filtered speed series.
type SpeedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
}

// EdgeSummary carries the carving-related figures of a run.
type EdgeSummary struct {
	Score     int     `json:"score"`
	Raw       float64 `json:"raw"`
	MaxG      float64 `json:"max_g"`
	AvgG      float64 `json:"avg_g"`
	TurnRatio float64 `json:"turn_ratio"`
}

// FlowSummary carries the smoothness figures of a run.
type FlowSummary struct {
	Score        int     `json:"score"`
	Stability    float64 `json:"stability"`
	IdlePenalty  float64 `json:"idle_penalty"`
	HardBrakes   int     `json:"hard_brakes"`
	ChatterCount int     `json:"chatter_count"`
	QuietBonuses int     `json:"quiet_bonuses"`
}

// Run is a finalized riding segment.
type Run struct {
	Number         int           `json:"number"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	Duration       time.Duration `json:"duration"`
	Distance       float64       `json:"distance"`
	VerticalDrop   float64       `json:"vertical_drop"`
	MaxSpeed       float64       `json:"max_speed"`
	AvgSpeed       float64       `json:"avg_speed"`
	TopAltitude    float64       `json:"top_altitude"`
	BottomAltitude float64       `json:"bottom_altitude"`
	Slope          string        `json:"slope,omitempty"`
	Edge           EdgeSummary   `json:"edge"`
	Flow           FlowSummary   `json:"flow"`
}

// SessionSummary is the session-level metrics snapshot handed to the recorder
// when the session ends.
type SessionSummary struct {
	SessionID      string        `json:"session_id"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	RunCount       int           `json:"run_count"`
	LiftCount      int           `json:"lift_count"`
	Distance       float64       `json:"distance"`
	VerticalDrop   float64       `json:"vertical_drop"`
	MaxSpeed       float64       `json:"max_speed"`
	AvgSpeed       float64       `json:"avg_speed"`
	RidingTime     time.Duration `json:"riding_time"`
	LiftTime       time.Duration `json:"lift_time"`
	BestEdgeScore  int           `json:"best_edge_score"`
	BestFlowScore  int           `json:"best_flow_score"`
	RoutePointsLen int           `json:"route_points"`
}
