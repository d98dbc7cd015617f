package database

import (
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

// SessionRecord is one finished recording session
type SessionRecord struct {
	ID            string        `gorm:"primaryKey;column:id"`
	Start         time.Time     `gorm:"column:start_time;not null"`
	End           time.Time     `gorm:"column:end_time;not null"`
	RunCount      int           `gorm:"column:run_count"`
	LiftCount     int           `gorm:"column:lift_count"`
	Distance      float64       `gorm:"column:distance"`
	VerticalDrop  float64       `gorm:"column:vertical_drop"`
	MaxSpeed      float64       `gorm:"column:max_speed"`
	AvgSpeed      float64       `gorm:"column:avg_speed"`
	RidingTime    time.Duration `gorm:"column:riding_ns"`
	LiftTime      time.Duration `gorm:"column:lift_ns"`
	BestEdgeScore int           `gorm:"column:best_edge_score"`
	BestFlowScore int           `gorm:"column:best_flow_score"`
	RoutePoints   int           `gorm:"column:route_points"`
}

// TableName specifies the table name for SessionRecord
func (SessionRecord) TableName() string {
	return "sessions"
}

// RunRecord is one finalized run
type RunRecord struct {
	SessionID      string    `gorm:"primaryKey;column:session_id"`
	Number         int       `gorm:"primaryKey;column:number;autoIncrement:false"`
	Start          time.Time `gorm:"column:start_time;not null"`
	End            time.Time `gorm:"column:end_time;not null"`
	Distance       float64   `gorm:"column:distance"`
	VerticalDrop   float64   `gorm:"column:vertical_drop"`
	MaxSpeed       float64   `gorm:"column:max_speed"`
	AvgSpeed       float64   `gorm:"column:avg_speed"`
	TopAltitude    float64   `gorm:"column:top_altitude"`
	BottomAltitude float64   `gorm:"column:bottom_altitude"`
	Slope          string    `gorm:"column:slope"`
	EdgeScore      int       `gorm:"column:edge_score"`
	EdgeRaw        float64   `gorm:"column:edge_raw"`
	MaxG           float64   `gorm:"column:max_g"`
	AvgG           float64   `gorm:"column:avg_g"`
	TurnRatio      float64   `gorm:"column:turn_ratio"`
	FlowScore      int       `gorm:"column:flow_score"`
	Stability      float64   `gorm:"column:stability"`
	IdlePenalty    float64   `gorm:"column:idle_penalty"`
	HardBrakes     int       `gorm:"column:hard_brakes"`
	ChatterCount   int       `gorm:"column:chatter_count"`
	QuietBonuses   int       `gorm:"column:quiet_bonuses"`
}

// TableName specifies the table name for RunRecord
func (RunRecord) TableName() string {
	return "runs"
}

// RoutePointRecord is one sampled route point. The table is a hypertable
// partitioned on Timestamp.
type RoutePointRecord struct {
	Timestamp time.Time `gorm:"primaryKey;column:time;not null"`
	SessionID string    `gorm:"primaryKey;column:session_id"`
	RunNumber int       `gorm:"column:run_number;index"`
	Lat       float64   `gorm:"column:lat"`
	Lon       float64   `gorm:"column:lon"`
	Speed     float64   `gorm:"column:speed"`
	Altitude  float64   `gorm:"column:altitude"`
	Distance  float64   `gorm:"column:distance"`
	State     string    `gorm:"column:state"`
}

// TableName specifies the table name for RoutePointRecord
func (RoutePointRecord) TableName() string {
	return "route_points"
}

// NewSessionRecord converts a session summary
func NewSessionRecord(s types.SessionSummary) SessionRecord {
	return SessionRecord{
		ID:            s.SessionID,
		Start:         s.Start,
		End:           s.End,
		RunCount:      s.RunCount,
		LiftCount:     s.LiftCount,
		Distance:      s.Distance,
		VerticalDrop:  s.VerticalDrop,
		MaxSpeed:      s.MaxSpeed,
		AvgSpeed:      s.AvgSpeed,
		RidingTime:    s.RidingTime,
		LiftTime:      s.LiftTime,
		BestEdgeScore: s.BestEdgeScore,
		BestFlowScore: s.BestFlowScore,
		RoutePoints:   s.RoutePointsLen,
	}
}

// NewRunRecord converts a finalized run
func NewRunRecord(sessionID string, r types.Run) RunRecord {
	return RunRecord{
		SessionID:      sessionID,
		Number:         r.Number,
		Start:          r.Start,
		End:            r.End,
		Distance:       r.Distance,
		VerticalDrop:   r.VerticalDrop,
		MaxSpeed:       r.MaxSpeed,
		AvgSpeed:       r.AvgSpeed,
		TopAltitude:    r.TopAltitude,
		BottomAltitude: r.BottomAltitude,
		Slope:          r.Slope,
		EdgeScore:      r.Edge.Score,
		EdgeRaw:        r.Edge.Raw,
		MaxG:           r.Edge.MaxG,
		AvgG:           r.Edge.AvgG,
		TurnRatio:      r.Edge.TurnRatio,
		FlowScore:      r.Flow.Score,
		Stability:      r.Flow.Stability,
		IdlePenalty:    r.Flow.IdlePenalty,
		HardBrakes:     r.Flow.HardBrakes,
		ChatterCount:   r.Flow.ChatterCount,
		QuietBonuses:   r.Flow.QuietBonuses,
	}
}

// NewRoutePointRecords converts the route of one run
func NewRoutePointRecords(sessionID string, run int, points []types.RoutePoint) []RoutePointRecord {
	records := make([]RoutePointRecord, 0, len(points))
	for _, p := range points {
		records = append(records, RoutePointRecord{
			Timestamp: p.Timestamp,
			SessionID: sessionID,
			RunNumber: run,
			Lat:       p.Lat,
			Lon:       p.Lon,
			Speed:     p.Speed,
			Altitude:  p.Altitude,
			Distance:  p.Distance,
			State:     p.State.String(),
		})
	}
	return records
}

// Run converts the record back into a run
func (r RunRecord) Run() types.Run {
	return types.Run{
		Number:         r.Number,
		Start:          r.Start,
		End:            r.End,
		Duration:       r.End.Sub(r.Start),
		Distance:       r.Distance,
		VerticalDrop:   r.VerticalDrop,
		MaxSpeed:       r.MaxSpeed,
		AvgSpeed:       r.AvgSpeed,
		TopAltitude:    r.TopAltitude,
		BottomAltitude: r.BottomAltitude,
		Slope:          r.Slope,
		Edge: types.EdgeSummary{
			Score: r.EdgeScore, Raw: r.EdgeRaw, MaxG: r.MaxG, AvgG: r.AvgG, TurnRatio: r.TurnRatio,
		},
		Flow: types.FlowSummary{
			Score: r.FlowScore, Stability: r.Stability, IdlePenalty: r.IdlePenalty,
			HardBrakes: r.HardBrakes, ChatterCount: r.ChatterCount, QuietBonuses: r.QuietBonuses,
		},
	}
}
