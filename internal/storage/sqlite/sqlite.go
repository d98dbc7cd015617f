// Package sqlite records finished runs, their route points and session
// summaries in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const upsertRunSQL = `
INSERT INTO runs (session_id, number, start_ns, end_ns, distance, vertical_drop, max_speed, avg_speed,
	top_altitude, bottom_altitude, slope, edge_score, edge_raw, max_g, avg_g, turn_ratio,
	flow_score, stability, idle_penalty, hard_brakes, chatter_count, quiet_bonuses)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id, number) DO UPDATE SET
	start_ns = excluded.start_ns, end_ns = excluded.end_ns, distance = excluded.distance,
	vertical_drop = excluded.vertical_drop, max_speed = excluded.max_speed, avg_speed = excluded.avg_speed,
	top_altitude = excluded.top_altitude, bottom_altitude = excluded.bottom_altitude, slope = excluded.slope,
	edge_score = excluded.edge_score, edge_raw = excluded.edge_raw, max_g = excluded.max_g,
	avg_g = excluded.avg_g, turn_ratio = excluded.turn_ratio, flow_score = excluded.flow_score,
	stability = excluded.stability, idle_penalty = excluded.idle_penalty, hard_brakes = excluded.hard_brakes,
	chatter_count = excluded.chatter_count, quiet_bonuses = excluded.quiet_bonuses
`

const upsertSessionSQL = `
INSERT INTO sessions (id, start_ns, end_ns, run_count, lift_count, distance, vertical_drop, max_speed,
	avg_speed, riding_ns, lift_ns, best_edge_score, best_flow_score, route_points)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	start_ns = excluded.start_ns, end_ns = excluded.end_ns, run_count = excluded.run_count,
	lift_count = excluded.lift_count, distance = excluded.distance, vertical_drop = excluded.vertical_drop,
	max_speed = excluded.max_speed, avg_speed = excluded.avg_speed, riding_ns = excluded.riding_ns,
	lift_ns = excluded.lift_ns, best_edge_score = excluded.best_edge_score,
	best_flow_score = excluded.best_flow_score, route_points = excluded.route_points
`

// ErrSessionNotFound is returned by Summary for an unknown session
var ErrSessionNotFound = errors.New("session not recorded")

// Storage holds the SQLite handle of the recorder
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens (and if needed creates) the recorder database at path
func New(path string, logger *zap.SugaredLogger) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", ""), logger)
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate recorder schema: %w", err)
	}
	return &Storage{db: db, logger: logger}, nil
}

// StartStorageEngine creates a goroutine loop to receive session events and
// write them to SQLite
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- session.Event {
	s.logger.Info("starting SQLite run recorder...")
	eventChan := make(chan session.Event, 10)
	wg.Add(1)
	go func() {
		storage.ProcessEvents(ctx, wg, eventChan, s.StoreEvent, "sqlite", s.logger)
		s.db.Close()
	}()
	return eventChan
}

// StoreEvent writes one session event
func (s *Storage) StoreEvent(e session.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch e.Kind {
	case session.RunClosed:
		if e.Run == nil {
			return nil
		}
		return s.StoreRun(ctx, e.SessionID, *e.Run, e.RoutePoints)
	case session.SessionEnded:
		if e.Summary == nil {
			return nil
		}
		return s.StoreSummary(ctx, *e.Summary)
	}
	return nil
}

// StoreRun upserts a run and replaces its route points. Replaying the same
// run is idempotent.
func (s *Storage) StoreRun(ctx context.Context, sessionID string, r types.Run, route []types.RoutePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, upsertRunSQL,
		sessionID, r.Number, r.Start.UnixNano(), r.End.UnixNano(),
		r.Distance, r.VerticalDrop, r.MaxSpeed, r.AvgSpeed, r.TopAltitude, r.BottomAltitude, r.Slope,
		r.Edge.Score, r.Edge.Raw, r.Edge.MaxG, r.Edge.AvgG, r.Edge.TurnRatio,
		r.Flow.Score, r.Flow.Stability, r.Flow.IdlePenalty, r.Flow.HardBrakes, r.Flow.ChatterCount, r.Flow.QuietBonuses)
	if err != nil {
		return fmt.Errorf("failed to upsert run %d: %w", r.Number, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_points WHERE session_id = ? AND run_number = ?`, sessionID, r.Number); err != nil {
		return fmt.Errorf("failed to clear route of run %d: %w", r.Number, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO route_points (session_id, run_number, seq, ts_ns, lat, lon, speed, altitude, distance, state) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare route insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range route {
		if _, err := stmt.ExecContext(ctx, sessionID, r.Number, i, p.Timestamp.UnixNano(), p.Lat, p.Lon, p.Speed, p.Altitude, p.Distance, int(p.State)); err != nil {
			return fmt.Errorf("failed to insert route point: %w", err)
		}
	}

	return tx.Commit()
}

// StoreSummary upserts the session summary
func (s *Storage) StoreSummary(ctx context.Context, sum types.SessionSummary) error {
	_, err := s.db.ExecContext(ctx, upsertSessionSQL,
		sum.SessionID, sum.Start.UnixNano(), sum.End.UnixNano(), sum.RunCount, sum.LiftCount,
		sum.Distance, sum.VerticalDrop, sum.MaxSpeed, sum.AvgSpeed,
		int64(sum.RidingTime), int64(sum.LiftTime), sum.BestEdgeScore, sum.BestFlowScore, sum.RoutePointsLen)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sum.SessionID, err)
	}
	return nil
}

// Runs returns the recorded runs of a session ordered by number
func (s *Storage) Runs(ctx context.Context, sessionID string) ([]types.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, start_ns, end_ns, distance, vertical_drop, max_speed, avg_speed,
			top_altitude, bottom_altitude, slope, edge_score, edge_raw, max_g, avg_g, turn_ratio,
			flow_score, stability, idle_penalty, hard_brakes, chatter_count, quiet_bonuses
		FROM runs WHERE session_id = ? ORDER BY number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var r types.Run
		var startNs, endNs int64
		err := rows.Scan(&r.Number, &startNs, &endNs, &r.Distance, &r.VerticalDrop, &r.MaxSpeed, &r.AvgSpeed,
			&r.TopAltitude, &r.BottomAltitude, &r.Slope,
			&r.Edge.Score, &r.Edge.Raw, &r.Edge.MaxG, &r.Edge.AvgG, &r.Edge.TurnRatio,
			&r.Flow.Score, &r.Flow.Stability, &r.Flow.IdlePenalty, &r.Flow.HardBrakes, &r.Flow.ChatterCount, &r.Flow.QuietBonuses)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Start = time.Unix(0, startNs).UTC()
		r.End = time.Unix(0, endNs).UTC()
		r.Duration = r.End.Sub(r.Start)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RoutePoints returns the stored route of one run
func (s *Storage) RoutePoints(ctx context.Context, sessionID string, run int) ([]types.RoutePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts_ns, lat, lon, speed, altitude, distance, state
		FROM route_points WHERE session_id = ? AND run_number = ? ORDER BY seq`, sessionID, run)
	if err != nil {
		return nil, fmt.Errorf("failed to query route points: %w", err)
	}
	defer rows.Close()

	var points []types.RoutePoint
	for rows.Next() {
		var p types.RoutePoint
		var tsNs int64
		var state int
		if err := rows.Scan(&tsNs, &p.Lat, &p.Lon, &p.Speed, &p.Altitude, &p.Distance, &state); err != nil {
			return nil, fmt.Errorf("failed to scan route point: %w", err)
		}
		p.Timestamp = time.Unix(0, tsNs).UTC()
		p.State = types.ActivityState(state)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Summary returns the recorded summary of a finished session
func (s *Storage) Summary(ctx context.Context, sessionID string) (types.SessionSummary, error) {
	var sum types.SessionSummary
	var startNs, endNs, ridingNs, liftNs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_ns, end_ns, run_count, lift_count, distance, vertical_drop, max_speed, avg_speed,
			riding_ns, lift_ns, best_edge_score, best_flow_score, route_points
		FROM sessions WHERE id = ?`, sessionID).Scan(
		&sum.SessionID, &startNs, &endNs, &sum.RunCount, &sum.LiftCount, &sum.Distance, &sum.VerticalDrop,
		&sum.MaxSpeed, &sum.AvgSpeed, &ridingNs, &liftNs, &sum.BestEdgeScore, &sum.BestFlowScore, &sum.RoutePointsLen)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SessionSummary{}, ErrSessionNotFound
	}
	if err != nil {
		return types.SessionSummary{}, fmt.Errorf("failed to query session: %w", err)
	}
	sum.Start = time.Unix(0, startNs).UTC()
	sum.End = time.Unix(0, endNs).UTC()
	sum.RidingTime = time.Duration(ridingNs)
	sum.LiftTime = time.Duration(liftNs)
	return sum, nil
}

// CheckHealth pings the database
func (s *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "SQLite ping failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "SQLite database reachable", nil)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}
