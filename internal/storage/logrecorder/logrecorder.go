// Package logrecorder writes finished runs and session summaries to the log.
package logrecorder

import (
	"context"
	"sync"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"go.uber.org/zap"
)

// Storage is the log recorder
type Storage struct {
	logger *zap.SugaredLogger
}

// New creates a log recorder
func New(logger *zap.SugaredLogger) *Storage {
	return &Storage{logger: logger}
}

// StartStorageEngine starts the event loop
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- session.Event {
	eventChan := make(chan session.Event, 10)
	wg.Add(1)
	go storage.ProcessEvents(ctx, wg, eventChan, s.StoreEvent, "log", s.logger)
	return eventChan
}

// StoreEvent logs one event
func (s *Storage) StoreEvent(e session.Event) error {
	switch {
	case e.Kind == session.RunClosed && e.Run != nil:
		r := e.Run
		s.logger.Infow("run recorded",
			"session", e.SessionID,
			"run", r.Number,
			"slope", r.Slope,
			"start", r.Start,
			"duration", r.Duration,
			"vertical_drop", r.VerticalDrop,
			"distance", r.Distance,
			"max_speed_kmh", r.MaxSpeed*3.6,
			"edge", r.Edge.Score,
			"flow", r.Flow.Score,
			"route_points", len(e.RoutePoints))
	case e.Kind == session.SessionEnded && e.Summary != nil:
		sum := e.Summary
		s.logger.Infow("session recorded",
			"session", e.SessionID,
			"runs", sum.RunCount,
			"lifts", sum.LiftCount,
			"distance", sum.Distance,
			"vertical_drop", sum.VerticalDrop,
			"riding_time", sum.RidingTime,
			"best_edge", sum.BestEdgeScore,
			"best_flow", sum.BestFlowScore)
	}
	return nil
}
