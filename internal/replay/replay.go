// Package replay feeds a recorded track through a recording session offline
// and summarizes the result per slope.
package replay

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/types"
	"go.uber.org/zap"
)

// ErrNoSamples is returned for a track without timestamped points.
var ErrNoSamples = errors.New("track has no timestamped samples")

// Result holds everything a replayed session produced.
type Result struct {
	Summary types.SessionSummary
	Runs    []types.Run
	Routes  map[int][]types.RoutePoint
	Events  []session.Event
}

// Run replays samples through a new session. The session starts at the first
// sample and stops at the last one.
func Run(id string, samples []types.Sample, p session.Params, slopes *slope.Index, logger *zap.SugaredLogger) (*Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	s := session.New(id, p, slopes, logger)
	res := &Result{Routes: make(map[int][]types.RoutePoint)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range s.Events() {
			res.Events = append(res.Events, e)
			if e.Kind == session.RunClosed && e.Run != nil {
				res.Runs = append(res.Runs, *e.Run)
				res.Routes[e.Run.Number] = e.RoutePoints
			}
		}
	}()

	if err := s.Start(samples[0].Time); err != nil {
		s.Abandon()
		<-done
		return nil, fmt.Errorf("error starting session: %w", err)
	}

	var rejected int
	for _, sample := range samples {
		if err := s.Ingest(sample); err != nil {
			rejected++
		}
	}
	if rejected > 0 && logger != nil {
		logger.Warnf("%d of %d samples rejected", rejected, len(samples))
	}

	summary, err := s.Stop(samples[len(samples)-1].Time.Add(time.Second))
	<-done
	if err != nil {
		return nil, fmt.Errorf("error stopping session: %w", err)
	}
	res.Summary = summary
	return res, nil
}
