package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"go.uber.org/zap"
)

// HealthChecker defines the interface for recorders to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthData
}

// StartHealthMonitor starts a generic health monitoring goroutine for any recorder
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, hm *HealthManager, storageType string, checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		updateHealth := func() {
			health := checker.CheckHealth(ctx)
			hm.UpdateHealth(storageType, health)
			if health.Status != StatusHealthy {
				logger.Warnw("recorder unhealthy", "recorder", storageType, "message", health.Message, "error", health.Error)
			}
		}

		updateHealth()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// ProcessEvents provides a standard pattern for draining session events from
// a channel. It returns when the channel is closed. On cancellation, events
// already buffered are still written so a shutdown does not lose the final
// SessionEnded.
func ProcessEvents(ctx context.Context, wg *sync.WaitGroup, eventChan <-chan session.Event, processor func(session.Event) error, name string, logger *zap.SugaredLogger) {
	defer wg.Done()

	process := func(e session.Event) {
		if err := processor(e); err != nil {
			logger.Errorw("recorder error", "recorder", name, "session", e.SessionID, "event", e.Kind, "error", err)
		}
	}

	for {
		select {
		case e, ok := <-eventChan:
			if !ok {
				logger.Infof("%s event processor finished", name)
				return
			}
			process(e)
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-eventChan:
					if !ok {
						return
					}
					process(e)
				default:
					logger.Infof("cancellation request received. Cancelling %s event processor", name)
					return
				}
			}
		}
	}
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) *HealthData {
	health := &HealthData{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
