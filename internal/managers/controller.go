package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/snowrecorder/internal/controllers/restserver"
	"github.com/chrissnell/snowrecorder/internal/ingest"
	"github.com/chrissnell/snowrecorder/pkg/config"
	"go.uber.org/zap"
)

// Controller is an interface that provides standard methods for the
// network-facing controllers
type Controller interface {
	StartController() error
}

// stoppable controllers can be stopped ahead of context cancellation
type stoppable interface {
	StopController(ctx context.Context) error
}

// ControllerManager starts the ingest server and the REST API
type ControllerManager struct {
	logger      *zap.SugaredLogger
	controllers []Controller
}

// NewControllerManager creates the controllers the configuration asks for
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, sessions *SessionManager, sm *StorageManager, logger *zap.SugaredLogger) (*ControllerManager, error) {
	cm := &ControllerManager{logger: logger}

	ingestConfig, err := configProvider.GetIngestConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading ingest configuration: %w", err)
	}
	if ingestConfig != nil {
		cm.controllers = append(cm.controllers, ingest.NewServer(ctx, wg, *ingestConfig, sessions, logger.Named("ingest")))
	}

	restConfig, err := configProvider.GetRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading REST configuration: %w", err)
	}
	if restConfig != nil {
		var history restserver.History
		if sm != nil && sm.History != nil {
			history = sm.History
		}
		var health restserver.HealthSource
		if sm != nil {
			health = sm.Health
		}
		rest, err := restserver.NewController(ctx, wg, *restConfig, sessions, history, health, logger.Named("rest"))
		if err != nil {
			return nil, fmt.Errorf("error creating REST controller: %w", err)
		}
		cm.controllers = append(cm.controllers, rest)
	}

	return cm, nil
}

// StartControllers starts every controller
func (c *ControllerManager) StartControllers() error {
	for _, controller := range c.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}
	c.logger.Infof("started %d controllers successfully", len(c.controllers))
	return nil
}

// StopIngest stops the controllers that feed samples into sessions, so no
// sample races the final session stop
func (c *ControllerManager) StopIngest(ctx context.Context) {
	for _, controller := range c.controllers {
		if s, ok := controller.(stoppable); ok {
			if err := s.StopController(ctx); err != nil {
				c.logger.Warnf("error stopping controller: %v", err)
			}
		}
	}
}
