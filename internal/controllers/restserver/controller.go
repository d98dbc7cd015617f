// Package restserver serves the read-only live API for session views.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/log"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/pkg/config"
	"github.com/chrissnell/snowrecorder/pkg/responseformat"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionSource is the set of live sessions
type SessionSource interface {
	List() []session.Snapshot
	Get(id string) (*session.Session, error)
	Slopes() *slope.Index
}

// History reads sessions that were recorded but are no longer in memory
type History interface {
	Runs(ctx context.Context, sessionID string) ([]types.Run, error)
	RoutePoints(ctx context.Context, sessionID string, run int) ([]types.RoutePoint, error)
	Summary(ctx context.Context, sessionID string) (types.SessionSummary, error)
}

// HealthSource reports recorder health
type HealthSource interface {
	GetAllHealth() []storage.RecorderHealth
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	sessions   SessionSource
	history    History
	health     HealthSource
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger
}

// NewController creates a new REST server controller. history and health
// may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, sessions SessionSource, history History, health HealthSource, logger *zap.SugaredLogger) (*Controller, error) {
	if sessions == nil {
		return nil, fmt.Errorf("REST server requires a session source")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		sessions:   sessions,
		history:    history,
		health:     health,
		formatter:  responseformat.NewFormatter(),
		logger:     logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	api := router.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/sessions", c.getSessions)
	api.HandleFunc("/sessions/{id}", c.getSession)
	api.HandleFunc("/sessions/{id}/summary", c.getSummary)
	api.HandleFunc("/sessions/{id}/route", c.getRoute)
	api.HandleFunc("/sessions/{id}/runs", c.getRuns)
	api.HandleFunc("/sessions/{id}/runs/{n:[0-9]+}", c.getRun)
	api.HandleFunc("/slopes", c.getSlopes)
	api.HandleFunc("/slopes.geojson", c.getSlopesGeoJSON)
	api.HandleFunc("/health", c.getHealth)

	return router
}
